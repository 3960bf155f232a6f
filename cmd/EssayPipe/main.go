package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/EssayPipe/internal/api"
	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/genai"
	"github.com/BTreeMap/EssayPipe/internal/messaging"
	"github.com/BTreeMap/EssayPipe/internal/store"
	"github.com/BTreeMap/EssayPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for EssayPipe state data
	DefaultStateDir = "/var/lib/essaypipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "essaypipe.db"
	// DefaultLogLevel is used when ESSAYPIPE_LOG_LEVEL is unset
	DefaultLogLevel = "info"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GenAIDebug    bool
	LLMTimeout    time.Duration
	APIAddr       string
	LogLevel      string

	SMSEnabled       bool
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioChannel    string
	TwilioWebhookURL string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      string
	dbDSN         string
	inMemory      bool
	openaiKey     string
	openaiModel   string
	openaiBaseURL string
	genaiDebug    bool
	llmTimeout    time.Duration
	apiAddr       string
	logLevel      string
	sms           bool
	webhookURL    string
}

// initializeLogger installs a text handler on stderr at the named level.
func initializeLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("ESSAYPIPE_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GenAIDebug:    util.ParseBoolEnv("GENAI_DEBUG", false),
		LLMTimeout:    util.ParseDurationEnv("LLM_TIMEOUT", flow.DefaultCollaboratorTimeout),
		APIAddr:       util.FirstEnv("API_ADDR", "PORT"),
		LogLevel:      os.Getenv("ESSAYPIPE_LOG_LEVEL"),

		SMSEnabled:       util.ParseBoolEnv("ESSAYPIPE_SMS_ENABLED", false),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioChannel:    os.Getenv("TWILIO_CHANNEL"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ESSAYPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	// A bare port such as PORT=8080 becomes a listen address.
	if config.APIAddr != "" && !strings.Contains(config.APIAddr, ":") {
		config.APIAddr = ":" + config.APIAddr
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}

	slog.Debug("environment variables loaded",
		"ESSAYPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"LLM_TIMEOUT", config.LLMTimeout,
		"API_ADDR", config.APIAddr,
		"ESSAYPIPE_SMS_ENABLED", config.SMSEnabled,
		"TWILIO_CREDENTIALS_SET", config.TwilioAccountSID != "" && config.TwilioAuthToken != "")

	return config
}

// resolveStateDir moves the default SQLite database into a state directory given on the
// command line, unless a DSN was chosen explicitly.
func resolveStateDir(config Config, flags *Flags) {
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if flags.dbDSN == config.DatabaseURL && config.DatabaseURL == defaultDSN && flags.stateDir != config.StateDir {
		flags.dbDSN = filepath.Join(flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", flags.stateDir)
	}
}

// ensureDirectoriesExist creates the state directory and, for SQLite, the database directory.
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{flags.stateDir}
	if !flags.inMemory && flags.dbDSN != "" && store.DetectDSNType(flags.dbDSN) == "sqlite3" {
		dirs = append(dirs, filepath.Dir(flags.dbDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	if flags.inMemory || flags.dbDSN == "" {
		slog.Debug("Using in-memory store")
		return nil
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return []store.Option{store.WithPostgresDSN(flags.dbDSN)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN)
	return []store.Option{store.WithSQLiteDSN(flags.dbDSN)}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(flags.openaiKey))
	}
	if flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.openaiModel))
	}
	if flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(flags.openaiBaseURL))
	}
	if flags.genaiDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, flags.stateDir))
	}
	return genaiOpts
}

// buildMessagingOptions constructs Twilio client options. Credentials only come from the environment.
func buildMessagingOptions(config Config) []messaging.ClientOption {
	var opts []messaging.ClientOption
	if config.TwilioAccountSID != "" {
		opts = append(opts, messaging.WithAccountSID(config.TwilioAccountSID))
	}
	if config.TwilioAuthToken != "" {
		opts = append(opts, messaging.WithAuthToken(config.TwilioAuthToken))
	}
	if config.TwilioFromNumber != "" {
		opts = append(opts, messaging.WithFromNumber(config.TwilioFromNumber))
	}
	if config.TwilioChannel != "" {
		opts = append(opts, messaging.WithChannel(messaging.Channel(strings.ToLower(config.TwilioChannel))))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, flags Flags) []api.Option {
	var apiOpts []api.Option
	if flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.apiAddr))
	}
	if flags.llmTimeout > 0 {
		apiOpts = append(apiOpts, api.WithCollaboratorTimeout(flags.llmTimeout))
	}
	if flags.sms {
		apiOpts = append(apiOpts, api.WithSMSEnabled(true))
		if config.TwilioAuthToken != "" && flags.webhookURL != "" {
			apiOpts = append(apiOpts, api.WithWebhookValidation(config.TwilioAuthToken, flags.webhookURL))
		}
	}
	return apiOpts
}
