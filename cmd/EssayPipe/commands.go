package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/EssayPipe/internal/api"
	"github.com/BTreeMap/EssayPipe/internal/lockfile"
	"github.com/BTreeMap/EssayPipe/internal/models"
	"github.com/BTreeMap/EssayPipe/internal/store"
)

// isInteractive reports whether stdin is a terminal. Replaced in tests.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// NewRootCommand builds the essaypipe command tree. Flag defaults come from the environment.
func NewRootCommand() *cobra.Command {
	config := loadEnvironmentConfig()
	flags := &Flags{}

	root := &cobra.Command{
		Use:           "essaypipe",
		Short:         "Guided college essay brainstorming",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeLogger(flags.logLevel); err != nil {
				return err
			}
			resolveStateDir(config, flags)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for EssayPipe data (overrides $ESSAYPIPE_STATE_DIR)")
	pf.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "SQLite path or PostgreSQL DSN (overrides $DATABASE_URL)")
	pf.BoolVar(&flags.inMemory, "in-memory", false, "keep sessions in memory only")
	pf.StringVar(&flags.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	pf.StringVar(&flags.openaiModel, "openai-model", config.OpenAIModel, "chat model (overrides $OPENAI_MODEL)")
	pf.StringVar(&flags.openaiBaseURL, "openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible endpoint (overrides $OPENAI_BASE_URL)")
	pf.BoolVar(&flags.genaiDebug, "genai-debug", config.GenAIDebug, "write LLM requests and responses under <state-dir>/debug (overrides $GENAI_DEBUG)")
	pf.DurationVar(&flags.llmTimeout, "llm-timeout", config.LLMTimeout, "timeout for each LLM call (overrides $LLM_TIMEOUT)")
	pf.StringVar(&flags.logLevel, "log-level", config.LogLevel, "debug, info, warn or error (overrides $ESSAYPIPE_LOG_LEVEL)")

	root.AddCommand(
		serveCmd(config, flags),
		chatCmd(flags),
		promptsCmd(),
		sessionsCmd(flags),
	)
	return root
}

func serveCmd(config Config, flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the text-message channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureDirectoriesExist(*flags); err != nil {
				return fmt.Errorf("failed to create required directories: %w", err)
			}
			lock, err := lockfile.AcquireLock(flags.stateDir, "serve")
			if err != nil {
				return err
			}
			defer lock.Release()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			storeOpts := buildStoreOptions(*flags)
			genaiOpts := buildGenAIOptions(*flags)
			msgOpts := buildMessagingOptions(config)
			apiOpts := buildAPIOptions(config, *flags)
			slog.Info("Bootstrapping EssayPipe with configured modules")
			slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "messaging", len(msgOpts), "api", len(apiOpts))
			if err := api.Run(ctx, storeOpts, genaiOpts, msgOpts, apiOpts); err != nil {
				slog.Error("EssayPipe failed to run", "error", err)
				return err
			}
			slog.Info("EssayPipe exited successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	cmd.Flags().BoolVar(&flags.sms, "sms", config.SMSEnabled, "enable the Twilio text-message channel (overrides $ESSAYPIPE_SMS_ENABLED)")
	cmd.Flags().StringVar(&flags.webhookURL, "webhook-url", config.TwilioWebhookURL, "public webhook URL used to verify Twilio signatures (overrides $TWILIO_WEBHOOK_URL)")
	return cmd
}

func chatCmd(flags *Flags) *cobra.Command {
	var (
		promptID  string
		sessionID string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Brainstorm in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !isInteractive() {
				return errors.New("chat needs an interactive terminal; pass --force to read answers from a pipe")
			}
			if promptID != "" {
				if _, ok := models.LookupPrompt(models.PromptID(promptID)); !ok {
					return fmt.Errorf("unknown prompt %q; run `essaypipe prompts` to list them", promptID)
				}
			}
			if err := ensureDirectoriesExist(*flags); err != nil {
				return fmt.Errorf("failed to create required directories: %w", err)
			}

			st, err := store.NewStore(buildStoreOptions(*flags)...)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer st.Close()

			orch := api.BuildOrchestrator(buildGenAIOptions(*flags), flags.llmTimeout)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			c := newChatRunner(orch, st, cmd.InOrStdin(), cmd.OutOrStdout())
			return c.run(ctx, models.PromptID(promptID), sessionID)
		},
	}
	cmd.Flags().StringVar(&promptID, "prompt", "", "prompt id to start with (identity, challenge, belief, choice)")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a saved session")
	cmd.Flags().BoolVar(&force, "force", false, "run even when stdin is not a terminal")
	return cmd
}

func promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List the essay prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, p := range models.EssayPrompts() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, p.ID, p.Title)
			}
			return tw.Flush()
		},
	}
}

func sessionsCmd(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(buildStoreOptions(*flags)...)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer st.Close()

			sessions, err := st.ListSessions()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROMPT\tSTAGE\tPROGRESS\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n", s.ID, s.Conversation.PromptID, s.Conversation.CurrentStage,
					s.Conversation.ProgressPercentage, s.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}
