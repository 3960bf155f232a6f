// Package api provides the HTTP server for EssayPipe.
//
// It exposes the stateless brainstorming endpoints, server-side sessions, and the
// Twilio webhook that drives brainstorming over text message. The API integrates the
// flow, store, genai and messaging modules.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/genai"
	"github.com/BTreeMap/EssayPipe/internal/messaging"
	"github.com/BTreeMap/EssayPipe/internal/store"
)

const (
	// DefaultServerAddress is the listen address used when none is configured.
	DefaultServerAddress = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown of in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr                string
	CollaboratorTimeout time.Duration
	SMSEnabled          bool
	WebhookAuthToken    string
	WebhookURL          string
	OutboxPollInterval  time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCollaboratorTimeout bounds each LLM call made during a turn.
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(o *Opts) { o.CollaboratorTimeout = d }
}

// WithSMSEnabled turns on the Twilio text-message channel.
func WithSMSEnabled(enabled bool) Option {
	return func(o *Opts) { o.SMSEnabled = enabled }
}

// WithWebhookValidation checks X-Twilio-Signature on inbound webhooks.
func WithWebhookValidation(authToken, publicURL string) Option {
	return func(o *Opts) {
		o.WebhookAuthToken = authToken
		o.WebhookURL = publicURL
	}
}

// WithOutboxPollInterval overrides how often queued texts are sent.
func WithOutboxPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.OutboxPollInterval = d }
}

// webhookProvider is implemented by messaging services that receive messages over HTTP.
type webhookProvider interface {
	TwilioWebhookHandler(w http.ResponseWriter, r *http.Request)
}

// Server holds all dependencies for the API handlers.
type Server struct {
	orch       *flow.Orchestrator
	st         store.Store
	msgService messaging.Service // nil when text messaging is disabled
	guard      *flow.TurnGuard
	outbox     *store.OutboxSender
	addr       string
	now        func() time.Time
}

// NewServer creates a new API server instance. msgService may be nil.
func NewServer(orch *flow.Orchestrator, st store.Store, msgService messaging.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultServerAddress}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultServerAddress
	}

	s := &Server{
		orch:       orch,
		st:         st,
		msgService: msgService,
		guard:      flow.NewTurnGuard(),
		addr:       cfg.Addr,
		now:        time.Now,
	}
	if msgService != nil {
		s.outbox = store.NewOutboxSender(st, s.sendOutboxMessage, cfg.OutboxPollInterval)
	}
	return s
}

// Handler returns the routed HTTP handler wrapped in the CORS and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.chatHandler)
	mux.HandleFunc("POST /api/generate-outline", s.generateOutlineHandler)
	mux.HandleFunc("POST /api/refine-section", s.refineSectionHandler)
	mux.HandleFunc("GET /api/prompts", s.promptsHandler)
	mux.HandleFunc("POST /api/sessions", s.createSessionHandler)
	mux.HandleFunc("GET /api/sessions", s.listSessionsHandler)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("POST /api/sessions/{id}/turn", s.sessionTurnHandler)
	mux.HandleFunc("POST /api/sessions/{id}/outline", s.sessionOutlineHandler)
	mux.HandleFunc("POST /api/sessions/{id}/share", s.shareOutlineHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	if wh, ok := s.msgService.(webhookProvider); ok {
		mux.HandleFunc("POST /webhook/twilio", wh.TwilioWebhookHandler)
	}
	return withCORS(withRequestLogging(mux))
}

// Serve runs the HTTP server, the inbound message consumer and the outbox sender
// until ctx is cancelled, then shuts down gracefully. It returns only after the
// consumer and sender have stopped touching the store.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var workers sync.WaitGroup
	if s.msgService != nil {
		if err := s.msgService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start messaging service: %w", err)
		}
		if err := s.outbox.RecoverStaleMessages(); err != nil {
			slog.Warn("Server.Serve: failed to recover stale outbox messages", "error", err)
		}
		workers.Add(2)
		go func() {
			defer workers.Done()
			s.outbox.Run(ctx)
		}()
		go func() {
			defer workers.Done()
			s.consumeMessages(ctx)
		}()
	}

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("EssayPipe API running", "addr", s.addr, "sms", s.msgService != nil)
		errCh <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Serve: graceful shutdown failed", "error", err)
	}
	cancel()
	workers.Wait()
	if s.msgService != nil {
		if err := s.msgService.Stop(); err != nil {
			slog.Error("Server.Serve: failed to stop messaging service", "error", err)
		}
	}
	return serveErr
}

// Run builds every module from its options and serves until ctx is cancelled.
// A missing OpenAI key is not fatal: turns then run on the local fallbacks.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, msgOpts []messaging.ClientOption, apiOpts []Option) error {
	cfg := Opts{CollaboratorTimeout: flow.DefaultCollaboratorTimeout}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Run: failed to close store", "error", err)
		}
	}()

	orch := BuildOrchestrator(genaiOpts, cfg.CollaboratorTimeout)

	var msgService messaging.Service
	if cfg.SMSEnabled {
		client, err := messaging.NewTwilioClient(msgOpts...)
		if err != nil {
			return fmt.Errorf("failed to create Twilio client: %w", err)
		}
		var svcOpts []messaging.ServiceOption
		if cfg.WebhookAuthToken != "" && cfg.WebhookURL != "" {
			svcOpts = append(svcOpts, messaging.WithSignatureValidation(cfg.WebhookAuthToken, cfg.WebhookURL))
		} else {
			slog.Warn("Run: Twilio webhook signature validation disabled")
		}
		msgService = messaging.NewTwilioService(client, svcOpts...)
	}

	return NewServer(orch, st, msgService, apiOpts...).Serve(ctx)
}

// BuildOrchestrator wires the LLM collaborators into an orchestrator. Without a usable
// GenAI client the orchestrator runs on its local fallbacks.
func BuildOrchestrator(genaiOpts []genai.Option, timeout time.Duration) *flow.Orchestrator {
	opts := []flow.OrchestratorOption{flow.WithCollaboratorTimeout(timeout)}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client unavailable, turns will use local fallbacks and outlines are disabled", "error", err)
		return flow.NewOrchestrator(nil, nil, nil, opts...)
	}
	collab := flow.NewLLMCollaborator(client)
	opts = append(opts, flow.WithSectionRefiner(collab))
	return flow.NewOrchestrator(collab, collab, collab, opts...)
}
