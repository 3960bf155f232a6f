// Package store provides storage backends for EssayPipe sessions.
//
// It includes an in-memory store and persistent SQLite and PostgreSQL stores.
// Besides sessions, each backend records inbound text messages for
// deduplication and keeps a durable outbox of texts to send.
package store

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// ErrSessionNotFound is returned when no session matches the lookup.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists brainstorming sessions.
type SessionStore interface {
	// SaveSession inserts or replaces the session with the same ID.
	SaveSession(s models.Session) error
	// GetSession returns ErrSessionNotFound when id is unknown.
	GetSession(id string) (*models.Session, error)
	// GetSessionByParticipant returns the most recently updated session for a phone number.
	GetSessionByParticipant(participant string) (*models.Session, error)
	DeleteSession(id string) error
	// ListSessions returns all sessions, most recently updated first.
	ListSessions() ([]models.Session, error)
}

// Store is the full storage surface used by the server.
type Store interface {
	SessionStore
	DedupRepo
	OutboxRepo
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN  string
	Type string // "postgres" or "sqlite3"; empty means in-memory
}

// Option configures a store backend.
type Option func(*Opts)

// WithPostgresDSN selects the PostgreSQL backend.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "postgres"
	}
}

// WithSQLiteDSN selects the SQLite backend with dsn as the database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "sqlite3"
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// NewStore opens the backend selected by opts. Without a DSN it returns an in-memory store.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	if cfg.Type == "" {
		cfg.Type = DetectDSNType(cfg.DSN)
	}
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(WithPostgresDSN(cfg.DSN))
	default:
		return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
	}
}

// cloneSession deep-copies s so stored values never alias caller memory.
func cloneSession(s models.Session) models.Session {
	out := s
	out.Conversation = s.Conversation.Clone()
	if s.Outline != nil {
		o := *s.Outline
		o.Sections = append([]models.OutlineSection(nil), s.Outline.Sections...)
		out.Outline = &o
	}
	return out
}
