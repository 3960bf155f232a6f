package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

// sessionColumns is the column list read by scanSession.
const sessionColumns = `id, participant, conversation_json, outline_json, created_at, updated_at`

// encodeSession marshals the JSON columns of a session row.
func encodeSession(s models.Session) (conversation string, outline interface{}, err error) {
	convJSON, err := json.Marshal(s.Conversation)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if s.Outline == nil {
		return string(convJSON), nil, nil
	}
	outlineJSON, err := json.Marshal(s.Outline)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal outline: %w", err)
	}
	return string(convJSON), string(outlineJSON), nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                  models.Session
		participant        sql.NullString
		convJSON           string
		outlineJSON        sql.NullString
		createdAt, updated time.Time
	)
	if err := row.Scan(&s.ID, &participant, &convJSON, &outlineJSON, &createdAt, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session failed: %w", err)
	}
	s.Participant = participant.String
	s.CreatedAt = createdAt
	s.UpdatedAt = updated
	if err := json.Unmarshal([]byte(convJSON), &s.Conversation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation for session %s: %w", s.ID, err)
	}
	if outlineJSON.Valid && outlineJSON.String != "" {
		var o models.Outline
		if err := json.Unmarshal([]byte(outlineJSON.String), &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outline for session %s: %w", s.ID, err)
		}
		s.Outline = &o
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]models.Session, error) {
	defer rows.Close()
	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return out, nil
}

// outboxColumns is the column list read by scanOutboxMessage.
const outboxColumns = `id, recipient, kind, body, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`

func scanOutboxMessage(row rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.Recipient, &m.Kind, &m.Body, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}
