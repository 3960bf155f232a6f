package store

import (
	"context"
	"log/slog"
	"time"
)

// Outbox sender defaults.
const (
	DefaultOutboxPollInterval = 2 * time.Second
	DefaultOutboxMaxBackoff   = 10 * time.Minute
	// DefaultOutboxMaxAttempts is how many sends a message gets before it is canceled.
	DefaultOutboxMaxAttempts = 8
)

// OutboxSendFunc performs the actual send of one outbox message.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// OutboxSender periodically claims due outbox messages and attempts to send them.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
	claimLimit     int
}

// NewOutboxSender creates a new OutboxSender. A non-positive pollInterval selects the default.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = DefaultOutboxPollInterval
	}
	return &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		maxBackoff:     DefaultOutboxMaxBackoff,
		maxAttempts:    DefaultOutboxMaxAttempts,
		claimLimit:     10,
	}
}

// RecoverStaleMessages requeues messages stuck in sending state. Call once at startup.
func (s *OutboxSender) RecoverStaleMessages() error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.repo.RequeueStaleSendingMessages(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll sends every message that is due now.
func (s *OutboxSender) Poll(ctx context.Context) {
	now := time.Now()
	msgs, err := s.repo.ClaimDueOutboxMessages(now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.Poll: claim failed", "error", err)
		return
	}

	for _, msg := range msgs {
		slog.Debug("OutboxSender.Poll: sending message", "id", msg.ID, "recipient", msg.Recipient, "kind", msg.Kind)
		if err := s.sendFunc(ctx, msg); err != nil {
			slog.Error("OutboxSender.Poll: send failed", "id", msg.ID, "attempts", msg.Attempts, "error", err)
			if msg.Attempts+1 >= s.maxAttempts {
				slog.Warn("OutboxSender.Poll: giving up on message", "id", msg.ID, "recipient", msg.Recipient, "attempts", msg.Attempts+1)
				if err := s.repo.CancelOutboxMessage(msg.ID, err.Error()); err != nil {
					slog.Error("OutboxSender.Poll: cancel message error", "id", msg.ID, "error", err)
				}
				continue
			}
			if err := s.repo.FailOutboxMessage(msg.ID, err.Error(), now.Add(s.backoff(msg.Attempts))); err != nil {
				slog.Error("OutboxSender.Poll: fail message error", "id", msg.ID, "error", err)
			}
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(msg.ID); err != nil {
			slog.Error("OutboxSender.Poll: mark sent error", "id", msg.ID, "error", err)
		}
		slog.Debug("OutboxSender.Poll: message sent", "id", msg.ID, "recipient", msg.Recipient)
	}
}

// backoff doubles from 10s per attempt, capped at maxBackoff.
func (s *OutboxSender) backoff(attempts int) time.Duration {
	if attempts > 16 {
		return s.maxBackoff
	}
	d := time.Duration(10*(1<<attempts)) * time.Second
	if d > s.maxBackoff {
		return s.maxBackoff
	}
	return d
}
