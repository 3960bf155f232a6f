package store

import (
	"time"
)

// DedupRecord is one inbound text message, keyed by the provider's message ID.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	Participant string     `json:"participant"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// DedupRepo guards the text channel against providers redelivering the same webhook.
type DedupRepo interface {
	// IsDuplicate reports whether messageID has already been recorded.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound records messageID. It returns false if the message was already recorded.
	RecordInbound(messageID, participant string) (bool, error)

	// MarkProcessed stamps processed_at once the answer has been handled.
	MarkProcessed(messageID string) error
}
