package models

import (
	"errors"
	"time"
)

// ErrEmptyOutline is returned when a generated outline has no sections.
var ErrEmptyOutline = errors.New("outline has no sections")

// OutlineSection is one titled block of an essay outline.
type OutlineSection struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CanRefine bool   `json:"canRefine"`
}

// Outline is the essay outline assembled from a completed conversation.
type Outline struct {
	Sections       []OutlineSection `json:"sections"`
	Explanation    string           `json:"explanation"`
	FollowUpPrompt string           `json:"followUpPrompt"`
	GeneratedAt    time.Time        `json:"generatedAt"`
	PromptID       PromptID         `json:"promptId"`
}

// Validate ensures the outline carries at least one section.
func (o *Outline) Validate() error {
	if len(o.Sections) == 0 {
		return ErrEmptyOutline
	}
	return nil
}

// Session is the persisted record of one brainstorming session.
type Session struct {
	ID           string            `json:"id"`
	Conversation ConversationState `json:"conversation"`
	Outline      *Outline          `json:"outline,omitempty"`
	// Participant is the canonical phone number for sessions driven over text message.
	Participant string    `json:"participant,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InboundMessage is a text message received from a participant.
type InboundMessage struct {
	// MessageID is the provider's message identifier, used to drop redelivered webhooks.
	MessageID string `json:"messageId,omitempty"`
	From      string `json:"from"`
	Body      string `json:"body"`
	Time      int64  `json:"time"`
}
