package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Validation errors for conversation snapshots.
var (
	ErrMissingStage   = errors.New("currentStage is required")
	ErrInvalidStage   = errors.New("invalid stage")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrMissingPrompt  = errors.New("promptId is required")
	ErrResponsesShape = errors.New("studentResponses must be an object of strings")
)

// Message is a single entry of the append-only conversation transcript.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	QuestionStage Stage     `json:"questionStage"`
}

// StageResponse pairs a stage key with the latest answer recorded for it.
type StageResponse struct {
	Stage  Stage
	Answer string
}

// StageResponses is an insertion-ordered stage -> answer record.
//
// On the wire it is a plain JSON object; key order is preserved in both
// directions. Setting an existing key replaces the answer without moving it.
type StageResponses []StageResponse

// Get returns the answer recorded for stage.
func (r StageResponses) Get(stage Stage) (string, bool) {
	for _, sr := range r {
		if sr.Stage == stage {
			return sr.Answer, true
		}
	}
	return "", false
}

// Has reports whether stage has a recorded answer.
func (r StageResponses) Has(stage Stage) bool {
	_, ok := r.Get(stage)
	return ok
}

// Set records answer for stage and returns the updated record. The receiver is not modified.
func (r StageResponses) Set(stage Stage, answer string) StageResponses {
	out := make(StageResponses, len(r), len(r)+1)
	copy(out, r)
	for i := range out {
		if out[i].Stage == stage {
			out[i].Answer = answer
			return out
		}
	}
	return append(out, StageResponse{Stage: stage, Answer: answer})
}

// FollowUpUsed reports whether the one follow-up detour of this conversation has been consumed.
func (r StageResponses) FollowUpUsed() bool {
	return r.Has(StageFollowUp)
}

// MarshalJSON writes the record as a JSON object in insertion order.
func (r StageResponses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sr := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(sr.Stage))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(sr.Answer)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the order its keys appear in.
func (r *StageResponses) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResponsesShape, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrResponsesShape
	}

	out := StageResponses{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrResponsesShape, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return ErrResponsesShape
		}
		var answer string
		if err := dec.Decode(&answer); err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrResponsesShape, key, err)
		}
		out = out.Set(Stage(key), answer)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrResponsesShape, err)
	}

	*r = out
	return nil
}

// ConversationState is the full snapshot of one brainstorming conversation.
type ConversationState struct {
	PromptID           PromptID       `json:"promptId"`
	CurrentStage       Stage          `json:"currentStage"`
	Messages           []Message      `json:"messages"`
	StudentResponses   StageResponses `json:"studentResponses"`
	NeedsFollowUp      bool           `json:"needsFollowUp"`
	ProgressPercentage int            `json:"progressPercentage"`
}

// NewConversationState returns the initial snapshot for a freshly selected prompt.
func NewConversationState(promptID PromptID) ConversationState {
	return ConversationState{
		PromptID:         promptID,
		CurrentStage:     StageExploration,
		Messages:         []Message{},
		StudentResponses: StageResponses{},
	}
}

// Validate checks the structural shape of a snapshot received from a client.
// Prompt id resolution is left to the flow package.
func (c *ConversationState) Validate() error {
	if c.PromptID == "" {
		return ErrMissingPrompt
	}
	if c.CurrentStage == "" {
		return ErrMissingStage
	}
	if !IsKnownStage(c.CurrentStage) {
		return fmt.Errorf("%w: %q", ErrInvalidStage, c.CurrentStage)
	}
	for i, m := range c.Messages {
		if m.Role != RoleAssistant && m.Role != RoleUser {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidRole, i, m.Role)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can merge results without aliasing the original.
func (c ConversationState) Clone() ConversationState {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	if c.StudentResponses != nil {
		out.StudentResponses = make(StageResponses, len(c.StudentResponses))
		copy(out.StudentResponses, c.StudentResponses)
	}
	return out
}

// AssistantQuestionFor returns the first assistant message recorded for stage.
func (c *ConversationState) AssistantQuestionFor(stage Stage) (Message, bool) {
	for _, m := range c.Messages {
		if m.Role == RoleAssistant && m.QuestionStage == stage {
			return m, true
		}
	}
	return Message{}, false
}
