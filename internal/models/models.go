// Package models defines the core data structures for EssayPipe.
//
// It includes the conversation snapshot, outlines, sessions and the API response
// envelopes shared across modules.
package models

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// ErrorBody is the error shape of the chat and outline endpoints.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Conversation *ConversationState `json:"conversation"`
	UserResponse *string            `json:"userResponse,omitempty"`
}

// OutlineRequest is the body of an outline generation call.
type OutlineRequest struct {
	Conversation *ConversationState `json:"conversation"`
}

// CreateSessionRequest starts a server-side session for a prompt.
type CreateSessionRequest struct {
	PromptID PromptID `json:"promptId"`
}

// SessionTurnRequest submits an optional answer to a stored session.
type SessionTurnRequest struct {
	UserResponse *string `json:"userResponse,omitempty"`
}

// ShareOutlineRequest asks for a stored outline to be texted to a recipient.
type ShareOutlineRequest struct {
	To string `json:"to"`
}

// RefineSectionRequest asks for questions that deepen one outline section.
type RefineSectionRequest struct {
	Conversation   *ConversationState `json:"conversation"`
	SectionTitle   string             `json:"sectionTitle"`
	SectionContent string             `json:"sectionContent"`
}

// RefineSectionResponse carries the refinement questions.
type RefineSectionResponse struct {
	Questions []string `json:"questions"`
}

// SessionTurnResponse is the result of a turn against a stored session.
type SessionTurnResponse struct {
	Session Session     `json:"session"`
	Turn    interface{} `json:"turn"`
}
