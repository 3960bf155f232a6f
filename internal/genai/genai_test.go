package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func newTestClient(chat chatService) *Client {
	return &Client{chat: chat, model: "test-model", temperature: 0.2, maxTokens: 100}
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestGeneratePromptWithContext_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("Hello World")}
	client := newTestClient(mock)

	out, err := client.GeneratePromptWithContext(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", out)
	assert.Len(t, mock.lastParams.Messages, 2, "system and user messages")
	assert.Equal(t, "test-model", string(mock.lastParams.Model))
}

func TestGeneratePromptWithContext_SkipsEmptySystemPrompt(t *testing.T) {
	mock := &mockChatService{resp: completion("ok")}
	client := newTestClient(mock)

	_, err := client.GeneratePromptWithContext(context.Background(), "  ", "user prompt")
	require.NoError(t, err)
	assert.Len(t, mock.lastParams.Messages, 1, "only the user message")
}

func TestGenerateJSON_SetsResponseFormat(t *testing.T) {
	mock := &mockChatService{resp: completion(`{"a":1}`)}
	client := newTestClient(mock)

	out, err := client.GenerateJSON(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
	assert.NotNil(t, mock.lastParams.ResponseFormat.OfJSONObject, "JSON object response format requested")
}

func TestGeneratePromptWithContext_ServiceError(t *testing.T) {
	client := newTestClient(&mockChatService{err: errors.New("service failure")})
	_, err := client.GeneratePromptWithContext(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service failure")
}

func TestGeneratePromptWithContext_NoChoices(t *testing.T) {
	client := newTestClient(&mockChatService{resp: openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}})
	_, err := client.GeneratePromptWithContext(context.Background(), "sys", "usr")
	assert.Equal(t, ErrNoChoicesReturned, err)
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-test"), WithMaxTokens(50))
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cli.model)
	assert.EqualValues(t, 50, cli.maxTokens)
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cli, err := NewClient()
	require.NoError(t, err, "env key should be used")
	assert.Equal(t, DefaultModel, cli.model)
}
