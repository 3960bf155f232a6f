package genai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debugTestContent = `{"needsFollowUp": false, "category": "SUFFICIENT"}`

// Test the debug logging functionality
func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()

	client := &Client{
		chat:        &mockChatService{resp: completion(debugTestContent)},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debugMode:   true,
		stateDir:    tempDir,
	}

	_, err := client.GenerateJSON(context.Background(), "System prompt", "User prompt")
	require.NoError(t, err)

	debugDir := filepath.Join(tempDir, "debug")
	files, err := os.ReadDir(debugDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := os.ReadFile(filepath.Join(debugDir, files[0].Name()))
	require.NoError(t, err)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &logEntry))
	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		assert.Contains(t, logEntry, field)
	}
	assert.Equal(t, "GenerateJSON", logEntry["method"])
	assert.Equal(t, "test-model", logEntry["model"])
}

// Test that debug logging is disabled when debug mode is false
func TestDebugLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()

	client := &Client{
		chat:        &mockChatService{resp: completion(debugTestContent)},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debugMode:   false,
		stateDir:    tempDir,
	}

	_, err := client.GeneratePromptWithContext(context.Background(), "System prompt", "User prompt")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(tempDir, "debug"))
	assert.True(t, os.IsNotExist(err), "debug directory should not be created when debug mode is disabled")
}
