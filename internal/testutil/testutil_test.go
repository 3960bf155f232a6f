package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// mockTestingT records failures instead of failing the enclosing test.
type mockTestingT struct {
	failed   bool
	errorMsg string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.errorMsg = fmt.Sprintf(format, args...)
	panic("fatal")
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{name: "matching status codes", expected: 200, actual: 200, shouldFail: false},
		{name: "different status codes", expected: 200, actual: 404, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			assert.Equal(t, tt.shouldFail, mockT.failed)
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	tests := []struct {
		name           string
		jsonBody       string
		expectedStatus string
		shouldFail     bool
	}{
		{name: "matching status", jsonBody: `{"status":"ok","result":"x"}`, expectedStatus: "ok"},
		{name: "different status", jsonBody: `{"status":"error"}`, expectedStatus: "ok", shouldFail: true},
		{name: "invalid JSON", jsonBody: `{"status":}`, expectedStatus: "ok", shouldFail: true},
		{name: "missing status field", jsonBody: `{"result":"x"}`, expectedStatus: "ok", shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			rr := httptest.NewRecorder()
			rr.Body.WriteString(tt.jsonBody)

			func() {
				defer func() { _ = recover() }()
				AssertJSONResponse(mockT, rr, tt.expectedStatus)
			}()

			assert.Equal(t, tt.shouldFail, mockT.failed, mockT.errorMsg)
		})
	}
}

func TestAssertErrorBody(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"error":"conversation required"}`)
	body := AssertErrorBody(t, rr, "conversation required")
	assert.Empty(t, body.Details)
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   interface{}
	}{
		{name: "no body", method: "GET", body: nil},
		{name: "raw string body", method: "POST", body: `{"promptId":"identity"}`},
		{name: "struct body", method: "POST", body: models.CreateSessionRequest{PromptID: models.PromptChoice}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, tt.method, "/api/sessions", tt.body)
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, "/api/sessions", req.URL.Path)
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		})
	}
}

func TestFakeCollaborator(t *testing.T) {
	ctx := context.Background()
	f := NewFakeCollaborator()

	c, err := f.Classify(ctx, models.StageSelection, "short")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryNeedsExpansion, c.Category, "short answer")
	assert.True(t, c.NeedsFollowUp)
	c, _ = f.Classify(ctx, models.StageSelection, "a long and specific answer about the robotics club")
	assert.Equal(t, models.CategorySufficient, c.Category)

	q, _ := f.GenerateQuestion(ctx, models.NewConversationState(models.PromptChoice), models.EssayPrompt{})
	assert.Equal(t, "Question for Q1_EXPLORATION?", q)
	assert.Equal(t, 1, f.QuestionCalls)
	assert.Equal(t, 2, f.ClassifyCalls)

	f.Err = errors.New("down")
	_, err = f.GenerateOutline(ctx, models.ConversationState{}, models.EssayPrompt{})
	assert.Error(t, err, "expected error from GenerateOutline")
}
