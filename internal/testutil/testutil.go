// Package testutil provides common test utilities and helpers for EssayPipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// FakeCollaborator is a scripted stand-in for the LLM collaborators.
// Answers shorter than ShortAnswer runes are classified NEEDS_EXPANSION, everything else SUFFICIENT.
type FakeCollaborator struct {
	mu sync.Mutex

	ShortAnswer int
	// Err, when set, fails every call.
	Err error
	// Outline is returned by GenerateOutline; a default single-section outline is used when empty.
	Outline models.Outline

	QuestionCalls int
	ClassifyCalls int
	OutlineCalls  int
}

// NewFakeCollaborator returns a collaborator that treats answers under 20 runes as too short.
func NewFakeCollaborator() *FakeCollaborator {
	return &FakeCollaborator{ShortAnswer: 20}
}

func (f *FakeCollaborator) GenerateQuestion(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QuestionCalls++
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("Question for %s?", conv.CurrentStage), nil
}

func (f *FakeCollaborator) GenerateFollowUp(ctx context.Context, stage models.Stage, answer string, issue models.IssueTag) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("Follow-up for %s (%s)?", stage, issue), nil
}

func (f *FakeCollaborator) Classify(ctx context.Context, stage models.Stage, answer string) (models.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClassifyCalls++
	if f.Err != nil {
		return models.Classification{}, f.Err
	}
	if len([]rune(answer)) < f.ShortAnswer {
		return models.Classification{NeedsFollowUp: true, Category: models.CategoryNeedsExpansion, Reasoning: "short"}, nil
	}
	return models.Classification{Category: models.CategorySufficient, Reasoning: "detailed"}, nil
}

func (f *FakeCollaborator) GenerateOutline(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (models.Outline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OutlineCalls++
	if f.Err != nil {
		return models.Outline{}, f.Err
	}
	if len(f.Outline.Sections) > 0 {
		return f.Outline, nil
	}
	return models.Outline{
		Sections:    []models.OutlineSection{{ID: "section-0", Title: "Opening Hook", Content: "Your words.", CanRefine: true}},
		Explanation: "Built from your answers.",
	}, nil
}

func (f *FakeCollaborator) RefineSection(ctx context.Context, conv models.ConversationState, title, content string) ([]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return []string{"What did it look like?", "Who else was there?"}, nil
}

// TestingT is the subset of testing.TB used by the assertion helpers.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TestingT, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse envelope and validates the status field.
func AssertJSONResponse(t TestingT, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Errorf("response missing or invalid 'status' field")
	}
	return response
}

// AssertErrorBody decodes an {error, details} body and checks the error message.
func AssertErrorBody(t TestingT, rr *httptest.ResponseRecorder, expectedError string) models.ErrorBody {
	t.Helper()
	var body models.ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Error != expectedError {
		t.Errorf("expected error %q, got %q (details %q)", expectedError, body.Error, body.Details)
	}
	return body
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
