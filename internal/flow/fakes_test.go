package flow

import (
	"context"
	"sync"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

type fakeGenerator struct {
	mu             sync.Mutex
	question       string
	followUp       string
	err            error
	block          bool
	questionCalls  int
	followUpCalls  int
	lastIssue      models.IssueTag
	lastStage      models.Stage
	lastConvPrompt models.PromptID
}

func (f *fakeGenerator) GenerateQuestion(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (string, error) {
	f.mu.Lock()
	f.questionCalls++
	f.lastStage = conv.CurrentStage
	f.lastConvPrompt = prompt.ID
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.question, f.err
}

func (f *fakeGenerator) GenerateFollowUp(ctx context.Context, stage models.Stage, answer string, issue models.IssueTag) (string, error) {
	f.mu.Lock()
	f.followUpCalls++
	f.lastIssue = issue
	f.lastStage = stage
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.followUp, f.err
}

type fakeClassifier struct {
	result models.Classification
	err    error
	block  bool
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, stage models.Stage, answer string) (models.Classification, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return models.Classification{}, ctx.Err()
	}
	return f.result, f.err
}

type fakeOutliner struct {
	outline models.Outline
	err     error
}

func (f *fakeOutliner) GenerateOutline(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (models.Outline, error) {
	return f.outline, f.err
}

type fakeGenAI struct {
	text      string
	json      string
	err       error
	lastSys   string
	lastUser  string
	jsonCalls int
}

func (f *fakeGenAI) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.lastSys, f.lastUser = systemPrompt, userPrompt
	return f.text, f.err
}

func (f *fakeGenAI) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.jsonCalls++
	f.lastSys, f.lastUser = systemPrompt, userPrompt
	return f.json, f.err
}

func needsFollowUp(category models.ResponseCategory) models.Classification {
	return models.Classification{NeedsFollowUp: true, Category: category}
}

func sufficient() models.Classification {
	return models.Classification{Category: models.CategorySufficient}
}

func strPtr(s string) *string { return &s }

func convAt(stage models.Stage, responses ...models.StageResponse) models.ConversationState {
	c := models.NewConversationState(models.PromptChallenge)
	c.CurrentStage = stage
	for _, r := range responses {
		c.StudentResponses = c.StudentResponses.Set(r.Stage, r.Answer)
	}
	return c
}
