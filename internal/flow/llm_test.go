package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/EssayPipe/internal/genai"
	"github.com/BTreeMap/EssayPipe/internal/models"
)

func TestLLMClassify(t *testing.T) {
	g := &fakeGenAI{json: "```json\n{\"category\":\"NEEDS_DEPTH\",\"reasoning\":\"generic\",\"needsFollowUp\":true}\n```"}
	l := NewLLMCollaborator(g)

	c, err := l.Classify(context.Background(), models.StageDiscovery, "I learned to persevere.")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryNeedsDepth, c.Category)
	assert.True(t, c.NeedsFollowUp)
	assert.Contains(t, g.lastUser, "I learned to persevere.")
	assert.Contains(t, g.lastUser, string(models.StageDiscovery))
}

func TestLLMClassifyMalformed(t *testing.T) {
	l := NewLLMCollaborator(&fakeGenAI{json: "not json at all"})
	_, err := l.Classify(context.Background(), models.StageDilemma, "x")
	assert.ErrorIs(t, err, genai.ErrInvalidOutput)

	l = NewLLMCollaborator(&fakeGenAI{json: `{"reasoning":"no category"}`})
	_, err = l.Classify(context.Background(), models.StageDilemma, "x")
	assert.ErrorIs(t, err, genai.ErrInvalidOutput)
}

func TestMalformedClassificationFallsBackInOrchestrator(t *testing.T) {
	l := NewLLMCollaborator(&fakeGenAI{json: "garbage", text: "Tell me more?"})
	o := NewOrchestrator(l, l, l)

	res, err := o.HandleTurn(context.Background(), convAt(models.StageAction), strPtr("ok"))
	require.NoError(t, err)
	assert.Equal(t, TurnFollowUp, res.Kind)
	assert.Equal(t, "Tell me more?", res.FollowUpQuestion)
}

func TestLLMGenerateQuestion(t *testing.T) {
	g := &fakeGenAI{text: "  Which experience matters most?  \n"}
	l := NewLLMCollaborator(g)
	prompt, _ := models.LookupPrompt(models.PromptIdentity)

	conv := convAt(models.StageSelection)
	conv.Messages = []models.Message{{Role: models.RoleUser, Content: "soccer, violin"}}
	q, err := l.GenerateQuestion(context.Background(), conv, prompt)
	require.NoError(t, err)
	assert.Equal(t, "Which experience matters most?", q)
	assert.Contains(t, g.lastSys, "STUDENT: soccer, violin")
	assert.Contains(t, g.lastSys, BaseSystemPrompt)
}

func TestLLMGenerateOutline(t *testing.T) {
	g := &fakeGenAI{json: `Here you go: {"sections":[{"title":"Hook","content":"The lab."},{"id":"custom","title":"End","content":"x","canRefine":false}],"explanation":"why","followUpPrompt":"send it"}`}
	l := NewLLMCollaborator(g)
	prompt, _ := models.LookupPrompt(models.PromptChallenge)

	outline, err := l.GenerateOutline(context.Background(), convAt(models.StageComplete), prompt)
	require.NoError(t, err)
	require.Len(t, outline.Sections, 2)
	assert.Equal(t, "section-0", outline.Sections[0].ID)
	assert.True(t, outline.Sections[0].CanRefine)
	assert.Equal(t, "custom", outline.Sections[1].ID)
	assert.False(t, outline.Sections[1].CanRefine)
	assert.Equal(t, "why", outline.Explanation)
	assert.Equal(t, models.PromptChallenge, outline.PromptID)
}

func TestLLMGenerateOutlineEmpty(t *testing.T) {
	l := NewLLMCollaborator(&fakeGenAI{json: `{"sections":[]}`})
	prompt, _ := models.LookupPrompt(models.PromptChallenge)
	_, err := l.GenerateOutline(context.Background(), convAt(models.StageComplete), prompt)
	assert.ErrorIs(t, err, genai.ErrInvalidOutput)
}

func TestLLMRefineSection(t *testing.T) {
	l := NewLLMCollaborator(&fakeGenAI{text: "Sure!\n1. What did you hear?\n2.   What were you thinking?\nThanks"})
	qs, err := l.RefineSection(context.Background(), convAt(models.StageComplete), "Hook", "The lab.")
	require.NoError(t, err)
	assert.Equal(t, []string{"What did you hear?", "What were you thinking?"}, qs)
}
