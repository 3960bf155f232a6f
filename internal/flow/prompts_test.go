package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No conversation history yet.", FormatHistory(convAt(models.StageExploration)))

	conv := convAt(models.StageDilemma,
		models.StageResponse{Stage: models.StageSelection, Answer: "robotics"},
		models.StageResponse{Stage: models.StageFollowUp, Answer: "skip me"},
	)
	conv.Messages = []models.Message{
		{Role: models.RoleAssistant, Content: "Which one?"},
		{Role: models.RoleUser, Content: "robotics"},
	}
	h := FormatHistory(conv)
	assert.True(t, strings.HasPrefix(h, "ASSISTANT: Which one?\n\nSTUDENT: robotics"))
	assert.Contains(t, h, "--- Additional Context ---\nStudent's response to Q2_SELECTION: robotics")
	assert.NotContains(t, h, "skip me")
}

func TestStagePrompt(t *testing.T) {
	q1 := StagePrompt(models.StageExploration, models.PromptBelief, "")
	assert.Contains(t, q1, "Questioning or Challenging a Belief")
	assert.Contains(t, q1, "A quick phrase for each is fine.")

	q4 := StagePrompt(models.StageDilemma, models.PromptBelief, "HISTORY")
	assert.Contains(t, q4, "DILEMMA")
	assert.Contains(t, q4, "HISTORY")
}

func TestFollowUpPromptUnknownIssue(t *testing.T) {
	p := FollowUpPrompt(models.StageDilemma, "meh", "weird")
	assert.Contains(t, p, issueGuidance[models.IssueTooVague])
	assert.Contains(t, p, `"meh"`)
}

func TestFallbackQuestion(t *testing.T) {
	assert.Contains(t, FallbackQuestion(models.StageExploration, models.EssayPrompt{}), "your chosen prompt")
	assert.Contains(t, FallbackQuestion("unknown", models.EssayPrompt{FullText: "Describe a belief."}), `"Describe a belief."`)
	assert.Equal(t, GenericFollowUpQuestion, FallbackQuestion(models.StageFollowUp, models.EssayPrompt{}))
}

func TestFallbackClassification(t *testing.T) {
	c := fallbackClassification("   short   ")
	assert.True(t, c.NeedsFollowUp)
	assert.Equal(t, models.CategoryNeedsExpansion, c.Category)

	c = fallbackClassification(strings.Repeat("a", 20))
	assert.False(t, c.NeedsFollowUp)
}
