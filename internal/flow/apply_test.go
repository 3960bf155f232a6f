package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecordQuestion(t *testing.T) {
	conv := convAt(models.StageSelection)
	res := TurnResult{Kind: TurnQuestion, Question: "Which one?", QuestionStage: models.StageSelection}

	out := RecordQuestion(conv, res, testNow)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, models.RoleAssistant, out.Messages[0].Role)
	assert.Equal(t, models.StageSelection, out.Messages[0].QuestionStage)
	assert.NotEmpty(t, out.Messages[0].ID)
	assert.Equal(t, testNow, out.Messages[0].Timestamp)
	assert.Empty(t, conv.Messages, "input snapshot must not change")

	again := RecordQuestion(out, res, testNow)
	assert.Len(t, again.Messages, 1, "question for a stage is recorded once")
}

func TestRecordQuestionIgnoresStaleStage(t *testing.T) {
	conv := convAt(models.StageDilemma)
	res := TurnResult{Kind: TurnQuestion, Question: "late", QuestionStage: models.StageSelection}
	assert.Empty(t, RecordQuestion(conv, res, testNow).Messages)

	adv := TurnResult{Kind: TurnAdvance, NextStage: models.StageAction}
	assert.Empty(t, RecordQuestion(conv, adv, testNow).Messages)
}

func TestApplyTurnAdvance(t *testing.T) {
	conv := convAt(models.StageDilemma)
	res := TurnResult{Kind: TurnAdvance, NextStage: models.StageAction, ProgressPercentage: 70}

	out := ApplyTurn(conv, "I chose the team", res, testNow)

	assert.Equal(t, models.StageAction, out.CurrentStage)
	assert.Equal(t, 70, out.ProgressPercentage)
	assert.False(t, out.NeedsFollowUp)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, models.RoleUser, out.Messages[0].Role)
	assert.Equal(t, models.StageDilemma, out.Messages[0].QuestionStage)
	answer, ok := out.StudentResponses.Get(models.StageDilemma)
	assert.True(t, ok)
	assert.Equal(t, "I chose the team", answer)
	assert.Equal(t, models.StageDilemma, conv.CurrentStage)
}

func TestApplyTurnFollowUpThenResume(t *testing.T) {
	conv := convAt(models.StageSpecificMoment)
	follow := TurnResult{Kind: TurnFollowUp, NextStage: models.StageFollowUp, FollowUpQuestion: "More?", ProgressPercentage: 42}

	out := ApplyTurn(conv, "short", follow, testNow)
	assert.Equal(t, models.StageFollowUp, out.CurrentStage)
	assert.True(t, out.NeedsFollowUp)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, models.StageFollowUp, out.Messages[1].QuestionStage)
	assert.Equal(t, "More?", out.Messages[1].Content)
	assert.Equal(t, 42, out.ProgressPercentage)

	assert.Equal(t, models.StageSpecificMoment, ResolveRealStage(out))

	resume := TurnResult{Kind: TurnAdvance, NextStage: models.StageDilemma, ProgressPercentage: 56}
	out = ApplyTurn(out, "the longer answer", resume, testNow)
	assert.True(t, out.StudentResponses.FollowUpUsed())
	assert.Equal(t, models.StageDilemma, out.CurrentStage)
	assert.False(t, out.NeedsFollowUp)
}

func TestApplyTurnKeepsProgressOnZero(t *testing.T) {
	conv := convAt(models.StageAction)
	conv.ProgressPercentage = 56
	out := ApplyTurn(conv, "x", TurnResult{Kind: TurnAdvance, NextStage: "bogus"}, testNow)
	assert.Equal(t, 56, out.ProgressPercentage)
}
