package flow

import (
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// RecordQuestion appends the assistant question from a question turn to conv.
// Results for a stage other than the conversation's current one are ignored, as is a
// question already recorded for that stage.
func RecordQuestion(conv models.ConversationState, result TurnResult, now time.Time) models.ConversationState {
	if result.Kind != TurnQuestion || result.QuestionStage != conv.CurrentStage || result.Question == "" {
		return conv
	}
	if _, ok := conv.AssistantQuestionFor(conv.CurrentStage); ok {
		return conv
	}
	out := conv.Clone()
	out.Messages = append(out.Messages, newMessage(models.RoleAssistant, result.Question, conv.CurrentStage, now))
	return out
}

// ApplyTurn merges an answer and the turn result it produced into a new snapshot.
// The answer is recorded under the stage it was given for; a follow-up result also
// records the follow-up question and moves the conversation onto FOLLOWUP.
func ApplyTurn(conv models.ConversationState, answer string, result TurnResult, now time.Time) models.ConversationState {
	out := conv.Clone()
	answered := conv.CurrentStage

	out.Messages = append(out.Messages, newMessage(models.RoleUser, answer, answered, now))
	out.StudentResponses = out.StudentResponses.Set(answered, answer)

	switch result.Kind {
	case TurnFollowUp:
		out.Messages = append(out.Messages, newMessage(models.RoleAssistant, result.FollowUpQuestion, models.StageFollowUp, now))
		out.CurrentStage = models.StageFollowUp
		out.NeedsFollowUp = true
	case TurnAdvance:
		out.CurrentStage = result.NextStage
		out.NeedsFollowUp = false
	}
	if result.ProgressPercentage != 0 {
		out.ProgressPercentage = result.ProgressPercentage
	}
	return out
}

func newMessage(role models.Role, content string, stage models.Stage, now time.Time) models.Message {
	return models.Message{
		ID:            uuid.NewString(),
		Role:          role,
		Content:       content,
		Timestamp:     now,
		QuestionStage: stage,
	}
}
