package flow

import "github.com/BTreeMap/EssayPipe/internal/models"

// ResolveRealStage returns the question stage a conversation is actually on.
// While on FOLLOWUP that is the most recently recorded question stage, falling back to Q1.
func ResolveRealStage(conv models.ConversationState) models.Stage {
	if conv.CurrentStage != models.StageFollowUp {
		return conv.CurrentStage
	}
	responses := conv.StudentResponses
	for i := len(responses) - 1; i >= 0; i-- {
		switch responses[i].Stage {
		case models.StageFollowUp, models.StageComplete:
			continue
		}
		return responses[i].Stage
	}
	return models.StageExploration
}

// NextStageAfter returns the stage that follows stage in the sequence.
// Unknown stages advance to Q2; COMPLETE is terminal.
func NextStageAfter(stage models.Stage) models.Stage {
	idx := stageIndex(stage)
	if idx == -1 {
		return models.StageSelection
	}
	if idx+1 >= len(orderedStages) {
		return models.StageComplete
	}
	return orderedStages[idx+1]
}

// ProgressFor returns the progress percentage to report for stage.
func ProgressFor(stage models.Stage) int {
	return ProgressWeight(stage)
}
