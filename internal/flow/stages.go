// Package flow implements the brainstorming state machine: stage sequencing,
// the follow-up gate, and the turn orchestrator that calls out to the
// question, classification and outline collaborators.
package flow

import "github.com/BTreeMap/EssayPipe/internal/models"

// orderedStages is the fixed question sequence. FOLLOWUP is not part of it.
var orderedStages = []models.Stage{
	models.StageExploration,
	models.StageSelection,
	models.StageSpecificMoment,
	models.StageDilemma,
	models.StageAction,
	models.StageDiscovery,
	models.StageFuture,
	models.StageComplete,
}

var progressWeights = map[models.Stage]int{
	models.StageExploration:    14,
	models.StageSelection:      28,
	models.StageSpecificMoment: 42,
	models.StageDilemma:        56,
	models.StageAction:         70,
	models.StageDiscovery:      85,
	models.StageFuture:         100,
	models.StageFollowUp:       50,
	models.StageComplete:       100,
}

// OrderedStages returns a copy of the stage sequence, COMPLETE last.
func OrderedStages() []models.Stage {
	out := make([]models.Stage, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// ProgressWeight returns the progress percentage associated with stage, or 0 for unknown stages.
func ProgressWeight(stage models.Stage) int {
	return progressWeights[stage]
}

func stageIndex(stage models.Stage) int {
	for i, s := range orderedStages {
		if s == stage {
			return i
		}
	}
	return -1
}
