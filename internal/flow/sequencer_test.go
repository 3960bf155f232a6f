package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

func TestResolveRealStage(t *testing.T) {
	r := func(s models.Stage) models.StageResponse { return models.StageResponse{Stage: s, Answer: "a"} }

	tests := []struct {
		name string
		conv models.ConversationState
		want models.Stage
	}{
		{"not on follow-up", convAt(models.StageDilemma), models.StageDilemma},
		{"last real stage", convAt(models.StageFollowUp, r(models.StageExploration), r(models.StageSelection), r(models.StageAction)), models.StageAction},
		{"skips FOLLOWUP and COMPLETE keys", convAt(models.StageFollowUp, r(models.StageAction), r(models.StageFollowUp), r(models.StageComplete)), models.StageAction},
		{"recording order, not sequence order", convAt(models.StageFollowUp, r(models.StageDiscovery), r(models.StageSelection)), models.StageSelection},
		{"no responses", convAt(models.StageFollowUp), models.StageExploration},
		{"only FOLLOWUP recorded", convAt(models.StageFollowUp, r(models.StageFollowUp)), models.StageExploration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRealStage(tt.conv))
		})
	}
}

func TestNextStageAfter(t *testing.T) {
	tests := map[models.Stage]models.Stage{
		models.StageExploration:    models.StageSelection,
		models.StageSelection:      models.StageSpecificMoment,
		models.StageSpecificMoment: models.StageDilemma,
		models.StageDilemma:        models.StageAction,
		models.StageAction:         models.StageDiscovery,
		models.StageDiscovery:      models.StageFuture,
		models.StageFuture:         models.StageComplete,
		models.StageComplete:       models.StageComplete,
		models.StageFollowUp:       models.StageSelection,
		"bogus":                    models.StageSelection,
	}
	for in, want := range tests {
		assert.Equal(t, want, NextStageAfter(in), "after %q", in)
	}
}
