package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

func TestCanFollowUp(t *testing.T) {
	tests := []struct {
		name string
		conv models.ConversationState
		c    models.Classification
		want bool
	}{
		{"sufficient answer", convAt(models.StageDilemma), sufficient(), false},
		{"needs follow-up on Q3", convAt(models.StageSpecificMoment), needsFollowUp(models.CategoryNeedsDepth), true},
		{"follow-up already used", convAt(models.StageDilemma, models.StageResponse{Stage: models.StageFollowUp, Answer: "x"}), needsFollowUp(models.CategoryNeedsDepth), false},
		{"on FOLLOWUP", convAt(models.StageFollowUp), needsFollowUp(models.CategoryNeedsDepth), false},
		{"on COMPLETE", convAt(models.StageComplete), needsFollowUp(models.CategoryNeedsDepth), false},
		{"Q1 is exempt", convAt(models.StageExploration), needsFollowUp(models.CategoryOffTrack), false},
		{"Q7 allowed", convAt(models.StageFuture), needsFollowUp(models.CategoryNeedsExpansion), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanFollowUp(tt.conv, tt.c))
		})
	}
}

func TestIssueForCategory(t *testing.T) {
	assert.Equal(t, models.IssueTooVague, IssueForCategory(models.CategoryNeedsSpecificity))
	assert.Equal(t, models.IssueTooAbstract, IssueForCategory(models.CategoryNeedsDepth))
	assert.Equal(t, models.IssueTooShort, IssueForCategory(models.CategoryNeedsExpansion))
	assert.Equal(t, models.IssueMissedQuestion, IssueForCategory(models.CategoryOffTrack))
	assert.Equal(t, models.IssueTooVague, IssueForCategory(models.CategorySufficient))
	assert.Equal(t, models.IssueTooVague, IssueForCategory("WHATEVER"))
}
