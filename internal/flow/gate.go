package flow

import "github.com/BTreeMap/EssayPipe/internal/models"

// CanFollowUp decides whether a classified answer earns the conversation's single follow-up detour.
// The opening brainstorm (Q1) never gets one.
func CanFollowUp(conv models.ConversationState, c models.Classification) bool {
	if !c.NeedsFollowUp {
		return false
	}
	if conv.StudentResponses.FollowUpUsed() {
		return false
	}
	switch conv.CurrentStage {
	case models.StageFollowUp, models.StageComplete, models.StageExploration:
		return false
	}
	return true
}

// IssueForCategory maps a classifier category onto the issue tag used to phrase a follow-up.
func IssueForCategory(category models.ResponseCategory) models.IssueTag {
	switch category {
	case models.CategoryNeedsSpecificity:
		return models.IssueTooVague
	case models.CategoryNeedsDepth:
		return models.IssueTooAbstract
	case models.CategoryNeedsExpansion:
		return models.IssueTooShort
	case models.CategoryOffTrack:
		return models.IssueMissedQuestion
	default:
		return models.IssueTooVague
	}
}
