package models

// Stage represents a named step of the brainstorming conversation.
type Stage string

// Stage constants. The ordered progression lives in the flow package; FOLLOWUP is a
// transient detour and never part of that progression.
const (
	StageExploration    Stage = "Q1_EXPLORATION"
	StageSelection      Stage = "Q2_SELECTION"
	StageSpecificMoment Stage = "Q3_SPECIFIC_MOMENT"
	StageDilemma        Stage = "Q4_DILEMMA"
	StageAction         Stage = "Q5_ACTION"
	StageDiscovery      Stage = "Q6_DISCOVERY"
	StageFuture         Stage = "Q7_FUTURE"
	StageComplete       Stage = "COMPLETE"
	StageFollowUp       Stage = "FOLLOWUP"
)

// IsKnownStage reports whether s is one of the nine stage values.
func IsKnownStage(s Stage) bool {
	switch s {
	case StageExploration, StageSelection, StageSpecificMoment, StageDilemma,
		StageAction, StageDiscovery, StageFuture, StageComplete, StageFollowUp:
		return true
	default:
		return false
	}
}

// ResponseCategory is the quality judgment a classifier assigns to an answer.
type ResponseCategory string

const (
	CategoryNeedsSpecificity ResponseCategory = "NEEDS_SPECIFICITY"
	CategoryNeedsDepth       ResponseCategory = "NEEDS_DEPTH"
	CategoryNeedsExpansion   ResponseCategory = "NEEDS_EXPANSION"
	CategoryOffTrack         ResponseCategory = "OFF_TRACK"
	CategorySufficient       ResponseCategory = "SUFFICIENT"
)

// IssueTag names the problem a follow-up question should address.
type IssueTag string

const (
	IssueTooVague       IssueTag = "too_vague"
	IssueTooAbstract    IssueTag = "too_abstract"
	IssueTooShort       IssueTag = "too_short"
	IssueMissedQuestion IssueTag = "missed_question"
)

// Classification is the result of judging a single answer.
type Classification struct {
	NeedsFollowUp bool             `json:"needsFollowUp"`
	Category      ResponseCategory `json:"category"`
	Reasoning     string           `json:"reasoning"`
}

// Role identifies who authored a conversation message.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)
