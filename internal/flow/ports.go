package flow

import (
	"context"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// TextGenerator writes the assistant's questions.
type TextGenerator interface {
	// GenerateQuestion writes the question for the conversation's current stage.
	GenerateQuestion(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (string, error)
	// GenerateFollowUp writes a single follow-up question addressing issue in answer.
	GenerateFollowUp(ctx context.Context, stage models.Stage, answer string, issue models.IssueTag) (string, error)
}

// Classifier judges whether an answer is good enough to move on.
type Classifier interface {
	Classify(ctx context.Context, stage models.Stage, answer string) (models.Classification, error)
}

// OutlineGenerator builds an essay outline from a finished conversation.
type OutlineGenerator interface {
	GenerateOutline(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (models.Outline, error)
}

// SectionRefiner proposes questions that deepen one section of an outline.
type SectionRefiner interface {
	RefineSection(ctx context.Context, conv models.ConversationState, title, content string) ([]string, error)
}
