package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// GenericFollowUpQuestion is asked when the follow-up generator is unavailable.
const GenericFollowUpQuestion = "Can you tell me more about that? I'd love to hear more specific details."

// CompletionMessage is returned when a question is requested for a finished conversation.
const CompletionMessage = "You've answered every question. Generate your outline whenever you're ready."

var stageTemplates = map[models.Stage]string{
	models.StageSelection:      "Great start. Now, from what you've shared, which specific experience or moment feels most important to you? Why does this one stand out?",
	models.StageSpecificMoment: "Let's zoom in. Can you describe a specific moment within that experience? What did you see, hear, or feel? What was happening around you?",
	models.StageDilemma:        "What was the challenge or dilemma you faced in that moment? What made it difficult? What were you struggling with?",
	models.StageAction:         "What did you do? What action did you take, or what choice did you make? How did you respond?",
	models.StageDiscovery:      "What did you learn from this experience? What did you discover about yourself, others, or the world?",
	models.StageFuture:         "How has this experience shaped who you are today? What does it mean for your future?",
}

// FallbackQuestion returns the static question for stage. Stages without a template get the opening question.
func FallbackQuestion(stage models.Stage, prompt models.EssayPrompt) string {
	switch stage {
	case models.StageFollowUp:
		return GenericFollowUpQuestion
	case models.StageComplete:
		return CompletionMessage
	}
	if q, ok := stageTemplates[stage]; ok {
		return q
	}
	fullText := prompt.FullText
	if fullText == "" {
		fullText = "your chosen prompt"
	}
	return fmt.Sprintf("Let's start with the prompt: \"%s\"\n\nThink about this prompt for a moment. What comes to mind? What experiences, moments, or stories feel most meaningful to you right now?", fullText)
}

// fallbackClassification treats anything shorter than 20 trimmed characters as needing expansion.
func fallbackClassification(answer string) models.Classification {
	return models.Classification{
		NeedsFollowUp: utf8.RuneCountInString(strings.TrimSpace(answer)) < 20,
		Category:      models.CategoryNeedsExpansion,
		Reasoning:     "Error analyzing response",
	}
}
