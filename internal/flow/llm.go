package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BTreeMap/EssayPipe/internal/genai"
	"github.com/BTreeMap/EssayPipe/internal/models"
)

// LLMCollaborator implements the question, classification, outline and refinement
// collaborators on top of a GenAI client.
type LLMCollaborator struct {
	client genai.ClientInterface
}

var (
	_ TextGenerator    = (*LLMCollaborator)(nil)
	_ Classifier       = (*LLMCollaborator)(nil)
	_ OutlineGenerator = (*LLMCollaborator)(nil)
	_ SectionRefiner   = (*LLMCollaborator)(nil)
)

// NewLLMCollaborator returns a collaborator backed by client.
func NewLLMCollaborator(client genai.ClientInterface) *LLMCollaborator {
	return &LLMCollaborator{client: client}
}

// GenerateQuestion asks the model for the current stage's question.
func (l *LLMCollaborator) GenerateQuestion(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (string, error) {
	system := StagePrompt(conv.CurrentStage, prompt.ID, FormatHistory(conv))
	out, err := l.client.GeneratePromptWithContext(ctx, system, "Generate the next question for the student.")
	if err != nil {
		return "", fmt.Errorf("generate question for %s: %w", conv.CurrentStage, err)
	}
	slog.Debug("LLMCollaborator.GenerateQuestion: generated", "stage", conv.CurrentStage, "length", len(out))
	return strings.TrimSpace(out), nil
}

// GenerateFollowUp asks the model for a follow-up question addressing issue.
func (l *LLMCollaborator) GenerateFollowUp(ctx context.Context, stage models.Stage, answer string, issue models.IssueTag) (string, error) {
	out, err := l.client.GeneratePromptWithContext(ctx, FollowUpPrompt(stage, answer, issue), "Generate the follow-up question.")
	if err != nil {
		return "", fmt.Errorf("generate follow-up for %s: %w", stage, err)
	}
	return strings.TrimSpace(out), nil
}

func validateClassification(c models.Classification) error {
	if c.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

// Classify asks the model to judge answer. Unparseable output is an error.
func (l *LLMCollaborator) Classify(ctx context.Context, stage models.Stage, answer string) (models.Classification, error) {
	raw, err := l.client.GenerateJSON(ctx, "", AnalysisPrompt(stage, answer))
	if err != nil {
		return models.Classification{}, fmt.Errorf("classify answer: %w", err)
	}
	c, err := genai.ExtractJSON[models.Classification](raw, validateClassification)
	if err != nil {
		slog.Warn("LLMCollaborator.Classify: unparseable classification", "stage", stage, "error", err)
		return models.Classification{}, err
	}
	return c, nil
}

type outlinePayload struct {
	Sections []struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Content   string `json:"content"`
		CanRefine *bool  `json:"canRefine"`
	} `json:"sections"`
	Explanation    string `json:"explanation"`
	FollowUpPrompt string `json:"followUpPrompt"`
}

func validateOutlinePayload(p outlinePayload) error {
	if len(p.Sections) == 0 {
		return models.ErrEmptyOutline
	}
	return nil
}

// GenerateOutline asks the model for an outline of the finished conversation.
// Sections without an id are numbered section-0, section-1, ... and are refinable unless stated otherwise.
func (l *LLMCollaborator) GenerateOutline(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (models.Outline, error) {
	raw, err := l.client.GenerateJSON(ctx, "", OutlinePrompt(prompt.ID, FormatHistory(conv)))
	if err != nil {
		return models.Outline{}, fmt.Errorf("generate outline: %w", err)
	}
	payload, err := genai.ExtractJSON[outlinePayload](raw, validateOutlinePayload)
	if err != nil {
		return models.Outline{}, err
	}

	outline := models.Outline{
		Sections:       make([]models.OutlineSection, 0, len(payload.Sections)),
		Explanation:    payload.Explanation,
		FollowUpPrompt: payload.FollowUpPrompt,
		PromptID:       prompt.ID,
	}
	for i, s := range payload.Sections {
		section := models.OutlineSection{ID: s.ID, Title: s.Title, Content: s.Content, CanRefine: true}
		if section.ID == "" {
			section.ID = fmt.Sprintf("section-%d", i)
		}
		if s.CanRefine != nil {
			section.CanRefine = *s.CanRefine
		}
		outline.Sections = append(outline.Sections, section)
	}
	return outline, nil
}

var numberedLine = regexp.MustCompile(`^\d+\.\s*`)

// RefineSection asks the model for numbered questions about one outline section.
func (l *LLMCollaborator) RefineSection(ctx context.Context, conv models.ConversationState, title, content string) ([]string, error) {
	out, err := l.client.GeneratePromptWithContext(ctx, RefinementPrompt(title, content, FormatHistory(conv)), "Generate the refinement questions.")
	if err != nil {
		return nil, fmt.Errorf("refine section %q: %w", title, err)
	}
	return parseNumberedList(out), nil
}

func parseNumberedList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !numberedLine.MatchString(line) {
			continue
		}
		if q := strings.TrimSpace(numberedLine.ReplaceAllString(line, "")); q != "" {
			out = append(out, q)
		}
	}
	return out
}
