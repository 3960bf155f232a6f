package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/EssayPipe/internal/models"
)

// DefaultCollaboratorTimeout bounds each call to a question, classification or outline collaborator.
const DefaultCollaboratorTimeout = 20 * time.Second

var (
	// ErrInvalidPrompt is returned when a conversation names a prompt that is not in the catalog.
	ErrInvalidPrompt = errors.New("invalid prompt id")
	// ErrOutlineUnavailable is returned when no outline generator is configured.
	ErrOutlineUnavailable = errors.New("outline generator not configured")
	// ErrRefinerUnavailable is returned when no section refiner is configured.
	ErrRefinerUnavailable = errors.New("section refiner not configured")
	// ErrCollaboratorUnavailable is returned by a nil collaborator.
	ErrCollaboratorUnavailable = errors.New("collaborator not configured")
)

// InvalidPromptError carries the rejected prompt id.
type InvalidPromptError struct {
	PromptID models.PromptID
}

func (e *InvalidPromptError) Error() string {
	return fmt.Sprintf("invalid prompt id %q", e.PromptID)
}

// Unwrap lets errors.Is match ErrInvalidPrompt.
func (e *InvalidPromptError) Unwrap() error {
	return ErrInvalidPrompt
}

// TurnKind distinguishes the three shapes of a turn result.
type TurnKind string

const (
	// TurnQuestion carries the question for the current stage.
	TurnQuestion TurnKind = "question"
	// TurnFollowUp sends the conversation on its follow-up detour.
	TurnFollowUp TurnKind = "followup"
	// TurnAdvance moves the conversation to the next stage.
	TurnAdvance TurnKind = "advance"
)

// TurnResult is the outcome of one call to HandleTurn.
type TurnResult struct {
	Kind               TurnKind
	Question           string
	QuestionStage      models.Stage
	NextStage          models.Stage
	FollowUpQuestion   string
	ProgressPercentage int
	// StageBeforeFollowUp is the question stage the detour started from.
	StageBeforeFollowUp models.Stage
	// Classification is the judgement the turn was decided on. Not part of the wire shape.
	Classification *models.Classification
}

// NeedsFollowUp reports whether the result starts the follow-up detour.
func (r TurnResult) NeedsFollowUp() bool {
	return r.Kind == TurnFollowUp
}

type questionWire struct {
	Question      string       `json:"question"`
	QuestionStage models.Stage `json:"questionStage"`
}

type followUpWire struct {
	NextStage           models.Stage `json:"nextStage"`
	NeedsFollowUp       bool         `json:"needsFollowUp"`
	FollowUpQuestion    string       `json:"followUpQuestion"`
	ProgressPercentage  int          `json:"progressPercentage"`
	StageBeforeFollowUp models.Stage `json:"stageBeforeFollowup,omitempty"`
}

type advanceWire struct {
	NextStage          models.Stage `json:"nextStage"`
	NeedsFollowUp      bool         `json:"needsFollowUp"`
	ProgressPercentage int          `json:"progressPercentage"`
}

// MarshalJSON writes the wire shape matching the result kind.
func (r TurnResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case TurnQuestion:
		return json.Marshal(questionWire{Question: r.Question, QuestionStage: r.QuestionStage})
	case TurnFollowUp:
		return json.Marshal(followUpWire{
			NextStage:           r.NextStage,
			NeedsFollowUp:       true,
			FollowUpQuestion:    r.FollowUpQuestion,
			ProgressPercentage:  r.ProgressPercentage,
			StageBeforeFollowUp: r.StageBeforeFollowUp,
		})
	case TurnAdvance:
		return json.Marshal(advanceWire{NextStage: r.NextStage, ProgressPercentage: r.ProgressPercentage})
	default:
		return nil, fmt.Errorf("unknown turn kind %q", r.Kind)
	}
}

// Orchestrator runs brainstorming turns against a conversation snapshot.
// It never mutates the snapshot it is given; merging results is the caller's job (see ApplyTurn).
type Orchestrator struct {
	generator  TextGenerator
	classifier Classifier
	outliner   OutlineGenerator
	refiner    SectionRefiner
	timeout    time.Duration
	now        func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCollaboratorTimeout overrides the per-call collaborator timeout. Non-positive values disable it.
func WithCollaboratorTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithSectionRefiner enables RefineSection.
func WithSectionRefiner(r SectionRefiner) OrchestratorOption {
	return func(o *Orchestrator) { o.refiner = r }
}

// WithClock overrides the clock used to stamp generated outlines.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires the collaborators. Any of them may be nil, in which case
// the turn falls back to its local behaviour and outline generation fails.
func NewOrchestrator(generator TextGenerator, classifier Classifier, outliner OutlineGenerator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		generator:  generator,
		classifier: classifier,
		outliner:   outliner,
		timeout:    DefaultCollaboratorTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	slog.Debug("Orchestrator created", "timeout", o.timeout, "generator", generator != nil, "classifier", classifier != nil, "outliner", outliner != nil)
	return o
}

// HandleTurn runs one turn. With no answer (nil or empty) it returns the question for
// the current stage; otherwise it classifies the answer and decides between the
// follow-up detour and advancing to the next stage.
//
// Collaborator failures and per-call timeouts fall back to local behaviour. When ctx
// itself is done the turn is abandoned and ctx.Err() is returned.
func (o *Orchestrator) HandleTurn(ctx context.Context, conv models.ConversationState, answer *string) (TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}
	prompt, ok := models.LookupPrompt(conv.PromptID)
	if !ok {
		slog.Warn("Orchestrator.HandleTurn: invalid prompt id", "promptID", conv.PromptID)
		return TurnResult{}, &InvalidPromptError{PromptID: conv.PromptID}
	}

	if answer == nil || *answer == "" {
		return o.question(ctx, conv, prompt)
	}
	return o.answer(ctx, conv, *answer)
}

func (o *Orchestrator) question(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (TurnResult, error) {
	stage := conv.CurrentStage
	result := TurnResult{Kind: TurnQuestion, QuestionStage: stage}

	if cached, ok := conv.AssistantQuestionFor(stage); ok {
		slog.Debug("Orchestrator.question: returning recorded question", "stage", stage)
		result.Question = cached.Content
		return result, nil
	}
	if stage == models.StageFollowUp || stage == models.StageComplete {
		result.Question = FallbackQuestion(stage, prompt)
		return result, nil
	}

	q, err := o.generateQuestion(ctx, conv, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			slog.Info("Orchestrator.question: turn abandoned", "stage", stage, "error", ctxErr)
			return TurnResult{}, ctxErr
		}
		slog.Warn("Orchestrator.question: generator failed, using template", "stage", stage, "error", err)
		result.Question = FallbackQuestion(stage, prompt)
		return result, nil
	}
	result.Question = q
	return result, nil
}

func (o *Orchestrator) answer(ctx context.Context, conv models.ConversationState, answer string) (TurnResult, error) {
	stage := conv.CurrentStage
	if stage == models.StageComplete {
		slog.Debug("Orchestrator.answer: conversation already complete", "promptID", conv.PromptID)
		return TurnResult{Kind: TurnAdvance, NextStage: models.StageComplete, ProgressPercentage: ProgressFor(models.StageComplete)}, nil
	}

	// The follow-up answer always resumes the interrupted stage, so it is not classified.
	if stage == models.StageFollowUp {
		next := NextStageAfter(ResolveRealStage(conv))
		slog.Debug("Orchestrator.answer: follow-up answered, advancing", "to", next)
		return TurnResult{Kind: TurnAdvance, NextStage: next, ProgressPercentage: ProgressFor(next)}, nil
	}

	classification, err := o.classify(ctx, stage, answer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			slog.Info("Orchestrator.answer: turn abandoned", "stage", stage, "error", ctxErr)
			return TurnResult{}, ctxErr
		}
		slog.Warn("Orchestrator.answer: classifier failed, using length heuristic", "stage", stage, "error", err)
		classification = fallbackClassification(answer)
	}
	slog.Debug("Orchestrator.answer: classified", "stage", stage, "category", classification.Category, "needsFollowUp", classification.NeedsFollowUp)

	if CanFollowUp(conv, classification) {
		issue := IssueForCategory(classification.Category)
		q, err := o.generateFollowUp(ctx, stage, answer, issue)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				slog.Info("Orchestrator.answer: turn abandoned", "stage", stage, "error", ctxErr)
				return TurnResult{}, ctxErr
			}
			slog.Warn("Orchestrator.answer: follow-up generator failed, using generic question", "stage", stage, "issue", issue, "error", err)
			q = GenericFollowUpQuestion
		}
		slog.Info("Orchestrator.answer: follow-up", "stage", stage, "issue", issue)
		return TurnResult{
			Kind:                TurnFollowUp,
			NextStage:           models.StageFollowUp,
			FollowUpQuestion:    q,
			ProgressPercentage:  ProgressFor(stage),
			StageBeforeFollowUp: stage,
			Classification:      &classification,
		}, nil
	}

	next := NextStageAfter(ResolveRealStage(conv))
	slog.Debug("Orchestrator.answer: advancing", "from", stage, "to", next)
	return TurnResult{
		Kind:               TurnAdvance,
		NextStage:          next,
		ProgressPercentage: ProgressFor(next),
		Classification:     &classification,
	}, nil
}

// GenerateOutline builds the outline for conv. Generator errors propagate; there is no fallback.
func (o *Orchestrator) GenerateOutline(ctx context.Context, conv models.ConversationState) (models.Outline, error) {
	prompt, ok := models.LookupPrompt(conv.PromptID)
	if !ok {
		slog.Warn("Orchestrator.GenerateOutline: invalid prompt id", "promptID", conv.PromptID)
		return models.Outline{}, &InvalidPromptError{PromptID: conv.PromptID}
	}
	if o.outliner == nil {
		return models.Outline{}, ErrOutlineUnavailable
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	outline, err := o.outliner.GenerateOutline(ctx, conv, prompt)
	if err != nil {
		slog.Error("Orchestrator.GenerateOutline: generation failed", "promptID", conv.PromptID, "error", err)
		return models.Outline{}, fmt.Errorf("generate outline: %w", err)
	}
	if outline.PromptID == "" {
		outline.PromptID = conv.PromptID
	}
	if outline.GeneratedAt.IsZero() {
		outline.GeneratedAt = o.now()
	}
	slog.Info("Orchestrator.GenerateOutline: outline generated", "promptID", conv.PromptID, "sections", len(outline.Sections))
	return outline, nil
}

// RefineSection returns questions that help the student deepen one outline section.
func (o *Orchestrator) RefineSection(ctx context.Context, conv models.ConversationState, title, content string) ([]string, error) {
	if _, ok := models.LookupPrompt(conv.PromptID); !ok {
		return nil, &InvalidPromptError{PromptID: conv.PromptID}
	}
	if o.refiner == nil {
		return nil, ErrRefinerUnavailable
	}

	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	questions, err := o.refiner.RefineSection(ctx, conv, title, content)
	if err != nil {
		slog.Error("Orchestrator.RefineSection: refinement failed", "section", title, "error", err)
		return nil, err
	}
	slog.Debug("Orchestrator.RefineSection: questions generated", "section", title, "count", len(questions))
	return questions, nil
}

func (o *Orchestrator) generateQuestion(ctx context.Context, conv models.ConversationState, prompt models.EssayPrompt) (string, error) {
	if o.generator == nil {
		return "", ErrCollaboratorUnavailable
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return nonEmpty(o.generator.GenerateQuestion(ctx, conv, prompt))
}

func (o *Orchestrator) generateFollowUp(ctx context.Context, stage models.Stage, answer string, issue models.IssueTag) (string, error) {
	if o.generator == nil {
		return "", ErrCollaboratorUnavailable
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return nonEmpty(o.generator.GenerateFollowUp(ctx, stage, answer, issue))
}

func (o *Orchestrator) classify(ctx context.Context, stage models.Stage, answer string) (models.Classification, error) {
	if o.classifier == nil {
		return models.Classification{}, ErrCollaboratorUnavailable
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.classifier.Classify(ctx, stage, answer)
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

var errEmptyGeneration = errors.New("collaborator returned empty text")

func nonEmpty(s string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errEmptyGeneration
	}
	return s, nil
}
