package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/models"
	"github.com/BTreeMap/EssayPipe/internal/store"
)

const quitCommand = "/quit"

// maxAnswerBytes bounds a single line of input; long pasted answers fit comfortably.
const maxAnswerBytes = 1 << 20

var errQuit = errors.New("quit")

type inputLine struct {
	text string
	err  error
}

// chatRunner drives one session in the terminal, saving after every turn so it can be resumed.
type chatRunner struct {
	orch  *flow.Orchestrator
	st    store.SessionStore
	lines <-chan inputLine
	out   io.Writer
	now   func() time.Time
}

func newChatRunner(orch *flow.Orchestrator, st store.SessionStore, in io.Reader, out io.Writer) *chatRunner {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxAnswerBytes)
	lines := make(chan inputLine)
	go scanLines(sc, lines)
	return &chatRunner{
		orch:  orch,
		st:    st,
		lines: lines,
		out:   out,
		now:   time.Now,
	}
}

// scanLines feeds input lines to out until end of input, sending the scanner error if any.
func scanLines(sc *bufio.Scanner, out chan<- inputLine) {
	defer close(out)
	for sc.Scan() {
		out <- inputLine{text: sc.Text()}
	}
	if err := sc.Err(); err != nil {
		out <- inputLine{err: err}
	}
}

// stopped reports whether err ends the session without failing the command.
func stopped(err error) bool {
	return errors.Is(err, errQuit) || errors.Is(err, context.Canceled)
}

// run resumes sessionID, or starts a new session for promptID (asking when empty).
func (c *chatRunner) run(ctx context.Context, promptID models.PromptID, sessionID string) error {
	sess, err := c.openSession(ctx, promptID, sessionID)
	if stopped(err) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Session %s\n\n", sess.ID)

	err = c.converse(ctx, sess)
	if stopped(err) {
		fmt.Fprintf(c.out, "\nProgress saved. Resume with: essaypipe chat --session %s\n", sess.ID)
		return nil
	}
	return err
}

func (c *chatRunner) openSession(ctx context.Context, promptID models.PromptID, sessionID string) (*models.Session, error) {
	if sessionID != "" {
		sess, err := c.st.GetSession(sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		return sess, nil
	}

	if promptID == "" {
		p, err := c.choosePrompt(ctx)
		if err != nil {
			return nil, err
		}
		promptID = p
	}
	now := c.now()
	sess := &models.Session{
		ID:           uuid.NewString(),
		Conversation: models.NewConversationState(promptID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.st.SaveSession(*sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("chatRunner: session created", "id", sess.ID, "promptID", promptID)
	return sess, nil
}

func (c *chatRunner) choosePrompt(ctx context.Context) (models.PromptID, error) {
	prompts := models.EssayPrompts()
	fmt.Fprintln(c.out, "Which prompt would you like to brainstorm for?")
	for i, p := range prompts {
		fmt.Fprintf(c.out, "  %d. %s\n     %s\n", i+1, p.Title, p.Description)
	}
	for {
		line, err := c.readLine(ctx, "Prompt number")
		if err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(prompts) {
			return prompts[n-1].ID, nil
		}
		if p, ok := models.LookupPrompt(models.PromptID(strings.ToLower(line))); ok {
			return p.ID, nil
		}
		fmt.Fprintf(c.out, "Please enter a number from 1 to %d.\n", len(prompts))
	}
}

// converse alternates questions and answers until the conversation completes, then
// shows the outline. A turn abandoned by cancellation is neither applied nor saved.
func (c *chatRunner) converse(ctx context.Context, sess *models.Session) error {
	pending := ""
	for sess.Conversation.CurrentStage != models.StageComplete {
		if pending == "" {
			result, err := c.orch.HandleTurn(ctx, sess.Conversation, nil)
			if err != nil {
				return err
			}
			sess.Conversation = flow.RecordQuestion(sess.Conversation, result, c.now())
			if err := c.save(sess); err != nil {
				return err
			}
			pending = result.Question
		}
		fmt.Fprintf(c.out, "\n%s\n", pending)

		answer, err := c.readLine(ctx, "")
		if err != nil {
			return err
		}
		if answer == "" {
			continue
		}

		result, err := c.orch.HandleTurn(ctx, sess.Conversation, &answer)
		if err != nil {
			return err
		}
		sess.Conversation = flow.ApplyTurn(sess.Conversation, answer, result, c.now())
		if err := c.save(sess); err != nil {
			return err
		}

		pending = ""
		if result.Kind == flow.TurnFollowUp {
			pending = result.FollowUpQuestion
		}
		fmt.Fprintf(c.out, "[%d%% complete]\n", sess.Conversation.ProgressPercentage)
	}

	return c.showOutline(ctx, sess)
}

func (c *chatRunner) showOutline(ctx context.Context, sess *models.Session) error {
	if sess.Outline == nil {
		fmt.Fprintln(c.out, "\nThat's everything. Building your outline...")
		outline, err := c.orch.GenerateOutline(ctx, sess.Conversation)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			slog.Warn("chatRunner: outline generation failed", "id", sess.ID, "error", err)
			fmt.Fprintf(c.out, "Sorry, the outline could not be generated (%v). Your answers are saved in session %s.\n", err, sess.ID)
			return nil
		}
		sess.Outline = &outline
		if err := c.save(sess); err != nil {
			return err
		}
	}
	writeOutline(c.out, *sess.Outline)
	return c.refineLoop(ctx, sess)
}

// refineLoop offers questions for deepening individual sections until the student is done.
func (c *chatRunner) refineLoop(ctx context.Context, sess *models.Session) error {
	sections := sess.Outline.Sections
	for {
		line, err := c.readLine(ctx, "Section number to dig into (Enter to finish)")
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr != nil || n < 1 || n > len(sections) {
			fmt.Fprintf(c.out, "Please enter a number from 1 to %d.\n", len(sections))
			continue
		}
		section := sections[n-1]
		if !section.CanRefine {
			fmt.Fprintf(c.out, "%q is already as specific as it can get.\n", section.Title)
			continue
		}
		questions, err := c.orch.RefineSection(ctx, sess.Conversation, section.Title, section.Content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			fmt.Fprintf(c.out, "Sorry, no questions are available right now (%v).\n", err)
			continue
		}
		for i, q := range questions {
			fmt.Fprintf(c.out, "  %d. %s\n", i+1, q)
		}
	}
}

// readLine prints label, if any, and returns the next trimmed line. End of input and
// the quit command both return errQuit; cancellation returns ctx.Err().
func (c *chatRunner) readLine(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if label != "" {
		fmt.Fprintf(c.out, "%s: ", label)
	} else {
		fmt.Fprint(c.out, "> ")
	}

	var in inputLine
	var ok bool
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case in, ok = <-c.lines:
	}
	if !ok {
		return "", errQuit
	}
	if in.err != nil {
		return "", in.err
	}
	line := strings.TrimSpace(in.text)
	if strings.EqualFold(line, quitCommand) {
		return "", errQuit
	}
	return line, nil
}

func (c *chatRunner) save(sess *models.Session) error {
	sess.UpdatedAt = c.now()
	if err := c.st.SaveSession(*sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func writeOutline(w io.Writer, o models.Outline) {
	fmt.Fprintln(w, "\n=== Your essay outline ===")
	for i, s := range o.Sections {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, s.Title)
		for _, line := range strings.Split(strings.TrimSpace(s.Content), "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
	if o.Explanation != "" {
		fmt.Fprintf(w, "\nWhy this structure: %s\n", o.Explanation)
	}
	if o.FollowUpPrompt != "" {
		fmt.Fprintf(w, "\n%s\n", o.FollowUpPrompt)
	}
	fmt.Fprintln(w)
}
