package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/models"
	"github.com/BTreeMap/EssayPipe/internal/store"
)

// Text keywords understood at any point of a texted session.
const (
	keywordRestart = "restart"
	keywordOutline = "outline"
)

// maxTextLength keeps each outgoing text under Twilio's 1600 character body limit.
const maxTextLength = 1500

const (
	busyNotice         = "Still thinking about your last message. I'll reply in a moment."
	completeNotice     = "You've finished brainstorming! Text OUTLINE to get your outline again, or RESTART to begin a new essay."
	outlineErrorNotice = "I couldn't put your outline together just now. Text OUTLINE to try again."
	turnErrorNotice    = "Something went wrong on my end. Please send that again."
)

// sendOutboxMessage is the outbox send function; it delivers one queued text.
func (s *Server) sendOutboxMessage(ctx context.Context, msg store.OutboxMessage) error {
	return s.msgService.SendMessage(ctx, msg.Recipient, msg.Body)
}

// enqueueText queues body for delivery, split into several texts when it is long.
func (s *Server) enqueueText(to string, kind store.OutboxKind, body, dedupeKey string) error {
	parts := splitText(body, maxTextLength)
	for i, part := range parts {
		key := dedupeKey
		if key != "" && len(parts) > 1 {
			key = fmt.Sprintf("%s:%d", dedupeKey, i)
		}
		if _, err := s.st.EnqueueOutboxMessage(to, kind, part, key); err != nil {
			return fmt.Errorf("enqueue %s text: %w", kind, err)
		}
	}
	return nil
}

func (s *Server) reply(to string, kind store.OutboxKind, body, dedupeKey string) {
	if err := s.enqueueText(to, kind, body, dedupeKey); err != nil {
		slog.Error("Server.reply: failed to queue text", "error", err, "to", to, "kind", kind)
	}
}

// consumeMessages handles inbound texts until ctx ends or the channel closes.
func (s *Server) consumeMessages(ctx context.Context) {
	responses := s.msgService.Responses()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-responses:
			if !ok {
				slog.Info("Server.consumeMessages: responses channel closed")
				return
			}
			s.handleInbound(ctx, msg)
		}
	}
}

// handleInbound runs one inbound text through the participant's session.
func (s *Server) handleInbound(ctx context.Context, msg models.InboundMessage) {
	if msg.MessageID != "" {
		fresh, err := s.st.RecordInbound(msg.MessageID, msg.From)
		if err != nil {
			slog.Error("Server.handleInbound: dedup record failed", "error", err, "messageID", msg.MessageID)
		} else if !fresh {
			slog.Info("Server.handleInbound: duplicate message ignored", "messageID", msg.MessageID, "from", msg.From)
			return
		}
		defer func() {
			if err := s.st.MarkProcessed(msg.MessageID); err != nil {
				slog.Warn("Server.handleInbound: mark processed failed", "error", err, "messageID", msg.MessageID)
			}
		}()
	}

	body := strings.TrimSpace(msg.Body)
	sess, err := s.st.GetSessionByParticipant(msg.From)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		slog.Error("Server.handleInbound: session lookup failed", "error", err, "from", msg.From)
		return
	}

	if strings.EqualFold(body, keywordRestart) {
		if sess != nil {
			if err := s.st.DeleteSession(sess.ID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
				slog.Error("Server.handleInbound: failed to delete session", "error", err, "id", sess.ID)
			}
		}
		s.reply(msg.From, store.OutboxKindMenu, promptMenu(), "")
		return
	}

	if sess == nil {
		s.startTextSession(ctx, msg.From, body)
		return
	}

	if !s.guard.TryAcquire(sess.ID) {
		s.reply(msg.From, store.OutboxKindNotice, busyNotice, "busy:"+sess.ID)
		return
	}
	defer s.guard.Release(sess.ID)

	// Reload under the guard; a turn may have finished since the lookup.
	if sess, err = s.st.GetSession(sess.ID); err != nil {
		slog.Error("Server.handleInbound: session reload failed", "error", err, "from", msg.From)
		return
	}

	if sess.Conversation.CurrentStage == models.StageComplete {
		if strings.EqualFold(body, keywordOutline) {
			s.deliverOutline(ctx, *sess)
			return
		}
		s.reply(msg.From, store.OutboxKindNotice, completeNotice, "")
		return
	}

	s.answerText(ctx, *sess, body)
}

// startTextSession creates a session when body picks a prompt, and otherwise sends the menu.
func (s *Server) startTextSession(ctx context.Context, from, body string) {
	prompt, ok := promptFromText(body)
	if !ok {
		s.reply(from, store.OutboxKindMenu, promptMenu(), "")
		return
	}
	sess, err := s.newSession(prompt.ID, from)
	if err != nil {
		slog.Error("Server.startTextSession: failed to create session", "error", err, "from", from)
		s.reply(from, store.OutboxKindNotice, turnErrorNotice, "")
		return
	}
	if !s.guard.TryAcquire(sess.ID) {
		return
	}
	defer s.guard.Release(sess.ID)
	s.askQuestion(ctx, sess)
}

// askQuestion texts the question for the session's current stage.
func (s *Server) askQuestion(ctx context.Context, sess models.Session) {
	_, result, err := s.advanceSession(ctx, sess, nil)
	if err != nil && abandoned(ctx, sess.ID) {
		return
	}
	if err != nil {
		slog.Error("Server.askQuestion: failed to get question", "error", err, "id", sess.ID)
		s.reply(sess.Participant, store.OutboxKindNotice, turnErrorNotice, "")
		return
	}
	s.reply(sess.Participant, store.OutboxKindQuestion, result.Question,
		fmt.Sprintf("question:%s:%s", sess.ID, result.QuestionStage))
}

// answerText submits body as the answer for the current stage and texts what comes next.
func (s *Server) answerText(ctx context.Context, sess models.Session, body string) {
	updated, result, err := s.advanceSession(ctx, sess, &body)
	if err != nil && abandoned(ctx, sess.ID) {
		return
	}
	if err != nil {
		slog.Error("Server.answerText: turn failed", "error", err, "id", sess.ID)
		s.reply(sess.Participant, store.OutboxKindNotice, turnErrorNotice, "")
		return
	}

	switch result.Kind {
	case flow.TurnFollowUp:
		s.reply(sess.Participant, store.OutboxKindFollowUp, result.FollowUpQuestion, "followup:"+sess.ID)
	case flow.TurnAdvance:
		if result.NextStage == models.StageComplete {
			s.deliverOutline(ctx, updated)
			return
		}
		s.askQuestion(ctx, updated)
	}
}

// deliverOutline texts the session's outline, generating it first if the session has none.
func (s *Server) deliverOutline(ctx context.Context, sess models.Session) {
	if sess.Outline == nil {
		updated, err := s.generateSessionOutline(ctx, sess)
		if err != nil && abandoned(ctx, sess.ID) {
			return
		}
		if err != nil {
			slog.Error("Server.deliverOutline: outline generation failed", "error", err, "id", sess.ID)
			s.reply(sess.Participant, store.OutboxKindNotice, outlineErrorNotice, "")
			return
		}
		sess = updated
	}
	s.reply(sess.Participant, store.OutboxKindOutline, formatOutlineText(*sess.Outline), "outline:"+sess.ID)
}

// abandoned reports whether a failed step was cut short by ctx; such steps text nothing.
func abandoned(ctx context.Context, sessionID string) bool {
	if ctx.Err() == nil {
		return false
	}
	slog.Info("Server: text turn abandoned", "id", sessionID, "error", ctx.Err())
	return true
}

// promptMenu lists the catalog as a numbered text menu.
func promptMenu() string {
	var b strings.Builder
	b.WriteString("Hi! I'm your college essay brainstorming partner. Reply with the number of the prompt you'd like to explore:\n")
	for i, p := range models.EssayPrompts() {
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, p.Title, p.Description)
	}
	b.WriteString("\n\nText RESTART at any time to start over.")
	return b.String()
}

// promptFromText resolves a menu number or a prompt id.
func promptFromText(body string) (models.EssayPrompt, bool) {
	body = strings.ToLower(strings.TrimSpace(body))
	prompts := models.EssayPrompts()
	if n, err := strconv.Atoi(strings.TrimSuffix(body, ".")); err == nil {
		if n >= 1 && n <= len(prompts) {
			return prompts[n-1], true
		}
		return models.EssayPrompt{}, false
	}
	return models.LookupPrompt(models.PromptID(body))
}

// formatOutlineText renders an outline as plain text.
func formatOutlineText(o models.Outline) string {
	var b strings.Builder
	b.WriteString("Your essay outline\n")
	for _, sec := range o.Sections {
		fmt.Fprintf(&b, "\n%s\n%s\n", strings.ToUpper(sec.Title), sec.Content)
	}
	if o.Explanation != "" {
		fmt.Fprintf(&b, "\nWhy this structure: %s\n", o.Explanation)
	}
	if o.FollowUpPrompt != "" {
		fmt.Fprintf(&b, "\n%s\n", o.FollowUpPrompt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitText breaks text into chunks of at most limit runes, preferring paragraph
// and then line boundaries.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		head := string(runes[:limit])
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = strings.LastIndex(head, " ")
		}
		if cut <= 0 {
			cut = len(head)
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
