package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/models"
	"github.com/BTreeMap/EssayPipe/internal/store"
)

var (
	errSessionComplete    = errors.New("session is complete")
	errSessionNotComplete = errors.New("session is not complete")
)

// newSession creates and stores a session at the first stage of promptID.
func (s *Server) newSession(promptID models.PromptID, participant string) (models.Session, error) {
	now := s.now()
	sess := models.Session{
		ID:           uuid.NewString(),
		Conversation: models.NewConversationState(promptID),
		Participant:  participant,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.st.SaveSession(sess); err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}
	slog.Info("Server: session created", "id", sess.ID, "promptID", promptID, "participantSet", participant != "")
	return sess, nil
}

// advanceSession runs one turn against sess, merges the result into its conversation
// and saves it. Callers hold the session's turn guard. A turn abandoned through ctx
// returns its error and leaves the stored session untouched.
func (s *Server) advanceSession(ctx context.Context, sess models.Session, answer *string) (models.Session, flow.TurnResult, error) {
	hasAnswer := answer != nil && *answer != ""
	if hasAnswer && sess.Conversation.CurrentStage == models.StageComplete {
		return sess, flow.TurnResult{}, errSessionComplete
	}

	result, err := s.orch.HandleTurn(ctx, sess.Conversation, answer)
	if err != nil {
		return sess, flow.TurnResult{}, err
	}

	now := s.now()
	if hasAnswer {
		sess.Conversation = flow.ApplyTurn(sess.Conversation, *answer, result, now)
	} else {
		sess.Conversation = flow.RecordQuestion(sess.Conversation, result, now)
	}
	sess.UpdatedAt = now
	if err := s.st.SaveSession(sess); err != nil {
		return sess, result, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("Server.advanceSession: turn applied", "id", sess.ID, "kind", result.Kind, "stage", sess.Conversation.CurrentStage)
	return sess, result, nil
}

// generateSessionOutline builds the outline of a COMPLETE session and stores it.
func (s *Server) generateSessionOutline(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.Conversation.CurrentStage != models.StageComplete {
		return sess, errSessionNotComplete
	}
	outline, err := s.orch.GenerateOutline(ctx, sess.Conversation)
	if err != nil {
		return sess, err
	}
	sess.Outline = &outline
	sess.UpdatedAt = s.now()
	if err := s.st.SaveSession(sess); err != nil {
		return sess, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// loadSession fetches the session named in the path, writing 404 or 500 on failure.
func (s *Server) loadSession(w http.ResponseWriter, id, handler string) (*models.Session, bool) {
	sess, err := s.st.GetSession(id)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return nil, false
	}
	if err != nil {
		slog.Error(handler+": failed to load session", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return nil, false
	}
	return sess, true
}

// createSessionHandler handles POST /api/sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if _, ok := models.LookupPrompt(req.PromptID); !ok {
		slog.Warn("Server.createSessionHandler: invalid prompt id", "promptID", req.PromptID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(errInvalidPromptID))
		return
	}

	sess, err := s.newSession(req.PromptID, "")
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(sess))
}

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.st.ListSessions()
	if err != nil {
		slog.Error("Server.listSessionsHandler: failed to list sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

// getSessionHandler handles GET /api/sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r.PathValue("id"), "Server.getSessionHandler")
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// deleteSessionHandler handles DELETE /api/sessions/{id}.
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.st.DeleteSession(id)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err != nil {
		slog.Error("Server.deleteSessionHandler: failed to delete session", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// sessionTurnHandler handles POST /api/sessions/{id}/turn.
func (s *Server) sessionTurnHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req models.SessionTurnRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if !s.guard.TryAcquire(id) {
		slog.Warn("Server.sessionTurnHandler: turn already in flight", "id", id)
		writeJSONResponse(w, http.StatusConflict, models.Error("A turn is already in progress for this session"))
		return
	}
	defer s.guard.Release(id)

	sess, ok := s.loadSession(w, id, "Server.sessionTurnHandler")
	if !ok {
		return
	}

	updated, result, err := s.advanceSession(r.Context(), *sess, req.UserResponse)
	switch {
	case errors.Is(err, errSessionComplete):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is already complete"))
		return
	case errors.Is(err, flow.ErrInvalidPrompt):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(errInvalidPromptID))
		return
	case errors.Is(err, context.Canceled):
		slog.Info("Server.sessionTurnHandler: request cancelled, turn discarded", "id", id)
		writeJSONResponse(w, statusClientClosedRequest, models.Error("Request cancelled"))
		return
	case err != nil:
		slog.Error("Server.sessionTurnHandler: turn failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.SessionTurnResponse{Session: updated, Turn: result}))
}

// sessionOutlineHandler handles POST /api/sessions/{id}/outline.
func (s *Server) sessionOutlineHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.guard.TryAcquire(id) {
		writeJSONResponse(w, http.StatusConflict, models.Error("A turn is already in progress for this session"))
		return
	}
	defer s.guard.Release(id)

	sess, ok := s.loadSession(w, id, "Server.sessionOutlineHandler")
	if !ok {
		return
	}

	updated, err := s.generateSessionOutline(r.Context(), *sess)
	if errors.Is(err, errSessionNotComplete) {
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is not complete"))
		return
	}
	if err != nil {
		slog.Error("Server.sessionOutlineHandler: outline generation failed", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate outline: "+err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(updated.Outline))
}

// shareOutlineHandler handles POST /api/sessions/{id}/share.
func (s *Server) shareOutlineHandler(w http.ResponseWriter, r *http.Request) {
	if s.msgService == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Text messaging is not configured"))
		return
	}
	var req models.ShareOutlineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	to, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number: "+err.Error()))
		return
	}

	sess, ok := s.loadSession(w, r.PathValue("id"), "Server.shareOutlineHandler")
	if !ok {
		return
	}
	if sess.Outline == nil {
		writeJSONResponse(w, http.StatusConflict, models.Error("Outline has not been generated"))
		return
	}

	if err := s.enqueueText(to, store.OutboxKindOutline, formatOutlineText(*sess.Outline), "share:"+sess.ID+":"+to); err != nil {
		slog.Error("Server.shareOutlineHandler: failed to queue outline", "error", err, "id", sess.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to queue outline"))
		return
	}
	writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("Outline queued for delivery", nil))
}
