package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/EssayPipe/internal/flow"
	"github.com/BTreeMap/EssayPipe/internal/models"
)

// Error messages of the stateless brainstorming endpoints.
const (
	errConversationRequired = "conversation required"
	errInvalidPromptID      = "invalid prompt id"
	errInvalidJSON          = "invalid JSON"
	errInvalidConversation  = "invalid conversation"
)

// checkConversation rejects a missing snapshot, an unknown prompt and a malformed shape,
// writing the client error itself. It reports whether the handler may continue.
func checkConversation(w http.ResponseWriter, conv *models.ConversationState, handler string) bool {
	if conv == nil {
		slog.Warn(handler+": missing conversation")
		writeError(w, http.StatusBadRequest, errConversationRequired, nil)
		return false
	}
	if _, ok := models.LookupPrompt(conv.PromptID); !ok {
		slog.Warn(handler+": invalid prompt id", "promptID", conv.PromptID)
		writeError(w, http.StatusBadRequest, errInvalidPromptID, &flow.InvalidPromptError{PromptID: conv.PromptID})
		return false
	}
	if err := conv.Validate(); err != nil {
		slog.Warn(handler+": invalid conversation", "error", err)
		writeError(w, http.StatusBadRequest, errInvalidConversation, err)
		return false
	}
	return true
}

// chatHandler handles POST /api/chat: one turn against a client-held snapshot.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, errInvalidJSON, err)
		return
	}
	if !checkConversation(w, req.Conversation, "Server.chatHandler") {
		return
	}

	result, err := s.orch.HandleTurn(r.Context(), *req.Conversation, req.UserResponse)
	if err != nil {
		if errors.Is(err, flow.ErrInvalidPrompt) {
			writeError(w, http.StatusBadRequest, errInvalidPromptID, err)
			return
		}
		if errors.Is(err, context.Canceled) {
			slog.Info("Server.chatHandler: request cancelled, turn discarded")
			writeError(w, statusClientClosedRequest, "request cancelled", err)
			return
		}
		slog.Error("Server.chatHandler: turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process request", err)
		return
	}
	slog.Debug("Server.chatHandler: turn handled", "stage", req.Conversation.CurrentStage, "kind", result.Kind)
	writeJSONResponse(w, http.StatusOK, result)
}

// generateOutlineHandler handles POST /api/generate-outline.
func (s *Server) generateOutlineHandler(w http.ResponseWriter, r *http.Request) {
	var req models.OutlineRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn("Server.generateOutlineHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, errInvalidJSON, err)
		return
	}
	if !checkConversation(w, req.Conversation, "Server.generateOutlineHandler") {
		return
	}

	outline, err := s.orch.GenerateOutline(r.Context(), *req.Conversation)
	if err != nil {
		slog.Error("Server.generateOutlineHandler: outline generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate outline", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, outline)
}

// refineSectionHandler handles POST /api/refine-section.
func (s *Server) refineSectionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RefineSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON, err)
		return
	}
	if !checkConversation(w, req.Conversation, "Server.refineSectionHandler") {
		return
	}
	if strings.TrimSpace(req.SectionTitle) == "" {
		writeError(w, http.StatusBadRequest, "sectionTitle required", nil)
		return
	}

	questions, err := s.orch.RefineSection(r.Context(), *req.Conversation, req.SectionTitle, req.SectionContent)
	if err != nil {
		slog.Error("Server.refineSectionHandler: refinement failed", "error", err, "section", req.SectionTitle)
		writeError(w, http.StatusInternalServerError, "Failed to refine section", err)
		return
	}
	if questions == nil {
		questions = []string{}
	}
	writeJSONResponse(w, http.StatusOK, models.RefineSectionResponse{Questions: questions})
}

// promptsHandler handles GET /api/prompts.
func (s *Server) promptsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(models.EssayPrompts()))
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", map[string]bool{
		"sms": s.msgService != nil,
	}))
}
