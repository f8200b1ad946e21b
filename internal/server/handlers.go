package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/logging"
	"github.com/agentcore/core/pkg/types"
)

// createSessionRequest is the POST /sessions body.
type createSessionRequest struct {
	Directory string `json:"directory"`
	Title     string `json:"title"`
	ParentID  string `json:"parentID,omitempty"`
}

// createSession handles POST /sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.Directory, req.Title, req.ParentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// listSessions handles GET /sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// deleteSession handles DELETE /sessions/:id.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// getMessages handles GET /sessions/:id/messages.
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	messages, err := s.sessions.GetMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// promptRequest is the POST /sessions/:id/prompt body.
type promptRequest struct {
	Prompt string         `json:"prompt"`
	Model  types.ModelRef `json:"model,omitempty"`
}

// postPrompt handles POST /sessions/:id/prompt. It persists the user's
// message synchronously, then hands the turn to the query executor
// contract in its own goroutine and returns 202 Accepted -- the caller
// observes the assistant's reply exclusively via the SSE stream.
func (s *Server) postPrompt(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}

	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	userMsg, err := s.sessions.AddUserMessage(r.Context(), sessionID, req.Prompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	go s.runPrompt(sessionID, req.Prompt, req.Model)

	writeJSON(w, http.StatusAccepted, map[string]any{"messageID": userMsg.ID})
}

// runPrompt invokes the query executor contract outside the request's
// lifetime: the HTTP response has already been written by the time this
// runs, so it carries its own background context and timeout rather than
// r.Context(), which is cancelled the moment the handler returns.
func (s *Server) runPrompt(sessionID, prompt string, model types.ModelRef) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	history, err := s.sessions.ToHistory(ctx, sessionID)
	if err != nil {
		logging.Error().Err(err).Str("sessionID", sessionID).Msg("prompt: load history")
		return
	}

	if _, err := s.invoker.HandleQuery(ctx, prompt, executor.QueryContext{SessionID: sessionID, Model: model}, history); err != nil {
		logging.Error().Err(err).Str("sessionID", sessionID).Msg("prompt: handle query")
	}
}
