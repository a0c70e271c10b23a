package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
)

// Client-facing error messages.
const (
	msgInternal        = "Internal server error"
	msgInvalidJSON     = "Invalid JSON body"
	msgTooManyRequests = "Too many requests"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

type clearResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type cleanupResponse struct {
	Success         bool `json:"success"`
	RemovedSessions int  `json:"removed_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		ModelLoaded: s.orch.ModelLoaded(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	resp, err := s.orch.Chat(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.orch.ClearSession(r.Context(), req.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{
		Success:   true,
		Message:   "Session cleared",
		SessionID: chat.NormalizeSessionID(req.SessionID),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.orch.CleanupExpiredSessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Success:         true,
		RemovedSessions: removed,
	})
}

// decode reads a JSON body into v. An empty body leaves v zero-valued so
// that field validation reports the missing input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("invalid request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidJSON})
		return false
	}
	return true
}

// writeError maps orchestrator errors to responses. Only validation
// messages reach the client; everything else is logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if vErr, ok := chat.IsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message})
		return
	}

	event := s.logger.Error().Err(err).Str("path", r.URL.Path)
	var genErr *chat.GenerationError
	if errors.As(err, &genErr) {
		event = event.Str("session_id", genErr.SessionID)
	}
	event.Msg("request failed")

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
