// Package httpapi exposes the engine over HTTP. Session starts and
// resumes stream progress as server-sent events; snapshots and listings
// are plain JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/senga07/xAgentic/internal/engine"
)

// Server routes HTTP traffic to an engine instance.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleStart)
	mux.HandleFunc("GET /api/sessions", s.handleList)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleState)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/sessions/{id}/resume", s.handleResume)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Task      string `json:"task"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	stream := s.engine.Start(r.Context(), req.SessionID, req.Task)
	s.streamEvents(w, r, stream)
}

type resumeRequest struct {
	Feedback string `json:"feedback"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	stream, err := s.engine.Resume(r.Context(), sessionID, req.Feedback)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.streamEvents(w, r, stream)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.State(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Discard(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamEvents writes the session's events as SSE frames, flushing each
// one, until the stream ends.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, stream *engine.Stream) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for ev := range stream.Events() {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// statusFor maps engine errors to HTTP status codes. Anything outside
// the taxonomy is a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoSuchSession):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrSessionNotSuspended),
		errors.Is(err, engine.ErrSessionTerminated):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEmptyTask):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
