// Package server exposes the chat assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// ChatService is the orchestrator surface the HTTP handlers call.
type ChatService interface {
	Reply(ctx context.Context, sessionID, message string) (string, error)
	ClearSession(sessionID string) error
	Reset()
}

// Server wires the chat routes onto a net/http mux.
type Server struct {
	chat ChatService
	log  zerolog.Logger
}

func New(chat ChatService, log zerolog.Logger) *Server {
	return &Server{chat: chat, log: log.With().Str("component", "server").Logger()}
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/clear", s.handleClear)
	mux.HandleFunc("POST /api/chat/reset", s.handleReset)
	return s.logRequests(mux)
}

// ListenAndServe blocks until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return apperr.Wrap(apperr.CodeInternal, "http server", err)
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	reply, err := s.chat.Reply(r.Context(), r.URL.Query().Get("sessionId"), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.ClearSession(r.URL.Query().Get("sessionId")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.chat.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeError maps the error taxonomy onto status codes. Internal detail is
// logged, never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok && appErr.Code == apperr.CodeValidation {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: appErr.Message})
		return
	}
	s.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
