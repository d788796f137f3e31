// Package server exposes retrieval and chat sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"literary-rag/internal/config"
	"literary-rag/internal/helper"
	"literary-rag/internal/models"
	"literary-rag/internal/rag"
	"literary-rag/internal/retrieval"
)

type Server struct {
	router      *chi.Mux
	cfg         config.ServerConfig
	rag         *rag.RAG
	sessions    *SessionStore
	collections []string
}

func NewServer(cfg config.ServerConfig, r *rag.RAG, sessions *SessionStore, collections []string) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:      router,
		cfg:         cfg,
		rag:         r,
		sessions:    sessions,
		collections: collections,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/retrieve", s.retrieve)
		r.Post("/sessions", s.createSession)
		r.Post("/sessions/{id}/messages", s.postMessage)
		r.Get("/sessions/{id}/history", s.history)
		r.Delete("/sessions/{id}", s.deleteSession)
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then drains open requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("API server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type retrieveRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections,omitempty"`
	Selection   string   `json:"selection,omitempty"`
}

type retrieveResponse struct {
	Context  string           `json:"context"`
	Passages []models.Passage `json:"passages"`
}

type messageRequest struct {
	Question    string   `json:"question"`
	Collections []string `json:"collections,omitempty"`
	Selection   *string  `json:"selection,omitempty"`
	UseContext  *bool    `json:"use_context,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var collections []string
	switch {
	case req.Selection != "":
		collections = rag.ParseSelection(req.Selection, s.collections)
	case req.Collections != nil:
		collections = req.Collections
	default:
		collections = append([]string(nil), s.collections...)
	}

	contextText, passages, err := s.rag.Retrieve(r.Context(), req.Query, collections)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{Context: contextText, Passages: passages})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, retrieval.ErrEmptyQuery.Error())
		return
	}

	session, release, ok := s.sessions.Acquire(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	defer release()

	switch {
	case req.Selection != nil:
		session.Collections = rag.ParseSelection(*req.Selection, s.collections)
	case req.Collections != nil:
		session.Collections = req.Collections
	}
	if req.UseContext != nil {
		session.UseContext = *req.UseContext
	}
	if req.Temperature != nil {
		session.Temperature = *req.Temperature
	}

	resp, err := s.rag.Query(r.Context(), session, req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id, err := helper.GenerateUUID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	session := s.sessions.Create(id)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          session.ID,
		"collections": session.Collections,
		"use_context": session.UseContext,
		"temperature": session.Temperature,
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      session.ID,
		"history": session.Memory.History(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

// StatusFor maps pipeline errors to HTTP status codes. Bad input is the
// caller's fault; everything else is an upstream failure.
func StatusFor(err error) int {
	var unknown *retrieval.UnknownCollectionError
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery), errors.As(err, &unknown):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
