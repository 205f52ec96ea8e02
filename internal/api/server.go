// Package api exposes the HTTP interface for the regwatch service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/metrics"
	"github.com/huntwise/regwatch/internal/pipeline"
	"github.com/huntwise/regwatch/internal/regdata"
)

// Server wires HTTP handlers to the crawl runner and the shared stores.
type Server struct {
	router    chi.Router
	runner    *pipeline.Runner
	contexts  regdata.ContextProvider
	backoffs  regdata.BackoffStore
	alerts    regdata.AlertLog
	publisher regdata.Publisher
	clock     regdata.Clock
	logger    *zap.Logger
	topic     string
}

// NewServer constructs a Server with middleware and routes. Publisher may be
// nil when notifications are disabled.
func NewServer(
	runner *pipeline.Runner,
	contexts regdata.ContextProvider,
	backoffs regdata.BackoffStore,
	alerts regdata.AlertLog,
	publisher regdata.Publisher,
	clock regdata.Clock,
	logger *zap.Logger,
	topic string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:    runner,
		contexts:  contexts,
		backoffs:  backoffs,
		alerts:    alerts,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		topic:     topic,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schedule", s.getSchedule)
		r.Post("/digest", s.compileDigest)
		r.Route("/sources/{source_id}", func(r chi.Router) {
			r.Post("/crawl", s.crawlSource)
			r.Get("/backoff", s.getBackoff)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.contexts.Contexts(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "source calendar unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
