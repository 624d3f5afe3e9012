// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"notecrawler/internal/crawl"
	"notecrawler/internal/metrics"
	"notecrawler/internal/store"
)

// Executor runs a crawl to completion. Satisfied by runner.Runner.
type Executor interface {
	Execute(ctx context.Context, opts crawl.Options) (store.RunRecord, crawl.RunResult, error)
}

// Server wires HTTP handlers to the runner and run store.
type Server struct {
	router   chi.Router
	executor Executor
	runs     store.RunStore
	defaults crawl.Options
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The defaults
// fill in any run parameters a submit request leaves unset.
func NewServer(executor Executor, runs store.RunStore, defaults crawl.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		executor: executor,
		runs:     runs,
		defaults: defaults,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRun)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.getRun)
				r.Get("/posts", s.getRunPosts)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.runs != nil {
		if _, err := s.runs.GetRun(r.Context(), uuid.Nil); err != nil && !errors.Is(err, store.ErrRunNotFound) {
			writeError(s.logger, w, http.StatusServiceUnavailable, "run store unavailable")
			return
		}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRunRequest struct {
	Keywords          []string `json:"keywords"`
	MaxPages          *int     `json:"max_pages"`
	PageSize          *int     `json:"page_size"`
	SearchConcurrency *int     `json:"search_concurrency"`
	DetailConcurrency *int     `json:"detail_concurrency"`
	KeywordTimeoutSec *int     `json:"keyword_timeout_seconds"`
	DetailTimeoutSec  *int     `json:"detail_timeout_seconds"`
	DelaySec          *int     `json:"delay_seconds"`
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts, err := s.toRunOptions(req)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	opts.RunID = id

	// The run outlives the request; detach it from the request context.
	go func() {
		if _, _, err := s.executor.Execute(context.WithoutCancel(r.Context()), opts); err != nil {
			s.logger.Error("run failed", zap.String("run_id", id.String()), zap.Error(err))
		}
	}()

	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"run_id": id.String(),
		"status": string(store.RunStatusRunning),
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	rec, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "run not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to fetch run")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, rec)
}

func (s *Server) getRunPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	posts, err := s.runs.ListPosts(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "run not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to fetch posts")
		return
	}
	if posts == nil {
		posts = []crawl.Post{}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"run_id": id.String(),
		"posts":  posts,
	})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "run_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, fmt.Sprintf("invalid run id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) toRunOptions(req submitRunRequest) (crawl.Options, error) {
	opts := s.defaults
	if len(req.Keywords) > 0 {
		opts.Keywords = req.Keywords
	}
	if len(opts.Keywords) == 0 {
		return crawl.Options{}, errors.New("at least one keyword required")
	}
	opts.MaxPages = valueOrDefault(req.MaxPages, opts.MaxPages)
	opts.PageSize = valueOrDefault(req.PageSize, opts.PageSize)
	opts.SearchConcurrency = valueOrDefault(req.SearchConcurrency, opts.SearchConcurrency)
	opts.DetailConcurrency = valueOrDefault(req.DetailConcurrency, opts.DetailConcurrency)
	if req.KeywordTimeoutSec != nil {
		opts.KeywordTimeout = time.Duration(*req.KeywordTimeoutSec) * time.Second
	}
	if req.DetailTimeoutSec != nil {
		opts.DetailTimeout = time.Duration(*req.DetailTimeoutSec) * time.Second
	}
	if req.DelaySec != nil {
		opts.Delay = time.Duration(*req.DelaySec) * time.Second
	}
	if err := opts.Validate(); err != nil {
		return crawl.Options{}, err
	}
	return opts, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
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

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
