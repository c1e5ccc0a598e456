// Package api exposes the HTTP interface for the analytics collector.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dataforge-analytics/collector/internal/config"
	"github.com/dataforge-analytics/collector/internal/event"
	"github.com/dataforge-analytics/collector/internal/metrics"
	"github.com/dataforge-analytics/collector/web"
)

// Store is the persistence gateway surface the server depends on. Tests
// substitute a fake.
type Store interface {
	Ready() bool
	Healthy(ctx context.Context) bool
	InsertPageview(ctx context.Context, rec event.PageviewRecord) error
	InsertEvent(ctx context.Context, rec event.EventRecord) error
	InsertAnonPageview(ctx context.Context, rec event.PageviewRecord) error
}

// Server wires HTTP handlers to the persistence gateway.
type Server struct {
	router  chi.Router
	store   Store
	limiter *clientLimiter
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   store,
		limiter: newClientLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimitWindow()),
		logger:  logger,
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bodyLimitMiddleware(int64(cfg.Server.MaxBodyBytes)))
		r.Use(s.rateLimitMiddleware)
		r.Use(s.readinessGate)
		r.Post("/", s.ingest)
	})

	r.Get("/health", s.health)
	r.Get("/static/v1/dataforge-client.js", s.clientScript)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// readinessGate rejects ingestion until schema bootstrap has completed. The
// gate never queues requests; a coarse status tells the caller whether the
// database itself is reachable while bootstrap is pending.
func (s *Server) readinessGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.store.Ready() {
			probeCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			status := "unhealthy"
			if s.store.Healthy(probeCtx) {
				status = "warming_up"
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":  "Service unavailable",
				"status": status,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
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
			zap.String("request_id", requestID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) clientScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(web.ClientScript); err != nil {
		s.logger.Error("client script write failed", zap.Error(err))
	}
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
