package api

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dataforge-analytics/collector/internal/ipaddr"
	"github.com/dataforge-analytics/collector/internal/metrics"
)

// clientLimiter manages per-client-address rate limits: a token bucket sized
// to the full window cap, refilled at cap-per-window.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

func newClientLimiter(maxRequests int, window time.Duration) *clientLimiter {
	if maxRequests <= 0 {
		maxRequests = 500
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:    maxRequests,
	}
}

// allow reports whether the given client may proceed.
func (l *clientLimiter) allow(client string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[client]
	if !exists {
		limiter = rate.NewLimiter(l.perSec, l.burst)
		l.limiters[client] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// rateLimitMiddleware turns away clients that exceed the ingestion cap.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := clientAddr(r)
		client, ok := ipaddr.Normalize(raw)
		if !ok {
			// Unparseable addresses keep their raw form as the key so one
			// misbehaving proxy population cannot drain a shared bucket.
			client = raw
		}
		if !s.limiter.allow(client) {
			metrics.ObserveRateLimited()
			s.logger.Warn("rate limit exceeded", zap.String("client", client))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
