package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dataforge-analytics/collector/internal/event"
	"github.com/dataforge-analytics/collector/internal/ipaddr"
	"github.com/dataforge-analytics/collector/internal/metrics"
)

// maxLoggedErrorChars bounds how much of a database error lands in the log;
// full driver errors can carry connection detail.
const maxLoggedErrorChars = 256

// ingest accepts one telemetry payload, validates and sanitizes it, and
// performs exactly one insert for the accepted type.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		metrics.ObserveRejection("malformed_body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	normalized, err := event.Validate(raw)
	if err != nil {
		metrics.ObserveRejection("validation")
		s.logger.Warn("invalid request",
			zap.String("reason", err.Error()),
			zap.String("request_id", requestID(r.Context())),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clientIP := s.clientIP(r)

	start := time.Now()
	switch normalized.Type {
	case event.TypePageview:
		err = s.store.InsertPageview(r.Context(), event.PageviewRecord{
			URL:              normalized.URL,
			UserAgent:        normalized.UserAgent,
			IPAddress:        clientIP,
			PageLoadTime:     normalized.PageLoadTime,
			ScreenResolution: normalized.ScreenResolution,
		})
	case event.TypeEvent:
		err = s.store.InsertEvent(r.Context(), event.EventRecord{
			URL:       normalized.URL,
			UserAgent: normalized.UserAgent,
			IPAddress: clientIP,
			Name:      normalized.EventName,
			Category:  normalized.EventCategory,
			Label:     normalized.EventLabel,
			Payload:   normalized.Payload,
		})
	case event.TypePageviewAnon:
		err = s.store.InsertAnonPageview(r.Context(), event.PageviewRecord{
			URL:       normalized.URL,
			UserAgent: normalized.UserAgent,
			IPAddress: clientIP,
		})
	}

	if err != nil {
		reqID := requestID(r.Context())
		s.logger.Error("database operation failed",
			zap.String("type", string(normalized.Type)),
			zap.String("error", truncateError(err)),
			zap.String("request_id", reqID),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "Failed to process request",
			"requestId": reqID,
		})
		return
	}

	metrics.ObserveIngest(string(normalized.Type))
	metrics.ObserveInsert(string(normalized.Type), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// health reports database reachability and bootstrap state. It is polled
// independently of the write path and never gates traffic itself.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	probeCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthy := s.store.Healthy(probeCtx)
	status := http.StatusOK
	db := "connected"
	if !healthy {
		status = http.StatusServiceUnavailable
		db = "disconnected"
	}
	writeJSON(w, status, map[string]any{
		"db":          db,
		"initialized": s.store.Ready(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// clientIP resolves the caller address from the forwarding header when
// present, falling back to the connection address. Unparseable values are
// substituted with the safe default and logged, never rejected.
func (s *Server) clientIP(r *http.Request) string {
	raw := clientAddr(r)
	ip, ok := ipaddr.Normalize(raw)
	if !ok {
		s.logger.Warn("invalid client address", zap.String("raw", raw))
	}
	return ip
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxLoggedErrorChars {
		return msg[:maxLoggedErrorChars]
	}
	return msg
}
