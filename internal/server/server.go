// Package server exposes the schedule generator over HTTP: a one-shot
// full-plan endpoint, a websocket variant that streams days as they are
// planned, and health probes.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prepworks/mcat-scheduler/internal/catalog"
	"github.com/prepworks/mcat-scheduler/internal/platform/cache"
	"github.com/prepworks/mcat-scheduler/internal/schedule"
)

// Pinger is anything with a connection liveness check. Both the database pool
// wrapper and the cache wrapper satisfy it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	store   catalog.Store
	cache   *cache.Cache // nil disables response caching
	planTTL time.Duration
	probes  map[string]Pinger
}

// New creates a server. planCache may be nil to disable response caching;
// probes maps readiness probe names to connection checks.
func New(store catalog.Store, planCache *cache.Cache, planTTL time.Duration, probes map[string]Pinger) *Server {
	return &Server{
		store:   store,
		cache:   planCache,
		planTTL: planTTL,
		probes:  probes,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /full-plan", s.handleFullPlan)
	mux.HandleFunc("GET /full-plan/ws", s.handleFullPlanWS)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	return mux
}

// handleFullPlan generates a complete schedule in one response. Identical
// requests within the cache TTL are served from Redis without replanning.
func (s *Server) handleFullPlan(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := planCacheKey(r.URL.Query())
	if s.cache != nil {
		if body, err := s.cache.Get(r.Context(), key); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("plan cache read failed", "error", err)
		}
	}

	gen := schedule.NewGenerator(s.store, schedule.NewScheduleID())
	resp, err := gen.Generate(r.Context(), *req)
	if err != nil {
		slog.Error("plan generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, body, s.planTTL); err != nil {
			slog.Warn("plan cache write failed", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz pings every registered backend and reports per-probe status.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	statusText := "ready"
	checks := make(map[string]string, len(s.probes))
	for name, p := range s.probes {
		if err := p.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			statusText = "unavailable"
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status": statusText,
		"checks": checks,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// planCacheKey hashes the normalized query parameters. Two requests with the
// same parameters always describe the same plan because generation is
// deterministic for a fixed catalog.
func planCacheKey(q map[string][]string) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s",
		first(q, "start_date"),
		first(q, "test_date"),
		first(q, "priorities"),
		first(q, "availability"),
		first(q, "fl_weekday"),
	)
	return fmt.Sprintf("fullplan:%x", sha256.Sum256([]byte(canonical)))
}

func first(q map[string][]string, key string) string {
	if v, ok := q[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
