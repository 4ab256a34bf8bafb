package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// Pinger is satisfied by *redis.Client and anything else worth probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db       *sqlx.DB
	checks   map[string]Pinger
	now      func() time.Time
	deadline time.Duration
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{
		db:       db,
		checks:   map[string]Pinger{},
		now:      time.Now,
		deadline: 2 * time.Second,
	}
}

// WithCheck adds a named dependency to the readiness report.
func (h *HealthHandler) WithCheck(name string, p Pinger) *HealthHandler {
	if p != nil {
		h.checks[name] = p
	}
	return h
}

// pingHandler reports liveness only.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// healthCheckHandler reports readiness: postgres plus every registered check.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": h.check(ctx, h.db.PingContext),
	}
	for name, p := range h.checks {
		components[name] = h.check(ctx, p.Ping)
	}

	overall := HealthHealthy
	for _, entry := range components {
		if entry.Status == HealthUnhealthy {
			overall = HealthUnhealthy
		}
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:     overall,
		CheckedAt:  h.now().UTC(),
		Components: components,
	})
}

func (h *HealthHandler) check(ctx context.Context, ping func(context.Context) error) CheckEntry {
	start := h.now()
	err := ping(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  h.now().UTC(),
		DurationMs: h.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}
