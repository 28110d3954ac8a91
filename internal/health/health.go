// Package health provides the liveness and readiness probes for the
// voice server.
//
//   - /healthz — liveness; always 200, reports process uptime.
//   - /readyz  — readiness; 200 only when every registered [Checker]
//     passes. Checks run concurrently, each under its own timeout.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the
// dependency is usable and a descriptive error otherwise.
type Checker struct {
	// Name keys the check's result in the JSON response ("voice",
	// "provider", ...).
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

type liveResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
	started  time.Time
}

// New creates a Handler that evaluates the given checkers on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c, started: time.Now()}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/readyz", h.Readyz)
}

// Healthz reports liveness. It never fails: if this handler runs, the
// process is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz runs every checker concurrently and reports 503 if any fail.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ok"}
	if len(h.checkers) > 0 {
		resp.Checks = make(map[string]string, len(h.checkers))
	}

	results := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			results[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	status := http.StatusOK
	for i, c := range h.checkers {
		if err := results[i]; err != nil {
			resp.Status = "fail"
			resp.Checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks[c.Name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
