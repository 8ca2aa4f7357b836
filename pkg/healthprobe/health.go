package healthprobe

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks and reports suite progress.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
	passed    atomic.Int64
	failed    atomic.Int64

	mu       sync.RWMutex
	scenario string
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady marks the harness as connected to the execution service.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetScenario records the scenario currently running. Empty means idle.
func (h *HealthChecker) SetScenario(name string) {
	h.mu.Lock()
	h.scenario = name
	h.mu.Unlock()
}

// RecordResult counts a finished scenario.
func (h *HealthChecker) RecordResult(passed bool) {
	if passed {
		h.passed.Add(1)
		return
	}
	h.failed.Add(1)
}

// Progress is the scenario tally reported by the health endpoints.
type Progress struct {
	Scenario string `json:"scenario,omitempty"`
	Passed   int64  `json:"passed"`
	Failed   int64  `json:"failed"`
}

// Progress returns the current scenario tally.
func (h *HealthChecker) Progress() Progress {
	h.mu.RLock()
	scenario := h.scenario
	h.mu.RUnlock()

	return Progress{
		Scenario: scenario,
		Passed:   h.passed.Load(),
		Failed:   h.failed.Load(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string    `json:"status"`
	Uptime   string    `json:"uptime"`
	Message  string    `json:"message,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK while the process is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress := h.Progress()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:   "healthy",
			Uptime:   time.Since(h.startTime).String(),
			Progress: &progress,
		})
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK once the execution service was reached, 503 before.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "execution service not reached yet",
			})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
