package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker tracks liveness and readiness for the daemon. The
// process is alive as soon as it runs; it becomes ready only after the
// recovery replay finishes and intake is subscribed, and readiness is
// withdrawn again at the start of shutdown so load balancers drain
// before the channels close.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time
	// readySince is the unix nano timestamp of the last ready flip,
	// zero while not ready.
	readySince atomic.Int64
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
	if ready {
		h.readySince.Store(time.Now().UnixNano())
	} else {
		h.readySince.Store(0)
	}
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	ReadySince string `json:"ready_since,omitempty"`
}

// LivenessHandler always reports alive; a hung process fails by not
// answering, not by answering unhealthy.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, healthStatus{
		Status: "alive",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// ReadinessHandler reports 200 once replay and intake are up, 503
// before that and during shutdown drain.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{
		Status: "ready",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}

	if !h.ready.Load() {
		status.Status = "not_ready"
		writeHealth(w, http.StatusServiceUnavailable, status)
		return
	}

	if since := h.readySince.Load(); since > 0 {
		status.ReadySince = time.Unix(0, since).UTC().Format(time.RFC3339)
	}
	writeHealth(w, http.StatusOK, status)
}

func writeHealth(w http.ResponseWriter, code int, status healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
