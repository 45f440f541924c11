package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu         sync.RWMutex
	lastCycle  time.Time
	lastPrice  float64
	feedsReady bool
	errors     []string
}

type HealthStatus struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	LastCycle  time.Time `json:"last_cycle"`
	LastPrice  float64   `json:"last_price"`
	FeedsReady bool      `json:"feeds_ready"`
	Uptime     string    `json:"uptime"`
	Errors     []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// RecordCycle marks a completed evaluation cycle.
func (h *HealthChecker) RecordCycle(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastPrice = price
}

// SetFeedsReady records feed readiness as seen by the engine.
func (h *HealthChecker) SetFeedsReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedsReady = ready
}

// RecordError appends a persistent error visible in the health payload.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.feedsReady || time.Since(h.lastCycle) > time.Hour {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		LastCycle:  h.lastCycle,
		LastPrice:  h.lastPrice,
		FeedsReady: h.feedsReady,
		Uptime:     time.Since(startTime).String(),
		Errors:     h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
