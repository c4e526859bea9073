package handler

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks,omitempty"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler runs every registered pinger with a shared timeout.
type HealthHandler struct {
	Service string
	Version string
	Pingers map[string]Pinger
	Timeout time.Duration
}

func (h *HealthHandler) GetOverallHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Service: h.Service,
		Version: h.Version,
		Checks:  make(map[string]HealthCheck, len(h.Pingers)),
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	allHealthy := true
	for name, ping := range h.Pingers {
		start := time.Now()
		err := ping(ctx)
		check := HealthCheck{Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			allHealthy = false
			check.Status = "unhealthy"
			check.Error = err.Error()
		}
		response.Checks[name] = check
	}

	if allHealthy {
		response.Status = "healthy"
		WriteJSON(w, http.StatusOK, response)
		return
	}
	response.Status = "unhealthy"
	WriteJSON(w, http.StatusServiceUnavailable, response)
}
