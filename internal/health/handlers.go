package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/zsiec/gre2g/pkg/version"
)

// Response is the /health body. Each check carries its checker's details:
// the blob store root entry count, the ffmpeg and ffprobe versions and the
// number of runs tracked in redis.
type Response struct {
	Status   Status            `json:"status"`
	Product  string            `json:"product"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Checks   map[string]*Check `json:"checks,omitempty"`
	Degraded []string          `json:"degraded,omitempty"`
	Down     []string          `json:"down,omitempty"`
}

// ReadyResponse is the /ready body, built from the last check results.
type ReadyResponse struct {
	Status Status   `json:"status"`
	Down   []string `json:"down,omitempty"`
}

// Handler serves the health endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, startTime: time.Now()}
}

// HandleHealth runs every check and reports the results.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*checkTimeout)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	status := h.manager.GetOverallStatus()

	h.writeJSON(w, httpStatus(status), Response{
		Status:   status,
		Product:  version.Product,
		Version:  version.Version,
		Uptime:   time.Since(h.startTime).Truncate(time.Second).String(),
		Checks:   checks,
		Degraded: namesWith(checks, StatusDegraded),
		Down:     namesWith(checks, StatusDown),
	})
}

// HandleReady reports the cached status without running checks.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.manager.GetOverallStatus()
	h.writeJSON(w, httpStatus(status), ReadyResponse{
		Status: status,
		Down:   namesWith(h.manager.GetResults(), StatusDown),
	})
}

// HandleLive always answers 200 while the process serves HTTP.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Degraded still serves traffic.
func httpStatus(s Status) int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func namesWith(checks map[string]*Check, status Status) []string {
	var names []string
	for name, c := range checks {
		if c.Status == status {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
