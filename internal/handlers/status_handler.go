package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/marketlens/internal/common"
)

// StatusHandler serves health and version endpoints.
type StatusHandler struct {
	startTime time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{startTime: time.Now()}
}

// HealthHandler handles GET /api/health.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
