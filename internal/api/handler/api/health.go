// internal/api/handler/api/health.go
package api

import (
	"net/http"

	"github.com/oakline/compass/internal/api/response"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/router"
)

// HealthHandler reports process health. It never fails: a degraded upstream
// shows up in the body, not in the status code.
type HealthHandler struct {
	router  *router.Router
	hist    *histdata.Service
	version string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(rt *router.Router, hist *histdata.Service, version string) *HealthHandler {
	return &HealthHandler{router: rt, hist: hist, version: version}
}

// Health returns the liveness payload.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.router.Status(r.Context())
	response.JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"market_status":  status.State,
		"market_reason":  status.Reason,
		"cached_symbols": len(h.hist.Symbols()),
	})
}
