// internal/api/handler/api/routing.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/oakline/compass/internal/api/response"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/router"
)

// RoutingHandler exposes routing state and selection controls.
type RoutingHandler struct {
	router *router.Router
	hist   *histdata.Service
}

// NewRoutingHandler creates a routing handler.
func NewRoutingHandler(rt *router.Router, hist *histdata.Service) *RoutingHandler {
	return &RoutingHandler{router: rt, hist: hist}
}

// Status returns the current routing configuration.
func (h *RoutingHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.router.RoutingConfig(r.Context()))
}

type setSymbolRequest struct {
	Symbol string `json:"symbol"`
}

// SetSymbol changes the analysis symbol (historical mode only).
func (h *RoutingHandler) SetSymbol(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setSymbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	cfg, err := h.router.SetSymbol(r.Context(), req.Symbol)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cfg)
}

type setTimeRangeRequest struct {
	TimeRange string `json:"time_range"`
}

// SetTimeRange changes the historical window (historical mode only).
func (h *RoutingHandler) SetTimeRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setTimeRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TimeRange == "" {
		http.Error(w, "time_range is required", http.StatusBadRequest)
		return
	}

	cfg, err := h.router.SetTimeRange(r.Context(), req.TimeRange)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cfg)
}

// Symbols lists the symbols available under the current data mode.
func (h *RoutingHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	cfg := h.router.RoutingConfig(r.Context())
	response.JSON(w, http.StatusOK, map[string]any{
		"data_mode": cfg.DataMode,
		"symbols":   cfg.AvailableSymbols,
		"selected":  cfg.SelectedSymbol,
	})
}

// TimeRanges lists the fixed historical window set.
func (h *RoutingHandler) TimeRanges(w http.ResponseWriter, r *http.Request) {
	cfg := h.router.RoutingConfig(r.Context())
	response.JSON(w, http.StatusOK, map[string]any{
		"time_ranges": h.hist.TimeRanges(),
		"selected":    cfg.SelectedTimeRange,
		"enabled":     cfg.ControlsEnabled.TimeRangeSelector,
	})
}

// Reset clears memoized market status and re-initializes routing.
func (h *RoutingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response.JSON(w, http.StatusOK, h.router.Reset(r.Context()))
}
