// internal/api/handler/api/data.go
package api

import (
	"net/http"

	"github.com/oakline/compass/internal/api/response"
	"github.com/oakline/compass/internal/router"
)

// DataHandler exposes routed market and portfolio payloads. Payload-level
// errors keep HTTP 200: the envelope's status field carries the verdict so
// callers always see which mode and source produced it.
type DataHandler struct {
	router *router.Router
}

// NewDataHandler creates a data handler.
func NewDataHandler(rt *router.Router) *DataHandler {
	return &DataHandler{router: rt}
}

// MarketData returns candles and headlines from the current mode's source.
func (h *DataHandler) MarketData(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.router.MarketData(r.Context()))
}

// Portfolio returns the portfolio and positions from the current mode's source.
func (h *DataHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.router.PortfolioData(r.Context()))
}

// Candidates returns prospective entries for the decision engine.
func (h *DataHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"candidates": h.router.Candidates(r.Context()),
	})
}

// SectorHeatmap returns per-sector strength for the current context.
func (h *DataHandler) SectorHeatmap(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"heatmap": h.router.SectorHeatmap(r.Context()),
	})
}
