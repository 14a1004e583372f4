// internal/api/handler/api/run.go
package api

import (
	"encoding/json"
	"net/http"

	"github.com/oakline/compass/internal/api/response"
	"github.com/oakline/compass/internal/runner"
)

// RunHandler executes the market-aware analysis pipeline.
type RunHandler struct {
	runner *runner.Runner
}

// NewRunHandler creates a run handler.
func NewRunHandler(rn *runner.Runner) *RunHandler {
	return &RunHandler{runner: rn}
}

type runRequest struct {
	Symbol    string `json:"symbol"`
	TimeRange string `json:"time_range"`
}

// Run executes one analysis pass. GET takes query parameters, POST a JSON
// body; both are optional overrides that only apply in historical mode.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var opts runner.Options

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		opts.Symbol = q.Get("symbol")
		opts.TimeRange = q.Get("time_range")
	case http.MethodPost:
		if r.Body != nil {
			var req runRequest
			// An empty or absent body is a run with no overrides.
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				opts.Symbol = req.Symbol
				opts.TimeRange = req.TimeRange
			}
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response.JSON(w, http.StatusOK, h.runner.Run(r.Context(), opts))
}
