// internal/api/handler/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oakline/compass/internal/api/response"
	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/engine"
	"github.com/oakline/compass/internal/guardrails"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/marketstatus"
	"github.com/oakline/compass/internal/memory"
	"github.com/oakline/compass/internal/router"
	"github.com/oakline/compass/internal/runner"
)

type fixedStrategy struct {
	status core.MarketStatus
}

func (f fixedStrategy) Name() string { return "fixed" }

func (f fixedStrategy) Resolve(ctx context.Context) (core.MarketStatus, error) {
	return f.status, nil
}

func writeCandleFile(t *testing.T, dir, name string, n int) {
	t.Helper()

	end := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		price := 400.0 + float64(i)
		candles = append(candles, map[string]any{
			"timestamp": end.AddDate(0, 0, -(n - 1 - i)).Format(time.RFC3339),
			"open":      price,
			"high":      price + 2,
			"low":       price - 2,
			"close":     price + 1,
		})
	}

	data, err := json.Marshal(candles)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func testFixtures(t *testing.T, open bool) (*router.Router, *histdata.Service) {
	t.Helper()

	dir := t.TempDir()
	writeCandleFile(t, dir, "SPY_2023-01-01_2023-06-01.json", 100)
	writeCandleFile(t, dir, "QQQ_2023-01-01_2023-06-01.json", 100)
	hist := histdata.New(dir, nil)

	status := core.MarketStatus{State: core.MarketClosed, Reason: "Weekend", Timestamp: time.Now()}
	if open {
		status = core.MarketStatus{State: core.MarketOpen, Reason: "Market is Open", Timestamp: time.Now()}
	}
	resolver := marketstatus.NewResolver(
		[]marketstatus.Strategy{fixedStrategy{status: status}}, nil,
	)
	rt := router.New(router.DefaultConfig(), resolver, hist, nil, nil)
	return rt, hist
}

func TestRoutingHandler_Status(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	w := httptest.NewRecorder()
	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	data := resp.Data.(map[string]any)
	if data["data_mode"] != "HISTORICAL" {
		t.Errorf("expected HISTORICAL, got %v", data["data_mode"])
	}
	if data["market_status"] != "CLOSED" {
		t.Errorf("expected CLOSED, got %v", data["market_status"])
	}
}

func TestRoutingHandler_SetSymbol(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("POST", "/api/v1/set-symbol", strings.NewReader(`{"symbol":"QQQ"}`))
	w := httptest.NewRecorder()
	handler.SetSymbol(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["selected_symbol"] != "QQQ" {
		t.Errorf("expected QQQ selected, got %v", data["selected_symbol"])
	}
}

func TestRoutingHandler_SetSymbol_Unknown(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("POST", "/api/v1/set-symbol", strings.NewReader(`{"symbol":"TSLA"}`))
	w := httptest.NewRecorder()
	handler.SetSymbol(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "SYMBOL_NOT_FOUND" {
		t.Errorf("expected SYMBOL_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestRoutingHandler_SetSymbol_BlockedWhenOpen(t *testing.T) {
	rt, hist := testFixtures(t, true)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("POST", "/api/v1/set-symbol", strings.NewReader(`{"symbol":"QQQ"}`))
	w := httptest.NewRecorder()
	handler.SetSymbol(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 during live hours, got %d", w.Code)
	}

	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "INVALID_OPERATION" {
		t.Errorf("expected INVALID_OPERATION, got %s", resp.Error.Code)
	}
}

func TestRoutingHandler_SetTimeRange_Invalid(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("POST", "/api/v1/set-time-range", strings.NewReader(`{"time_range":"3W"}`))
	w := httptest.NewRecorder()
	handler.SetTimeRange(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp response.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "RANGE_INVALID" {
		t.Errorf("expected RANGE_INVALID, got %s", resp.Error.Code)
	}
}

func TestRoutingHandler_TimeRanges(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewRoutingHandler(rt, hist)

	req := httptest.NewRequest("GET", "/api/v1/time-ranges", nil)
	w := httptest.NewRecorder()
	handler.TimeRanges(w, req)

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	ranges := data["time_ranges"].(map[string]any)
	if len(ranges) != 4 {
		t.Errorf("expected 4 time ranges, got %d", len(ranges))
	}
}

func TestDataHandler_MarketData(t *testing.T) {
	rt, _ := testFixtures(t, false)
	handler := NewDataHandler(rt)

	req := httptest.NewRequest("GET", "/api/v1/market-data", nil)
	w := httptest.NewRecorder()
	handler.MarketData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["status"] != "success" {
		t.Errorf("expected success payload, got %v", data["status"])
	}
	if data["data_source"] != histdata.DataSourceLabel {
		t.Errorf("expected historical data source, got %v", data["data_source"])
	}
}

func TestDataHandler_MarketData_LiveAdapterFailure(t *testing.T) {
	rt, _ := testFixtures(t, true)
	handler := NewDataHandler(rt)

	req := httptest.NewRequest("GET", "/api/v1/market-data", nil)
	w := httptest.NewRecorder()
	handler.MarketData(w, req)

	// Payload errors keep HTTP 200; the envelope carries the verdict.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["status"] != "error" {
		t.Errorf("expected error payload, got %v", data["status"])
	}
	if data["data_mode"] != "LIVE" {
		t.Errorf("expected LIVE mode preserved, got %v", data["data_mode"])
	}
	if !strings.Contains(data["data_source"].(string), "(Connection Error)") {
		t.Errorf("expected connection error annotation, got %v", data["data_source"])
	}
}

func TestRunHandler_Run(t *testing.T) {
	rt, _ := testFixtures(t, false)
	mem := memory.NewFileStore(filepath.Join(t.TempDir(), "agent_memory.json"), nil)
	rn := runner.New(rt, engine.New(nil), guardrails.New(nil), mem, nil, 0.25, nil)
	handler := NewRunHandler(rn)

	req := httptest.NewRequest("POST", "/api/v1/run", strings.NewReader(`{"symbol":"QQQ","time_range":"1M"}`))
	w := httptest.NewRecorder()
	handler.Run(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["run_id"] == "" {
		t.Error("expected run_id")
	}
	if data["data_mode"] != "HISTORICAL" {
		t.Errorf("expected HISTORICAL, got %v", data["data_mode"])
	}

	symbols := data["symbols_used"].([]any)
	if len(symbols) != 1 || symbols[0] != "QQQ" {
		t.Errorf("expected symbol override applied, got %v", symbols)
	}
}

func TestHealthHandler(t *testing.T) {
	rt, hist := testFixtures(t, false)
	handler := NewHealthHandler(rt, hist, "test")

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("expected ok, got %v", data["status"])
	}
	if data["cached_symbols"].(float64) != 2 {
		t.Errorf("expected 2 cached symbols, got %v", data["cached_symbols"])
	}
}
