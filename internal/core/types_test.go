package core

import (
	"testing"
	"time"
)

func TestMarketStatus_IsOpen(t *testing.T) {
	open := MarketStatus{State: MarketOpen, Reason: "Market Open (Local Time)", Timestamp: time.Now()}
	if !open.IsOpen() {
		t.Error("expected open status")
	}

	closed := MarketStatus{State: MarketClosed, Reason: "Weekend", Timestamp: time.Now()}
	if closed.IsOpen() {
		t.Error("expected closed status")
	}
}

func TestCandle_IsValid(t *testing.T) {
	c := Candle{
		Timestamp: time.Now(),
		Open:      430.0,
		High:      432.5,
		Low:       429.1,
		Close:     431.8,
	}
	if !c.IsValid() {
		t.Error("expected valid candle")
	}

	inverted := Candle{Timestamp: time.Now(), High: 1.0, Low: 2.0}
	if inverted.IsValid() {
		t.Error("high below low should be invalid")
	}

	zero := Candle{High: 2.0, Low: 1.0}
	if zero.IsValid() {
		t.Error("zero timestamp should be invalid")
	}
}

func TestDataMode_Constants(t *testing.T) {
	if string(DataModeLive) != "LIVE" || string(DataModeHistorical) != "HISTORICAL" {
		t.Error("unexpected data mode constants")
	}
}

func TestVolatilityState_Constants(t *testing.T) {
	states := []VolatilityState{VolatilityExpanding, VolatilityStable, VolatilityContracting}
	expected := []string{"EXPANDING", "STABLE", "CONTRACTING"}
	for i, s := range states {
		if string(s) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], s)
		}
	}
}
