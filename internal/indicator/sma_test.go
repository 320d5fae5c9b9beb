package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// SMA(3) for [10,11,12,13,14,15]:
	// [0] = (10+11+12)/3 = 11
	// [1] = (11+12+13)/3 = 12
	// [2] = (12+13+14)/3 = 13
	// [3] = (13+14+15)/3 = 14

	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	prices := []float64{10, 11}
	sma := SMA(prices, 5)

	if len(sma) != 0 {
		t.Errorf("expected empty slice, got %d values", len(sma))
	}
}

func TestLastSMA(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	got := LastSMA(prices, 3)
	if !got.Valid || got.Float64 != 14 {
		t.Errorf("LastSMA(3) = %v, want 14", got)
	}

	if LastSMA(prices, 7).Valid {
		t.Error("expected null when series shorter than period")
	}

	full := LastSMA(prices, 6)
	if !almostEqual(full.Float64, 12.5, 1e-9) {
		t.Errorf("LastSMA(6) = %f, want 12.5", full.Float64)
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
