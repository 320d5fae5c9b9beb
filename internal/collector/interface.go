package collector

import (
	"context"
	"fmt"

	"github.com/newthinker/radar/internal/core"
)

// Range is a history lookback accepted by the chart endpoint
type Range string

const (
	Range1D  Range = "1d"
	Range5D  Range = "5d"
	Range1Mo Range = "1mo"
	Range3Mo Range = "3mo"
	Range6Mo Range = "6mo"
	Range1Y  Range = "1y"
	Range5Y  Range = "5y"
	RangeMax Range = "max"
)

// Valid reports whether r is one of the enumerated ranges.
func (r Range) Valid() bool {
	switch r {
	case Range1D, Range5D, Range1Mo, Range3Mo, Range6Mo, Range1Y, Range5Y, RangeMax:
		return true
	}
	return false
}

// Interval is a bar size accepted by the chart endpoint
type Interval string

const (
	Interval1D  Interval = "1d"
	Interval1Wk Interval = "1wk"
	Interval1Mo Interval = "1mo"
)

// Valid reports whether i is one of the enumerated intervals.
func (i Interval) Valid() bool {
	switch i {
	case Interval1D, Interval1Wk, Interval1Mo:
		return true
	}
	return false
}

// ValidateRequest checks history arguments before any network call.
func ValidateRequest(ticker string, r Range, i Interval) error {
	if ticker == "" {
		return core.WrapError(core.ErrPermanentFetch, fmt.Errorf("ticker cannot be empty"))
	}
	if !r.Valid() {
		return core.WrapError(core.ErrPermanentFetch, fmt.Errorf("invalid range %q", r))
	}
	if !i.Valid() {
		return core.WrapError(core.ErrPermanentFetch, fmt.Errorf("invalid interval %q", i))
	}
	return nil
}

// MarketData serves price history and fundamentals.
type MarketData interface {
	// History returns bars in ascending order. Bars without a close are
	// never returned.
	History(ctx context.Context, ticker string, r Range, i Interval) ([]core.OHLCV, error)

	// Fundamentals returns the latest snapshot. Unreported fields are null.
	Fundamentals(ctx context.Context, ticker string) (core.Fundamentals, error)
}

// NewsSource produces per-instrument headline sentiment. Implementations
// degrade to an empty result instead of failing.
type NewsSource interface {
	Sentiment(ctx context.Context, inst core.Instrument) core.NewsSentiment
}

// Metrics receives per-request outcomes from collectors.
type Metrics interface {
	RecordFetch(source, result string)
	RecordRetry(source string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, string) {}
func (NopMetrics) RecordRetry(string)         {}
