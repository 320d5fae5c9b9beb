// Package signal classifies discrete trading signals from a computed row.
// It is the only place signal flags are derived.
package signal

import "github.com/newthinker/radar/internal/core"

// Thresholds are the cut-offs used by the classifier.
type Thresholds struct {
	RSIOversold     float64 // strictly below
	RSIOverbought   float64 // strictly above
	VolumeSpike     float64 // ratio at or above
	NearHighPct     float64 // pct from 52w high at or above -NearHighPct
	NearLowPct      float64 // pct above 52w low at or below
	PositiveNews    float64 // combined sentiment strictly above
	NegativeNews    float64 // combined sentiment strictly below
	MinTrendSignals int     // sub-signals needed for a trend summary
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:     30,
		RSIOverbought:   70,
		VolumeSpike:     2.0,
		NearHighPct:     5,
		NearLowPct:      5,
		PositiveNews:    0.3,
		NegativeNews:    -0.3,
		MinTrendSignals: 3,
	}
}

// Detector applies a fixed threshold table.
type Detector struct {
	t Thresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{t: t}
}

// Default is a detector using DefaultThresholds.
var Default = NewDetector(DefaultThresholds())

// Detect classifies the row with the default thresholds.
func Detect(row core.Row) core.Signals {
	return Default.Detect(row)
}

// Apply returns a copy of row with its signal flags set.
func (d *Detector) Apply(row core.Row) core.Row {
	row.Signals = d.Detect(row)
	return row
}

// Detect classifies the row. Missing inputs never raise a flag.
func (d *Detector) Detect(row core.Row) core.Signals {
	var s core.Signals

	if row.RSI14.Valid {
		s.RSIOversold = row.RSI14.Float64 < d.t.RSIOversold
		s.RSIOverbought = row.RSI14.Float64 > d.t.RSIOverbought
	}

	if row.VolumeRatio.Valid {
		s.VolumeSpike = row.VolumeRatio.Float64 >= d.t.VolumeSpike
	}

	if row.PctFrom52wHigh.Valid {
		s.Near52wHigh = row.PctFrom52wHigh.Float64 >= -d.t.NearHighPct
	}
	if row.Close.Valid && row.Week52Low.Valid && row.Week52Low.Float64 > 0 {
		low := row.Week52Low.Float64
		s.Near52wLow = (row.Close.Float64-low)/low*100 <= d.t.NearLowPct
	}

	if row.MA50Above200.Valid {
		s.GoldenCross = row.MA50Above200.Bool
		s.DeathCross = !row.MA50Above200.Bool
	}

	above50 := row.AboveMA50.Valid && row.AboveMA50.Bool
	above200 := row.AboveMA200.Valid && row.AboveMA200.Bool
	below50 := row.AboveMA50.Valid && !row.AboveMA50.Bool
	below200 := row.AboveMA200.Valid && !row.AboveMA200.Bool
	s.BullishTrend = above50 && above200
	s.BearishTrend = below50 && below200

	if row.NewsSentimentCombined.Valid {
		s.PositiveNews = row.NewsSentimentCombined.Float64 > d.t.PositiveNews
		s.NegativeNews = row.NewsSentimentCombined.Float64 < d.t.NegativeNews
	}

	bull := count(s.RSIOversold, s.Near52wLow, s.GoldenCross, above50, above200)
	bear := count(s.RSIOverbought, s.Near52wHigh, s.DeathCross, below50, below200)
	s.Summary = d.summarize(bull, bear)

	return s
}

func (d *Detector) summarize(bull, bear int) core.SignalSummary {
	switch {
	case bull >= d.t.MinTrendSignals && bull > bear:
		return core.SummaryBullish
	case bear >= d.t.MinTrendSignals && bear > bull:
		return core.SummaryBearish
	default:
		return core.SummaryNeutral
	}
}

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
