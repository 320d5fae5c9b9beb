package indicator

import (
	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/core"
)

// Windows used for the daily technical snapshot.
const (
	ShortMAPeriod    = 50
	LongMAPeriod     = 200
	RSIPeriod        = 14
	VolatilityPeriod = 30
	VolumePeriod     = 20
)

// Closes extracts close prices from an ascending series.
func Closes(bars []core.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Compute derives every technical field from an ascending series. The last
// bar is the current one. Fields whose window is not covered stay null.
func Compute(bars []core.OHLCV) core.Technicals {
	var t core.Technicals
	if len(bars) == 0 {
		return t
	}

	closes := Closes(bars)
	current := closes[len(closes)-1]

	t.MA50 = LastSMA(closes, ShortMAPeriod)
	t.MA200 = LastSMA(closes, LongMAPeriod)
	if t.MA50.Valid {
		t.AboveMA50 = null.BoolFrom(current > t.MA50.Float64)
	}
	if t.MA200.Valid {
		t.AboveMA200 = null.BoolFrom(current > t.MA200.Float64)
	}
	if t.MA50.Valid && t.MA200.Valid {
		t.MA50Above200 = null.BoolFrom(t.MA50.Float64 > t.MA200.Float64)
	}

	t.RSI14 = RSI(closes, RSIPeriod)
	t.Volatility30d = Volatility(closes, VolatilityPeriod)

	volumes := make([]null.Float, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	t.VolumeRatio, t.AvgVolume20d = VolumeRatio(volumes, VolumePeriod)

	return t
}
