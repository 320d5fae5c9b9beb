package indicator

import "github.com/guregu/null/v6"

// RSI computes the relative strength index over the last period deltas
// using simple averages. It needs period+1 closes; a window with no losses
// is 100.
func RSI(closes []float64, period int) null.Float {
	if period <= 0 || len(closes) < period+1 {
		return null.Float{}
	}

	window := closes[len(closes)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return null.FloatFrom(100)
	}

	rs := avgGain / avgLoss
	return null.FloatFrom(100 - 100/(1+rs))
}
