package indicator

import (
	"math"

	"github.com/guregu/null/v6"
)

// Volatility returns the population standard deviation of the last period
// daily returns, in percent. It needs period+1 consecutive closes.
func Volatility(closes []float64, period int) null.Float {
	if period <= 0 || len(closes) < period+1 {
		return null.Float{}
	}

	window := closes[len(closes)-period-1:]
	returns := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return null.Float{}
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	return null.FloatFrom(math.Sqrt(sq/float64(len(returns))) * 100)
}
