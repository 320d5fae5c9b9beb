package indicator

import "github.com/guregu/null/v6"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// LastSMA returns the simple average of the final period prices, or null
// when the series is shorter than period.
func LastSMA(prices []float64, period int) null.Float {
	if period <= 0 || len(prices) < period {
		return null.Float{}
	}
	return null.FloatFrom(SMA(prices[len(prices)-period:], period)[0])
}
