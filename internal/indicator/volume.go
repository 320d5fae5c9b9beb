package indicator

import "github.com/guregu/null/v6"

// VolumeRatio divides the latest reported volume by the average of the last
// period reported volumes. Missing observations are skipped. The average is
// returned whenever enough observations exist; the ratio only when it is
// positive.
func VolumeRatio(volumes []null.Float, period int) (ratio, average null.Float) {
	if period <= 0 {
		return
	}

	reported := make([]float64, 0, len(volumes))
	for _, v := range volumes {
		if v.Valid {
			reported = append(reported, v.Float64)
		}
	}
	if len(reported) < period {
		return
	}

	avg := LastSMA(reported, period)
	if avg.Float64 <= 0 {
		return null.Float{}, avg
	}
	current := reported[len(reported)-1]
	return null.FloatFrom(current / avg.Float64), avg
}
