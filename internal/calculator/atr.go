package calculator

import (
	"math"

	"KabuSentinel/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(bars []model.OHLCV) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			tr[i] = hl
			continue
		}
		prevClose := bars[i-1].Close
		hc := math.Abs(b.High - prevClose)
		lc := math.Abs(b.Low - prevClose)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// CalculateATR returns the simple moving average of the true range.
func CalculateATR(bars []model.OHLCV, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}
