package calculator

import (
	"errors"
	"math"

	"KabuSentinel/internal/model"
)

// Trading sessions per year on the TSE, used for the 52-week window and volatility scaling.
const tradingDaysPerYear = 252

// CalculateRange scans the most recent `lookback` bars and returns the high and low.
func CalculateRange(bars []model.OHLCV, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// Calculate52WeekRange returns the high and low of the last 252 sessions.
func Calculate52WeekRange(dailyBars []model.OHLCV) (high, low float64, err error) {
	return CalculateRange(dailyBars, tradingDaysPerYear)
}

// CalculateRangePosition returns where current sits within [low, high] as a percentage.
// A flat range is reported as the midpoint.
func CalculateRangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 50, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low) * 100
	return math.Max(0, math.Min(100, pos)), nil
}
