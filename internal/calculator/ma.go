package calculator

import (
	"errors"
	"math"

	"KabuSentinel/internal/model"
)

var (
	// ErrInsufficientData is returned when a series is too short to compute anything.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidParams is returned for non-positive windows or inconsistent spans.
	ErrInvalidParams = errors.New("invalid indicator params")
)

// RollingMean returns the trailing mean of each window of length n.
// Rows before the window is filled are NA.
func RollingMean(values []float64, n int) []float64 {
	out := naSeries(len(values))
	if n <= 0 {
		return out
	}
	for t := n - 1; t < len(values); t++ {
		out[t] = mean(values[t-n+1 : t+1])
	}
	return out
}

// RollingStd returns the trailing sample (n-1) standard deviation of each window.
func RollingStd(values []float64, n int) []float64 {
	out := naSeries(len(values))
	if n <= 1 {
		return out
	}
	for t := n - 1; t < len(values); t++ {
		out[t] = sampleStd(values[t-n+1 : t+1])
	}
	return out
}

// EMA returns the recursive exponential moving average seeded with the first value.
// No bias adjustment is applied.
func EMA(values []float64, span int) []float64 {
	out := naSeries(len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}
	k := 2.0 / float64(span+1)
	out[0] = values[0]
	for t := 1; t < len(values); t++ {
		out[t] = values[t]*k + out[t-1]*(1-k)
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func naSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = model.NA
	}
	return out
}
