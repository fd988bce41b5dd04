package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Interval is the bar size of a price series.
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
)

// PriceSeries holds raw price data for one ticker.
type PriceSeries struct {
	Code         string
	Name         string
	DailyBars    []OHLCV
	WeeklyBars   []OHLCV
	CurrentPrice float64
	FetchedAt    time.Time
}

// Closes extracts the close prices of bars.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// HasVolume reports whether any bar carries volume data.
func HasVolume(bars []OHLCV) bool {
	for _, b := range bars {
		if b.Volume > 0 {
			return true
		}
	}
	return false
}
