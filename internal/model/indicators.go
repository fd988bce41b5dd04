package model

import (
	"math"
	"time"
)

// NA marks an indicator value that cannot be computed yet (warm-up rows).
var NA = math.NaN()

// IsNA reports whether v is the not-available marker.
func IsNA(v float64) bool { return math.IsNaN(v) }

// Params configures the indicator windows. Pass it explicitly; there is no global default.
type Params struct {
	SMAShort   int     `yaml:"sma_short"`
	SMAMid     int     `yaml:"sma_mid"`
	SMALong    int     `yaml:"sma_long"`
	RSIPeriod  int     `yaml:"rsi_period"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	BBWindow   int     `yaml:"bb_window"`
	BBStd      float64 `yaml:"bb_std"`
	ATRPeriod  int     `yaml:"atr_period"`
	VolumeSMA  int     `yaml:"volume_sma"`
}

// DefaultParams returns the daily-chart parameter set.
func DefaultParams() Params {
	return Params{
		SMAShort:   5,
		SMAMid:     25,
		SMALong:    75,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBWindow:   20,
		BBStd:      2,
		ATRPeriod:  14,
		VolumeSMA:  5,
	}
}

// WeeklyParams returns the parameter set used for weekly bars (13/26/52-week averages).
func WeeklyParams() Params {
	p := DefaultParams()
	p.SMAShort, p.SMAMid, p.SMALong = 13, 26, 52
	return p
}

// IndicatorRow is one bar extended with its derived indicator values.
// Any derived field may be NA during warm-up.
type IndicatorRow struct {
	OHLCV

	SMAShort   float64
	SMAMid     float64
	SMALong    float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	BBUpper    float64
	BBMid      float64
	BBLower    float64
	ATR        float64
	VolumeSMA  float64
}

// IndicatorFrame is a bar series with one IndicatorRow per input bar.
type IndicatorFrame struct {
	Params    Params
	HasVolume bool
	Rows      []IndicatorRow
}

// Len returns the number of rows.
func (f *IndicatorFrame) Len() int { return len(f.Rows) }

// Last returns the most recent row.
func (f *IndicatorFrame) Last() IndicatorRow { return f.Rows[len(f.Rows)-1] }

// Bars returns the underlying price bars.
func (f *IndicatorFrame) Bars() []OHLCV {
	bars := make([]OHLCV, len(f.Rows))
	for i, r := range f.Rows {
		bars[i] = r.OHLCV
	}
	return bars
}

// MarketMetrics holds the extended snapshot metrics reported next to the strategy signal.
type MarketMetrics struct {
	CurrentPrice     float64
	High52w          float64
	Low52w           float64
	High52wPct       float64 // distance from 52w high, %
	Low52wPct        float64 // distance from 52w low, %
	Position52w      float64 // 0 ~ 100
	VolatilityAnnual float64 // %
	ATRPct           float64
	ROC5             float64
	ROC10            float64
	ROC20            float64
	AvgVolume20      float64
	VolumeRatio      float64
	VolumeTrend      string // increasing / decreasing
	MAAlignment      string // bullish / bearish / neutral
	MACDCross        string // golden / dead / none
	BBWidthPct       float64
	BBPositionPct    float64
}

// Pattern is a detected candlestick pattern.
type Pattern struct {
	Name   string
	Signal string
	Kind   string // bullish / bearish / neutral
}

// SupportResistance holds pivot-derived price levels.
type SupportResistance struct {
	Support    []float64
	Resistance []float64
}

// CreditBalance is one weekly margin-balance row.
type CreditBalance struct {
	Date      time.Time
	SellTotal float64
	BuyTotal  float64
	Ratio     float64
}
