package calculator

import (
	"fmt"

	"KabuSentinel/internal/model"
)

// Compute derives every indicator column for bars (ascending by time).
//
// Each derived value depends only on the bars up to and including its own row,
// so computing a prefix of bars reproduces the same leading rows. Columns whose
// window is not yet filled are NA rather than an error.
func Compute(bars []model.OHLCV, p model.Params) (*model.IndicatorFrame, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bars, got %d", ErrInsufficientData, len(bars))
	}
	if err := validateParams(p); err != nil {
		return nil, err
	}

	closes := model.Closes(bars)

	smaShort := RollingMean(closes, p.SMAShort)
	smaMid := RollingMean(closes, p.SMAMid)
	smaLong := RollingMean(closes, p.SMALong)
	rsi := CalculateRSI(closes, p.RSIPeriod)
	macd, macdSignal, macdHist := CalculateMACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	bbUpper, bbMid, bbLower := CalculateBollinger(closes, p.BBWindow, p.BBStd)
	atr := CalculateATR(bars, p.ATRPeriod)

	hasVolume := model.HasVolume(bars)
	volSMA := naSeries(len(bars))
	if hasVolume {
		volSMA = RollingMean(volumes(bars), p.VolumeSMA)
	}

	rows := make([]model.IndicatorRow, len(bars))
	for i, b := range bars {
		rows[i] = model.IndicatorRow{
			OHLCV:      b,
			SMAShort:   smaShort[i],
			SMAMid:     smaMid[i],
			SMALong:    smaLong[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: macdSignal[i],
			MACDHist:   macdHist[i],
			BBUpper:    bbUpper[i],
			BBMid:      bbMid[i],
			BBLower:    bbLower[i],
			ATR:        atr[i],
			VolumeSMA:  volSMA[i],
		}
	}

	return &model.IndicatorFrame{Params: p, HasVolume: hasVolume, Rows: rows}, nil
}

// CalculateMACD returns the MACD line, its signal line and the histogram.
func CalculateMACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(macd, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}

// CalculateBollinger returns upper, middle and lower bands at k standard deviations.
func CalculateBollinger(closes []float64, window int, k float64) (upper, mid, lower []float64) {
	mid = RollingMean(closes, window)
	std := RollingStd(closes, window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return upper, mid, lower
}

func validateParams(p model.Params) error {
	windows := map[string]int{
		"sma_short":   p.SMAShort,
		"sma_mid":     p.SMAMid,
		"sma_long":    p.SMALong,
		"rsi_period":  p.RSIPeriod,
		"macd_fast":   p.MACDFast,
		"macd_slow":   p.MACDSlow,
		"macd_signal": p.MACDSignal,
		"bb_window":   p.BBWindow,
		"atr_period":  p.ATRPeriod,
		"volume_sma":  p.VolumeSMA,
	}
	for name, w := range windows {
		if w <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidParams, name, w)
		}
	}
	if p.MACDFast >= p.MACDSlow {
		return fmt.Errorf("%w: macd_fast (%d) must be below macd_slow (%d)", ErrInvalidParams, p.MACDFast, p.MACDSlow)
	}
	if p.BBStd < 0 {
		return fmt.Errorf("%w: bb_std must not be negative", ErrInvalidParams)
	}
	return nil
}

func volumes(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
