package calculator

import (
	"fmt"
	"math"

	"KabuSentinel/internal/model"
)

const minMetricBars = 20

// CalculateMarketMetrics derives the extended snapshot metrics from a computed frame.
func CalculateMarketMetrics(frame *model.IndicatorFrame) (*model.MarketMetrics, error) {
	if frame == nil || frame.Len() < minMetricBars {
		n := 0
		if frame != nil {
			n = frame.Len()
		}
		return nil, fmt.Errorf("%w: metrics need %d bars, got %d", ErrInsufficientData, minMetricBars, n)
	}

	bars := frame.Bars()
	last := frame.Last()
	price := last.Close
	m := &model.MarketMetrics{CurrentPrice: price}

	// 52-week range
	high, low, err := Calculate52WeekRange(bars)
	if err != nil {
		return nil, err
	}
	m.High52w, m.Low52w = high, low
	m.High52wPct = pctChange(high, price)
	m.Low52wPct = pctChange(low, price)
	if m.Position52w, err = CalculateRangePosition(price, high, low); err != nil {
		return nil, err
	}

	// Volatility
	m.VolatilityAnnual = annualVolatility(model.Closes(bars))
	if !model.IsNA(last.ATR) && price != 0 {
		m.ATRPct = last.ATR / price * 100
	}

	// Momentum
	m.ROC5 = rateOfChange(bars, 5)
	m.ROC10 = rateOfChange(bars, 10)
	m.ROC20 = rateOfChange(bars, 20)

	// Volume
	if frame.HasVolume {
		vols := volumes(bars)
		m.AvgVolume20 = mean(vols[len(vols)-20:])
		m.VolumeRatio = 1
		if m.AvgVolume20 > 0 {
			m.VolumeRatio = vols[len(vols)-1] / m.AvgVolume20
		}
		m.VolumeTrend = "decreasing"
		if mean(vols[len(vols)-5:]) > mean(vols[len(vols)-10:len(vols)-5]) {
			m.VolumeTrend = "increasing"
		}
	}

	// MA alignment
	switch {
	case last.SMAShort > last.SMAMid && last.SMAMid > last.SMALong:
		m.MAAlignment = "bullish"
	case last.SMAShort < last.SMAMid && last.SMAMid < last.SMALong:
		m.MAAlignment = "bearish"
	default:
		m.MAAlignment = "neutral"
	}

	m.MACDCross = MACDCross(frame.Rows[frame.Len()-2], last)

	// Bollinger
	if !model.IsNA(last.BBMid) && last.BBMid != 0 {
		m.BBWidthPct = (last.BBUpper - last.BBLower) / last.BBMid * 100
		m.BBPositionPct = 50
		if width := last.BBUpper - last.BBLower; width > 0 {
			m.BBPositionPct = (price - last.BBLower) / width * 100
		}
	}

	return m, nil
}

// MACDCross reports "golden" when MACD crossed above its signal on the last bar,
// "dead" when it crossed below, "none" otherwise.
func MACDCross(prev, last model.IndicatorRow) string {
	switch {
	case last.MACD > last.MACDSignal && prev.MACD <= prev.MACDSignal:
		return "golden"
	case last.MACD < last.MACDSignal && prev.MACD >= prev.MACDSignal:
		return "dead"
	default:
		return "none"
	}
}

func rateOfChange(bars []model.OHLCV, n int) float64 {
	if len(bars) < n+1 {
		return 0
	}
	base := bars[len(bars)-1-n].Close
	return pctChange(base, bars[len(bars)-1].Close)
}

func annualVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	sd := sampleStd(returns)
	if math.IsNaN(sd) {
		return 0
	}
	return sd * math.Sqrt(tradingDaysPerYear) * 100
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
