package strategy

import (
	"math"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

const (
	// entryBuffer places the entry 0.5% above support: buy the confirmed bounce.
	entryBuffer = 1.005
	// fallbackSupport is used when no level sits below the current price.
	fallbackSupport = 0.95
	// atrStopMultiple sets the volatility stop at 2 ATR below entry.
	atrStopMultiple = 2.0
)

// ClassifyTrend maps the moving-average alignment of row to one of the four trend states.
// Rows missing any of the three averages are TrendUnknown.
func ClassifyTrend(row model.IndicatorRow) model.TrendState {
	short, mid, long := row.SMAShort, row.SMAMid, row.SMALong
	if model.IsNA(short) || model.IsNA(mid) || model.IsNA(long) {
		return model.TrendUnknown
	}
	switch {
	case short > mid && mid > long:
		return model.TrendPerfectUp
	case short < mid && mid < long:
		return model.TrendPerfectDown
	case row.Close > mid:
		return model.TrendMildUp
	default:
		return model.TrendMildDown
	}
}

// SupportLevel returns the highest of mid SMA, long SMA and lower band that sits below
// the close, or 95% of the close when none does.
func SupportLevel(row model.IndicatorRow) float64 {
	price := row.Close
	support := math.Inf(-1)
	for _, level := range []float64{row.SMAMid, row.SMALong, row.BBLower} {
		if model.IsNA(level) || level >= price {
			continue
		}
		support = math.Max(support, level)
	}
	if math.IsInf(support, -1) {
		return price * fallbackSupport
	}
	return support
}

// StopLoss picks the safer (higher) of the ATR stop and the configured fixed limit.
// When volatility pushes the ATR stop below the limit the plan is flagged high risk.
func StopLoss(entry, atr float64, risk model.RiskConfig) (stop float64, source string, highRisk bool) {
	atrStop := entry - atrStopMultiple*atr
	fixedStop := entry * (1 + risk.StopLossLimitPct/100)
	if atrStop < fixedStop {
		return fixedStop, model.StopLossFixedLimit, true
	}
	return atrStop, model.StopLossATR, false
}

// Plan derives the trading plan from the latest indicator row.
// If any required column is NA the "insufficient data" sentinel is returned.
func Plan(row model.IndicatorRow, risk model.RiskConfig, spike model.VolumeSpike) model.StrategySignal {
	// Step a: trend classification
	trend := ClassifyTrend(row)
	if trend == model.TrendUnknown || anyNA(row.BBUpper, row.BBLower, row.ATR) {
		return insufficient(spike)
	}

	// Step b: price levels
	support := SupportLevel(row)
	entry := math.RoundToEven(support * entryBuffer)
	target := row.BBUpper

	// Step c: stop-loss guardrail
	stop, source, highRisk := StopLoss(entry, row.ATR, risk)

	// Step d: risk/reward
	var rr float64
	if denom := entry - stop; denom > 0 {
		rr = (target - entry) / denom
	}

	return model.StrategySignal{
		Trend:           trend,
		TrendLabel:      trend.Label(),
		TrendScore:      trend.Score(),
		Price:           row.Close,
		SupportLevel:    support,
		EntryPrice:      entry,
		TargetPrice:     target,
		StopLoss:        stop,
		StopLossSource:  source,
		IsHighRisk:      highRisk,
		RiskRewardRatio: rr,
		VolumeSpike:     spike.IsSpike,
		VolumeRatio:     spike.Ratio,
	}
}

// PlanFrame plans from the last row of frame, running the volume spike detector
// over the frame's bars when volume data is present.
func PlanFrame(frame *model.IndicatorFrame, risk model.RiskConfig) model.StrategySignal {
	spike := model.VolumeSpike{Ratio: 1.0}
	if frame == nil || frame.Len() == 0 {
		return insufficient(spike)
	}
	if frame.HasVolume {
		spike = calculator.DetectVolumeSpike(frame.Bars(), calculator.DefaultSpikeWindow, calculator.DefaultSpikeThreshold)
	}
	return Plan(frame.Last(), risk, spike)
}

func insufficient(spike model.VolumeSpike) model.StrategySignal {
	return model.StrategySignal{
		Trend:       model.TrendUnknown,
		TrendLabel:  model.TrendUnknown.Label(),
		VolumeSpike: spike.IsSpike,
		VolumeRatio: spike.Ratio,
	}
}

func anyNA(values ...float64) bool {
	for _, v := range values {
		if model.IsNA(v) {
			return true
		}
	}
	return false
}
