package strategy

import (
	"fmt"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

// Recommendations maps a screen score to an action label, highest first.
var Recommendations = []struct {
	MinScore int
	Label    string
}{
	{3, "strong buy"},
	{1, "consider buy"},
}

const (
	RecommendSell  = "consider sell"
	RecommendWatch = "watch"
)

// squeezeWidth is the Bollinger width (fraction of mid) below which the bands count as squeezed.
const squeezeWidth = 0.05

// ScreenScore is the screener's view of a ticker's latest two bars.
type ScreenScore struct {
	Score          int
	Signals        []string
	Recommendation string
	RSI            float64
	Trend          model.TrendState
}

// ScoreScreen scores the last bar of frame for the market scan.
//
//	short/mid golden cross  +2
//	MACD golden cross       +3
//	RSI < 30                +2
//	RSI > 70                -1
//	Bollinger squeeze       +1
func ScoreScreen(frame *model.IndicatorFrame) ScreenScore {
	if frame == nil || frame.Len() < 2 {
		return ScreenScore{Recommendation: RecommendWatch, RSI: model.NA, Trend: model.TrendUnknown}
	}
	last := frame.Last()
	prev := frame.Rows[frame.Len()-2]

	var s ScreenScore
	s.RSI = last.RSI
	s.Trend = ClassifyTrend(last)

	if last.SMAShort > last.SMAMid && prev.SMAShort <= prev.SMAMid {
		s.Signals = append(s.Signals, fmt.Sprintf("short-term golden cross (%d/%d)", frame.Params.SMAShort, frame.Params.SMAMid))
		s.Score += 2
	}

	if calculator.MACDCross(prev, last) == "golden" {
		s.Signals = append(s.Signals, "MACD golden cross")
		s.Score += 3
	}

	switch {
	case last.RSI < 30:
		s.Signals = append(s.Signals, fmt.Sprintf("oversold (RSI %.1f)", last.RSI))
		s.Score += 2
	case last.RSI > 70:
		s.Signals = append(s.Signals, fmt.Sprintf("overbought (RSI %.1f)", last.RSI))
		s.Score--
	}

	if !model.IsNA(last.BBMid) && last.BBMid != 0 {
		if width := (last.BBUpper - last.BBLower) / last.BBMid; width < squeezeWidth {
			s.Signals = append(s.Signals, "Bollinger squeeze")
			s.Score++
		}
	}

	s.Recommendation = recommend(s.Score, last.RSI)
	return s
}

func recommend(score int, rsi float64) string {
	for _, r := range Recommendations {
		if score >= r.MinScore {
			return r.Label
		}
	}
	if rsi < 30 {
		return Recommendations[len(Recommendations)-1].Label
	}
	if score <= -1 {
		return RecommendSell
	}
	return RecommendWatch
}
