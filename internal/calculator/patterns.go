package calculator

import (
	"math"
	"sort"

	"KabuSentinel/internal/model"
)

// DetectCandlestickPatterns checks the last two bars for doji, hammer and engulfing patterns.
func DetectCandlestickPatterns(bars []model.OHLCV) []model.Pattern {
	if len(bars) < 3 {
		return nil
	}
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	var patterns []model.Pattern

	body := math.Abs(last.Close - last.Open)
	rng := last.High - last.Low
	if rng > 0 && body/rng < 0.1 {
		patterns = append(patterns, model.Pattern{Name: "doji", Signal: "possible reversal", Kind: "neutral"})
	}

	lowerShadow := math.Min(last.Open, last.Close) - last.Low
	upperShadow := last.High - math.Max(last.Open, last.Close)
	if rng > 0 && lowerShadow > body*2 && upperShadow < body {
		patterns = append(patterns, model.Pattern{Name: "hammer", Signal: "downtrend reversal hint", Kind: "bullish"})
	}

	if last.Close > last.Open && prev.Close < prev.Open &&
		last.Open <= prev.Close && last.Close >= prev.Open {
		patterns = append(patterns, model.Pattern{Name: "bullish engulfing", Signal: "strong buy signal", Kind: "bullish"})
	}
	if last.Close < last.Open && prev.Close > prev.Open &&
		last.Open >= prev.Close && last.Close <= prev.Open {
		patterns = append(patterns, model.Pattern{Name: "bearish engulfing", Signal: "strong sell signal", Kind: "bearish"})
	}

	return patterns
}

// DetectSupportResistance finds pivot highs/lows within the last 3*window bars.
// A pivot is the extreme of the window bars on each side of it.
// It keeps the three highest supports and the three lowest resistances, ascending.
func DetectSupportResistance(bars []model.OHLCV, window int) model.SupportResistance {
	var out model.SupportResistance
	if window <= 0 || len(bars) < window {
		return out
	}
	recent := bars
	if len(bars) > window*3 {
		recent = bars[len(bars)-window*3:]
	}

	supports := map[float64]struct{}{}
	resistances := map[float64]struct{}{}
	for i := window; i < len(recent)-window; i++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for _, b := range recent[i-window : i+window+1] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if recent[i].High == hi {
			resistances[math.Round(recent[i].High)] = struct{}{}
		}
		if recent[i].Low == lo {
			supports[math.Round(recent[i].Low)] = struct{}{}
		}
	}

	s := sortedKeys(supports)
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	r := sortedKeys(resistances)
	if len(r) > 3 {
		r = r[:3]
	}
	out.Support, out.Resistance = s, r
	return out
}

func sortedKeys(m map[float64]struct{}) []float64 {
	keys := make([]float64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}
