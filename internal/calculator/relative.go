package calculator

import (
	"fmt"

	"KabuSentinel/internal/model"
)

// relativeThreshold is the fixed out/under-performance band in percentage points.
const relativeThreshold = 2.0

// ChangePct returns the percent change of the last close versus the previous close.
func ChangePct(bars []model.OHLCV) (float64, error) {
	if len(bars) < 2 {
		return 0, fmt.Errorf("%w: need 2 bars for change, got %d", ErrInsufficientData, len(bars))
	}
	prev := bars[len(bars)-2].Close
	if prev == 0 {
		return 0, nil
	}
	return (bars[len(bars)-1].Close - prev) / prev * 100, nil
}

// CompareRelativeStrength classifies the stock's last move against the benchmark's.
func CompareRelativeStrength(bars []model.OHLCV, benchmarkChangePct float64) (model.RelativeStrength, error) {
	stockChange, err := ChangePct(bars)
	if err != nil {
		return model.RelativeStrength{}, err
	}
	diff := stockChange - benchmarkChangePct

	rs := model.RelativeStrength{
		Diff:               diff,
		StockChangePct:     stockChange,
		BenchmarkChangePct: benchmarkChangePct,
	}

	switch {
	case stockChange > 0 && benchmarkChangePct <= 0:
		rs.Status = model.RSStrongDivergenceUp
		rs.Description = fmt.Sprintf("rising %+.2f%% against a falling market (%+.2f%%): resilient", stockChange, benchmarkChangePct)
	case diff > relativeThreshold:
		rs.Status = model.RSOutperforming
		rs.Description = fmt.Sprintf("beating the market by %.2fpt", diff)
	case diff < -relativeThreshold:
		rs.Status = model.RSUnderperforming
		rs.Description = fmt.Sprintf("lagging the market by %.2fpt", -diff)
	case stockChange < 0 && benchmarkChangePct >= 0:
		rs.Status = model.RSDivergenceDown
		rs.Description = fmt.Sprintf("falling %+.2f%% while the market holds (%+.2f%%): stock-specific weakness", stockChange, benchmarkChangePct)
	default:
		rs.Status = model.RSInLine
		rs.Description = "moving with the market"
	}
	return rs, nil
}
