package calculator

// RSI neutral value used when a window has neither gains nor losses.
const rsiNeutral = 50.0

// CalculateRSI returns the RSI series over `period` bars using simple rolling
// means of gains and losses. The first close has no predecessor and counts as
// an unchanged bar, so RSI is defined from index period-1.
//
// avgLoss == 0 saturates at 100 when there were gains, and resolves to 50 when
// the window was completely flat.
func CalculateRSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for t := 1; t < n; t++ {
		change := closes[t] - closes[t-1]
		if change > 0 {
			gains[t] = change
		} else {
			losses[t] = -change
		}
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	out := naSeries(n)
	for t := range out {
		if t < period-1 {
			continue
		}
		out[t] = rsiFromAverages(avgGain[t], avgLoss[t])
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return rsiNeutral
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
