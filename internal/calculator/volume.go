package calculator

import "KabuSentinel/internal/model"

const (
	DefaultSpikeWindow    = 20
	DefaultSpikeThreshold = 2.0
)

// DetectVolumeSpike compares the last bar's volume with its trailing average.
// Too few bars or a zero average never signal a spike.
func DetectVolumeSpike(bars []model.OHLCV, window int, threshold float64) model.VolumeSpike {
	noSpike := model.VolumeSpike{IsSpike: false, Ratio: 1.0}
	if window <= 0 || len(bars) < window {
		return noSpike
	}
	avg := RollingMean(volumes(bars), window)[len(bars)-1]
	if model.IsNA(avg) || avg == 0 {
		return noSpike
	}
	ratio := bars[len(bars)-1].Volume / avg
	return model.VolumeSpike{IsSpike: ratio >= threshold, Ratio: ratio}
}
