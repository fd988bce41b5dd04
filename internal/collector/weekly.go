package collector

import "KabuSentinel/internal/model"

// aggregateDailyToWeekly converts daily bars into ISO-week bars.
func aggregateDailyToWeekly(daily []model.OHLCV) []model.OHLCV {
	if len(daily) == 0 {
		return nil
	}
	var weekly []model.OHLCV
	week := daily[0]
	wy, ww := week.Time.ISOWeek()

	for _, d := range daily[1:] {
		y, w := d.Time.ISOWeek()
		if y != wy || w != ww {
			weekly = append(weekly, week)
			week, wy, ww = d, y, w
			continue
		}
		week.High = max(week.High, d.High)
		week.Low = min(week.Low, d.Low)
		week.Close = d.Close
		week.Volume += d.Volume
	}
	return append(weekly, week)
}
