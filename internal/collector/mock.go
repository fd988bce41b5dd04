package collector

import (
	"context"
	"fmt"
	"time"

	"KabuSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price      float64
	DailyData  map[string][]model.OHLCV
	WeeklyData map[string][]model.OHLCV
	Err        error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, code string, days int) ([]model.OHLCV, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if bars, ok := m.DailyData[code]; ok {
		return tail(bars, days), nil
	}
	if m.DailyData != nil {
		return nil, fmt.Errorf("mock %s: %w", code, ErrNoData)
	}
	return generateMockBars(m.Price, days, 24*time.Hour), nil
}

func (m *MockFetcher) FetchWeeklyBars(ctx context.Context, code string, weeks int) ([]model.OHLCV, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if bars, ok := m.WeeklyData[code]; ok {
		return tail(bars, weeks), nil
	}
	if daily, ok := m.DailyData[code]; ok {
		return tail(aggregateDailyToWeekly(daily), weeks), nil
	}
	return generateMockBars(m.Price, weeks, 7*24*time.Hour), nil
}

func (m *MockFetcher) FetchCurrentPrice(ctx context.Context, code string) (float64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	if bars, ok := m.DailyData[code]; ok && len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return m.Price, nil
}

func (m *MockFetcher) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Err
}

func tail(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

func generateMockBars(basePrice float64, count int, step time.Duration) []model.OHLCV {
	end := time.Now().Truncate(24 * time.Hour)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
