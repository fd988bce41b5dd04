package collector

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"KabuSentinel/internal/model"
)

// ErrNoData is returned when a source has no bars for a code.
var ErrNoData = errors.New("no data")

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, code string, days int) ([]model.OHLCV, error)
	FetchWeeklyBars(ctx context.Context, code string, weeks int) ([]model.OHLCV, error)
	FetchCurrentPrice(ctx context.Context, code string) (float64, error)
	Name() string
}

// NormalizeCode trims a user-entered code and strips a trailing ".T".
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.TrimSuffix(code, ".T")
}

// IsTSECode reports whether code looks like a TSE security code (e.g. 7203, 130A).
func IsTSECode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return unicode.IsDigit(rune(code[0]))
}
