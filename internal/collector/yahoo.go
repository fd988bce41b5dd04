package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	Metrics   *metrics.Metrics
}

// NewYahooFetcher creates a new Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(baseURL, proxyURL string, m *metrics.Metrics) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	return &YahooFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"N225":   "^N225",
			"NIKKEI": "^N225",
			"TOPIX":  "^TOPX",
		},
		Metrics: m,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooSymbol maps a TSE code to its Yahoo ticker (7203 -> 7203.T).
func (f *YahooFetcher) yahooSymbol(code string) string {
	if mapped, ok := f.SymbolMap[code]; ok {
		return mapped
	}
	if IsTSECode(code) {
		return code + ".T"
	}
	return code
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func valueAt(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func (f *YahooFetcher) fetchChart(ctx context.Context, code, interval, rng string) (chart *yahooChart, err error) {
	start := time.Now()
	defer func() { f.Metrics.ObserveFetch(f.Name(), err, time.Since(start)) }()

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(code)), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w", code, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	chart = &yahooChart{}
	if err := json.Unmarshal(body, chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", code, ErrNoData)
	}
	return chart, nil
}

func (f *YahooFetcher) fetchBars(ctx context.Context, code, interval, rng string) ([]model.OHLCV, error) {
	chart, err := f.fetchChart(ctx, code, interval, rng)
	if err != nil {
		return nil, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", code, ErrNoData)
	}
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o := valueAt(quote.Open, i)
		h := valueAt(quote.High, i)
		l := valueAt(quote.Low, i)
		c := valueAt(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: valueAt(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", code, ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, code string, days int) ([]model.OHLCV, error) {
	// Yahoo range: max "2y" for daily interval
	rng := "2y"
	if days <= 20 {
		rng = "1mo"
	} else if days <= 60 {
		rng = "3mo"
	} else if days <= 120 {
		rng = "6mo"
	} else if days <= 245 {
		rng = "1y"
	}
	bars, err := f.fetchBars(ctx, code, "1d", rng)
	if err != nil {
		return nil, err
	}
	// Trim to requested count
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

func (f *YahooFetcher) FetchWeeklyBars(ctx context.Context, code string, weeks int) ([]model.OHLCV, error) {
	rng := "2y"
	if weeks <= 26 {
		rng = "6mo"
	} else if weeks <= 52 {
		rng = "1y"
	} else if weeks > 104 {
		rng = "5y"
	}
	bars, err := f.fetchBars(ctx, code, "1wk", rng)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		// Fallback: aggregate daily bars
		zap.L().Warn("weekly fetch failed, aggregating daily bars", zap.String("code", code), zap.Error(err))
		daily, dailyErr := f.fetchBars(ctx, code, "1d", "2y")
		if dailyErr != nil {
			return nil, fmt.Errorf("weekly fetch failed: %w; daily fallback also failed: %w", err, dailyErr)
		}
		bars = aggregateDailyToWeekly(daily)
	}
	if len(bars) > weeks {
		bars = bars[len(bars)-weeks:]
	}
	return bars, nil
}

func (f *YahooFetcher) FetchCurrentPrice(ctx context.Context, code string) (float64, error) {
	chart, err := f.fetchChart(ctx, code, "1d", "5d")
	if err != nil {
		return 0, err
	}
	if p := chart.Chart.Result[0].Meta.RegularMarketPrice; p > 0 {
		return p, nil
	}
	bars, err := f.fetchBars(ctx, code, "1d", "5d")
	if err != nil {
		return 0, err
	}
	return bars[len(bars)-1].Close, nil
}

// FetchName returns the short name Yahoo reports for code, or "" when unknown.
func (f *YahooFetcher) FetchName(ctx context.Context, code string) (string, error) {
	chart, err := f.fetchChart(ctx, code, "1d", "5d")
	if err != nil {
		return "", err
	}
	return chart.Chart.Result[0].Meta.ShortName, nil
}
