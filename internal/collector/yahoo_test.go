package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"7203.T","shortName":"TOYOTA MOTOR CORP","regularMarketPrice":2950},
  "timestamp":[1704412800,1704326400,1704499200],
  "indicators":{"quote":[{
    "open":[2900,2880,null],
    "high":[2960,2910,null],
    "low":[2890,2870,null],
    "close":[2950,2900,null],
    "volume":[1200000,900000,null]
  }]}
}],"error":null}}`

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewYahooFetcher(srv.URL, "", nil)
}

func TestYahooFetcher_DailyBars(t *testing.T) {
	var gotPath string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, chartBody)
	})

	bars, err := f.FetchDailyBars(context.Background(), "7203", 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/v8/finance/chart/7203.T" {
		t.Errorf("path = %q, want TSE suffix", gotPath)
	}
	if len(bars) != 2 {
		t.Fatalf("expected null bar to be skipped, got %d bars", len(bars))
	}
	if !bars[0].Time.Before(bars[1].Time) || bars[1].Close != 2950 {
		t.Errorf("bars not sorted ascending: %+v", bars)
	}
	if bars[0].Volume != 900000 {
		t.Errorf("volume = %v", bars[0].Volume)
	}
}

func TestYahooFetcher_CurrentPriceAndName(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody)
	})
	price, err := f.FetchCurrentPrice(context.Background(), "7203")
	if err != nil || price != 2950 {
		t.Errorf("price = %v, err = %v", price, err)
	}
	name, err := f.FetchName(context.Background(), "7203")
	if err != nil || name != "TOYOTA MOTOR CORP" {
		t.Errorf("name = %q, err = %v", name, err)
	}
}

func TestYahooFetcher_NotFound(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"chart":{"result":null}}`, http.StatusNotFound)
	})
	_, err := f.FetchDailyBars(context.Background(), "0000", 10)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestYahooFetcher_WeeklyFallsBackToDaily(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") == "1wk" {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, chartBody)
	})
	bars, err := f.FetchWeeklyBars(context.Background(), "7203", 52)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// 2024-01-04 and 2024-01-05 share an ISO week
	if len(bars) != 1 || bars[0].High != 2960 || bars[0].Close != 2950 || bars[0].Volume != 2100000 {
		t.Errorf("unexpected weekly aggregate %+v", bars)
	}
}

func TestYahooSymbol(t *testing.T) {
	f := NewYahooFetcher("", "", nil)
	tests := map[string]string{
		"7203":  "7203.T",
		"130A":  "130A.T",
		"^N225": "^N225",
		"N225":  "^N225",
		"AAPL":  "AAPL",
	}
	for in, want := range tests {
		if got := f.yahooSymbol(in); got != want {
			t.Errorf("yahooSymbol(%q) = %q, want %q", in, got, want)
		}
	}
	if !strings.HasPrefix(f.BaseURL, "https://") {
		t.Errorf("default base URL = %q", f.BaseURL)
	}
}

func TestAggregateDailyToWeekly(t *testing.T) {
	mon := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	daily := generateMockBars(1000, 10, 24*time.Hour)
	for i := range daily {
		daily[i].Time = mon.AddDate(0, 0, i)
	}
	weekly := aggregateDailyToWeekly(daily)
	if len(weekly) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weekly))
	}
	if weekly[0].Open != daily[0].Open || weekly[0].Close != daily[6].Close {
		t.Errorf("first week open/close wrong: %+v", weekly[0])
	}
	if weekly[1].Volume != 3*daily[7].Volume {
		t.Errorf("second week volume = %v", weekly[1].Volume)
	}
	if aggregateDailyToWeekly(nil) != nil {
		t.Error("expected nil for no bars")
	}
}
