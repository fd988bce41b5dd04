package metrics

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveFetch("yahoo", nil, 120*time.Millisecond)
	m.ObserveFetch("yahoo", nil, 80*time.Millisecond)
	m.ObserveFetch("yahoo", errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("yahoo", "ok")); got != 2 {
		t.Errorf("ok fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("yahoo", "error")); got != 1 {
		t.Errorf("failed fetches = %v, want 1", got)
	}
}

func TestCountersAndHandler(t *testing.T) {
	m := NewMetrics(nil)
	m.CacheHit("memory")
	m.Signal("PERFECT_UP")
	m.BacktestTrade("take_profit")
	m.ObserveScan(3 * time.Second)

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"kabu_cache_hits_total", "kabu_signals_total", "kabu_backtest_trades_total", "kabu_scan_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("yahoo", nil, time.Second)
	m.CacheHit("redis")
	m.Signal("UNKNOWN")
	m.BacktestTrade("stop_loss")
	m.ObserveScan(time.Second)
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus()
	h.SetSQLiteOK(true)
	h.MarkRun(time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	var got struct {
		Status   string `json:"status"`
		SQLiteOK bool   `json:"sqlite_ok"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "healthy" || !got.SQLiteOK {
		t.Errorf("unexpected health %+v", got)
	}
}
