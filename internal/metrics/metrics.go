package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the monitor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchTotal     *prometheus.CounterVec // labels: source, result
	FetchDuration  *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec // labels: layer
	ScanDuration   prometheus.Histogram
	SignalsTotal   *prometheus.CounterVec // labels: trend
	BacktestTrades *prometheus.CounterVec // labels: reason

	gatherer prometheus.Gatherer
}

// NewMetrics registers every collector on reg. Pass nil to use a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kabu_fetch_total",
			Help: "Price fetches by data source and result",
		}, []string{"source", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kabu_fetch_duration_seconds",
			Help:    "Price fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kabu_cache_hits_total",
			Help: "Bar cache hits by layer (redis, memory)",
		}, []string{"layer"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kabu_scan_duration_seconds",
			Help:    "Wall time of a full market scan",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kabu_signals_total",
			Help: "Strategy signals produced by trend state",
		}, []string{"trend"}),
		BacktestTrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kabu_backtest_trades_total",
			Help: "Simulated trades closed by exit reason",
		}, []string{"reason"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.CacheHits,
		m.ScanDuration,
		m.SignalsTotal,
		m.BacktestTrades,
	)
	return m
}

// ObserveFetch records one fetch attempt against source.
func (m *Metrics) ObserveFetch(source string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchTotal.WithLabelValues(source, result).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// CacheHit records a cache hit on layer.
func (m *Metrics) CacheHit(layer string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(layer).Inc()
}

// ObserveScan records the duration of a completed scan.
func (m *Metrics) ObserveScan(took time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(took.Seconds())
}

// Signal counts a produced strategy signal.
func (m *Metrics) Signal(trend string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(trend).Inc()
}

// BacktestTrade counts a closed simulated trade.
func (m *Metrics) BacktestTrade(reason string) {
	if m == nil {
		return
	}
	m.BacktestTrades.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastRunAt      time.Time `json:"last_run_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// MarkRun records the completion time of a scheduled task.
func (h *HealthStatus) MarkRun(t time.Time) {
	h.mu.Lock()
	h.LastRunAt = t
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := struct {
		Status         string `json:"status"`
		Uptime         string `json:"uptime"`
		RedisConnected bool   `json:"redis_connected"`
		SQLiteOK       bool   `json:"sqlite_ok"`
		LastRunAt      string `json:"last_run_at,omitempty"`
	}{
		Status:         "healthy",
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected,
		SQLiteOK:       h.SQLiteOK,
	}
	if !h.LastRunAt.IsZero() {
		status.LastRunAt = h.LastRunAt.Format(time.RFC3339)
	}
	// Redis is optional; the monitor degrades to the in-memory cache.
	if !h.SQLiteOK {
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
