package recorder

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"KabuSentinel/internal/model"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestLatestAnalysis(t *testing.T) {
	r := newTestRecorder(t)

	if _, err := r.LatestAnalysis("7203"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return clock }

	first := &model.Analysis{Code: "7203", Name: "Toyota Motor", Signal: model.StrategySignal{
		Trend: model.TrendMildUp, TrendScore: 1, Price: 2500, EntryPrice: 2450,
	}}
	if err := r.RecordAnalysis(first); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(time.Hour)
	second := &model.Analysis{
		Code: "7203", Name: "Toyota Motor",
		Frame: &model.IndicatorFrame{Rows: []model.IndicatorRow{{RSI: 55.5}}},
		Signal: model.StrategySignal{
			Trend: model.TrendPerfectUp, TrendScore: 2, Price: 2600, EntryPrice: 2512,
			TargetPrice: 2700, StopLoss: 2400, StopLossSource: model.StopLossATR,
			IsHighRisk: true, RiskRewardRatio: 1.68,
		},
	}
	if err := r.RecordAnalysis(second); err != nil {
		t.Fatal(err)
	}
	r.RecordAnalysis(&model.Analysis{Code: "6758"})

	got, err := r.LatestAnalysis("7203")
	if err != nil {
		t.Fatal(err)
	}
	if got.Trend != model.TrendPerfectUp || got.EntryPrice != 2512 || !got.IsHighRisk || got.RSI != 55.5 {
		t.Errorf("expected the newer row, got %+v", got)
	}
	if !got.Timestamp.Equal(clock) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, clock)
	}
}

func TestLatestAnalysis_NAStoredAsNull(t *testing.T) {
	r := newTestRecorder(t)
	a := &model.Analysis{
		Code:   "9984",
		Frame:  &model.IndicatorFrame{Rows: []model.IndicatorRow{{RSI: model.NA}}},
		Signal: model.StrategySignal{Trend: model.TrendUnknown},
	}
	if err := r.RecordAnalysis(a); err != nil {
		t.Fatal(err)
	}
	got, err := r.LatestAnalysis("9984")
	if err != nil {
		t.Fatal(err)
	}
	if !model.IsNA(got.RSI) {
		t.Errorf("RSI = %f, want NA", got.RSI)
	}
}

func TestRecordBacktest(t *testing.T) {
	r := newTestRecorder(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := &model.BacktestSummary{
		WindowDays: 30, TotalTrades: 2, WinningTrades: 1, LosingTrades: 1,
		Trades: []model.TradeRecord{
			{EntryDate: day, ExitDate: day.AddDate(0, 0, 3), ProfitPct: 4, ExitReason: model.ExitTakeProfit},
			{EntryDate: day.AddDate(0, 0, 5), ExitDate: day.AddDate(0, 0, 6), ProfitPct: -2, ExitReason: model.ExitStopLoss},
		},
	}

	id1, err := r.RecordBacktest("7203", s)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.RecordBacktest("7203", s)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" || id1 == id2 {
		t.Errorf("run ids must be unique and non-empty: %q %q", id1, id2)
	}
	if n := count(t, r, "backtest_runs"); n != 2 {
		t.Errorf("runs = %d, want 2", n)
	}
	var trades int
	r.db.QueryRow("SELECT COUNT(*) FROM backtest_trades WHERE run_id = ?", id1).Scan(&trades)
	if trades != 2 {
		t.Errorf("trades for run = %d, want 2", trades)
	}
}

func TestRecordScanAndAlert(t *testing.T) {
	r := newTestRecorder(t)

	if err := r.RecordScan(nil); err != nil {
		t.Fatal(err)
	}
	results := []model.ScanResult{
		{Code: "7203", Score: 5, Signals: []string{"MACD golden cross", "oversold (RSI 28.0)"}, RSI: 28},
		{Code: "6758", Score: -1, RSI: model.NA},
	}
	if err := r.RecordScan(results); err != nil {
		t.Fatal(err)
	}
	if n := count(t, r, "scan_results"); n != 2 {
		t.Errorf("scan rows = %d, want 2", n)
	}
	var signals string
	r.db.QueryRow("SELECT signals FROM scan_results WHERE code = '7203'").Scan(&signals)
	if signals != "MACD golden cross; oversold (RSI 28.0)" {
		t.Errorf("signals = %q", signals)
	}

	alert := model.PriceAlert{Code: "7203", Price: 3000, Condition: model.AlertAbove}
	if err := r.RecordAlert(alert, 3010); err != nil {
		t.Fatal(err)
	}
	if n := count(t, r, "alert_events"); n != 1 {
		t.Errorf("alert rows = %d, want 1", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	if _, err := rec.LatestAnalysis("7203"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if id, err := rec.RecordBacktest("7203", &model.BacktestSummary{}); id != "" || err != nil {
		t.Errorf("noop backtest: %q %v", id, err)
	}
}
