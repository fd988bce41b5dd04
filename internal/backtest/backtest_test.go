package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

var day0 = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

func seriesBars(closes func(i int) float64, n int) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	for i := range bars {
		c := closes(i)
		bars[i] = model.OHLCV{Time: day0.AddDate(0, 0, i), Open: c, High: c + 8, Low: c - 8, Close: c, Volume: 1000}
	}
	return bars
}

func wavy(i int) float64 {
	return 1000 + 90*math.Sin(float64(i)/5) + 15*math.Sin(float64(i)/1.7)
}

func TestRun_InsufficientData(t *testing.T) {
	_, err := Run(seriesBars(wavy, 10), DefaultOptions())
	if !errors.Is(err, calculator.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}

	opts := DefaultOptions()
	opts.WindowDays = 1
	if _, err := Run(seriesBars(wavy, 1), opts); !errors.Is(err, calculator.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for a single bar, got %v", err)
	}
}

func TestRun_InvalidParams(t *testing.T) {
	opts := DefaultOptions()
	opts.Params.MACDFast = 40
	if _, err := Run(seriesBars(wavy, 200), opts); !errors.Is(err, calculator.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestRun_NoTradesOnSteadyRise(t *testing.T) {
	bars := seriesBars(func(i int) float64 { return 1000 + 10*float64(i) }, 200)
	s, err := Run(bars, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalTrades != 0 || s.WinRate != 0 || s.Trades == nil || len(s.Trades) != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestRun_TradeInvariants(t *testing.T) {
	opts := DefaultOptions()
	opts.WindowDays = 120
	s, err := Run(seriesBars(wavy, 300), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, tr := range s.Trades {
		if !tr.ExitDate.After(tr.EntryDate) {
			t.Errorf("trade %d exits on or before its entry bar", i)
		}
		if i > 0 && s.Trades[i-1].ExitDate.After(tr.EntryDate) {
			t.Errorf("trade %d overlaps the previous position", i)
		}
		if tr.ExitReason != model.ExitTakeProfit && tr.ExitReason != model.ExitStopLoss {
			t.Errorf("trade %d has unknown exit reason %q", i, tr.ExitReason)
		}
	}
	if s.TotalTrades > 0 {
		want := 100 * float64(s.WinningTrades) / float64(s.TotalTrades)
		if s.WinRate != want {
			t.Errorf("win rate = %f, want %f", s.WinRate, want)
		}
		if s.WinningTrades+s.LosingTrades != s.TotalTrades {
			t.Errorf("winners + losers != total")
		}
	}
}

func TestRun_FutureBarDoesNotChangeClosedTrades(t *testing.T) {
	opts := DefaultOptions()
	opts.WindowDays = 120

	bars := seriesBars(wavy, 300)
	base, err := Run(bars, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shocked := append([]model.OHLCV(nil), bars...)
	last := &shocked[len(shocked)-1]
	last.Close, last.High, last.Low = 5000, 5008, 4992

	got, err := Run(shocked, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastDay := bars[len(bars)-1].Time
	var before []model.TradeRecord
	for _, tr := range base.Trades {
		if tr.ExitDate.Before(lastDay) {
			before = append(before, tr)
		}
	}
	if len(got.Trades) < len(before) {
		t.Fatalf("shocked run lost closed trades: %d < %d", len(got.Trades), len(before))
	}
	for i, tr := range before {
		if got.Trades[i] != tr {
			t.Errorf("trade %d changed after altering a later bar: %+v vs %+v", i, got.Trades[i], tr)
		}
	}
}

func TestCheckEntryAndExit(t *testing.T) {
	row := model.IndicatorRow{
		OHLCV:    model.OHLCV{Time: day0, Close: 1000},
		SMAShort: 1010, SMAMid: 990, SMALong: 950,
		BBUpper: 1060, BBMid: 1010, BBLower: 960,
		ATR: 10, RSI: 50,
	}
	p := checkEntry(row, model.DefaultRiskConfig())
	if p == nil {
		t.Fatal("expected an entry near support")
	}
	if p.price != 1000 || p.stop != 980 || p.goal != 1060 {
		t.Fatalf("unexpected position %+v", p)
	}

	hot := row
	hot.RSI = 65
	if checkEntry(hot, model.DefaultRiskConfig()) != nil {
		t.Error("RSI >= 60 must not enter")
	}
	far := row
	far.SMAMid, far.SMALong, far.BBLower = 900, 880, 890
	if checkEntry(far, model.DefaultRiskConfig()) != nil {
		t.Error("price far above support must not enter")
	}
	warm := row
	warm.SMALong = model.NA
	if checkEntry(warm, model.DefaultRiskConfig()) != nil {
		t.Error("rows with NA must be skipped")
	}

	next := day0.AddDate(0, 0, 1)
	if _, closed := checkExit(p, model.OHLCV{Time: next, Close: 1000}); closed {
		t.Error("price inside the band should hold")
	}

	tp, closed := checkExit(p, model.OHLCV{Time: next, Close: 1075})
	if !closed || tp.ExitReason != model.ExitTakeProfit || tp.ExitPrice != 1060 || math.Abs(tp.ProfitPct-6) > 1e-9 {
		t.Errorf("unexpected take profit %+v", tp)
	}

	sl, closed := checkExit(p, model.OHLCV{Time: next, Close: 970})
	if !closed || sl.ExitReason != model.ExitStopLoss || sl.ExitPrice != 980 || math.Abs(sl.ProfitPct+2) > 1e-9 {
		t.Errorf("unexpected stop loss %+v", sl)
	}
}

func trades(pcts ...float64) []model.TradeRecord {
	out := make([]model.TradeRecord, len(pcts))
	for i, p := range pcts {
		out[i] = model.TradeRecord{
			EntryDate:  day0.AddDate(0, 0, 2*i),
			ExitDate:   day0.AddDate(0, 0, 2*i+1),
			EntryPrice: 1000,
			ExitPrice:  1000 + p*10,
			Profit:     p * 10,
			ProfitPct:  p,
		}
	}
	return out
}

func TestSummarize(t *testing.T) {
	s := Summarize(trades(10, -5, 5), 30, false)

	if s.TotalTrades != 3 || s.WinningTrades != 2 || s.LosingTrades != 1 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	}
	if math.Abs(s.WinRate-200.0/3) > 1e-9 {
		t.Errorf("win rate = %f", s.WinRate)
	}
	if s.AvgProfitPct != 7.5 || s.AvgLossPct != -5 {
		t.Errorf("avg profit/loss = %f / %f", s.AvgProfitPct, s.AvgLossPct)
	}
	if s.TotalReturnPct != 10 {
		t.Errorf("total return = %f, want 10", s.TotalReturnPct)
	}
	if s.MaxDrawdownPct != -5 {
		t.Errorf("max drawdown = %f, want -5", s.MaxDrawdownPct)
	}
}

func TestSummarize_Compounding(t *testing.T) {
	s := Summarize(trades(10, -5, 5), 30, true)
	if math.Abs(s.TotalReturnPct-9.725) > 1e-9 {
		t.Errorf("compounded return = %f, want 9.725", s.TotalReturnPct)
	}
	if s.MaxDrawdownPct != -5 {
		t.Errorf("drawdown should stay on the simple curve, got %f", s.MaxDrawdownPct)
	}
	if !s.Compounded {
		t.Error("expected Compounded flag")
	}
}

func TestSummarize_BreakEvenIsLoser(t *testing.T) {
	s := Summarize(trades(0), 30, false)
	if s.LosingTrades != 1 || s.WinRate != 0 {
		t.Errorf("break-even trade should count as a loser: %+v", s)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 30, false)
	if s.TotalTrades != 0 || s.MaxDrawdownPct != 0 || len(s.Trades) != 0 || s.Trades == nil {
		t.Errorf("unexpected empty summary %+v", s)
	}
}
