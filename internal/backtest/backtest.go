// Package backtest replays the planner's entry rules over a trailing window.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
)

const (
	// nearSupport is how far above support a close may sit and still count as a buy zone.
	nearSupport = 1.02
	// maxEntryRSI rejects entries into overheated momentum.
	maxEntryRSI = 60.0
)

// Options configures a backtest run.
type Options struct {
	Params      model.Params
	Risk        model.RiskConfig
	WindowDays  int
	Lookback    int
	Compounding bool
}

// DefaultOptions simulates the last 30 bars with 150 bars of indicator warm-up.
func DefaultOptions() Options {
	return Options{
		Params:     model.DefaultParams(),
		Risk:       model.DefaultRiskConfig(),
		WindowDays: 30,
		Lookback:   150,
	}
}

type position struct {
	entry model.OHLCV
	price float64
	stop  float64
	goal  float64
}

// Run simulates a single long position over the last opts.WindowDays bars.
//
// At every bar the indicators are recomputed from the warm-up start through that
// bar only, so a decision never sees a later price. A position opened on a bar is
// first checked for exit on the following bar; one still open at the end is dropped.
func Run(bars []model.OHLCV, opts Options) (*model.BacktestSummary, error) {
	minBars := max(2, opts.WindowDays)
	if len(bars) < minBars {
		return nil, fmt.Errorf("%w: backtest needs %d bars, got %d", calculator.ErrInsufficientData, minBars, len(bars))
	}

	windowStart := len(bars) - opts.WindowDays
	if opts.WindowDays <= 0 {
		windowStart = 0
	}
	warmStart := max(0, windowStart-max(0, opts.Lookback))

	var (
		trades []model.TradeRecord
		open   *position
	)
	for i := windowStart; i < len(bars); i++ {
		bar := bars[i]

		if open != nil {
			if trade, closed := checkExit(open, bar); closed {
				trades = append(trades, trade)
				open = nil
			}
			continue
		}

		frame, err := calculator.Compute(bars[warmStart:i+1], opts.Params)
		if err != nil {
			if errors.Is(err, calculator.ErrInsufficientData) {
				continue
			}
			return nil, fmt.Errorf("backtest at bar %d: %w", i, err)
		}
		open = checkEntry(frame.Last(), opts.Risk)
	}

	return Summarize(trades, opts.WindowDays, opts.Compounding), nil
}

func checkEntry(row model.IndicatorRow, risk model.RiskConfig) *position {
	for _, v := range []float64{row.SMAShort, row.SMAMid, row.SMALong, row.BBUpper, row.BBLower, row.ATR, row.RSI} {
		if model.IsNA(v) {
			return nil
		}
	}

	price := row.Close
	uptrend := row.SMAShort > row.SMAMid || price > row.SMAMid
	support := strategy.SupportLevel(row)
	if !uptrend || price > support*nearSupport || row.RSI >= maxEntryRSI {
		return nil
	}

	stop, _, _ := strategy.StopLoss(price, row.ATR, risk)
	return &position{entry: row.OHLCV, price: price, stop: stop, goal: row.BBUpper}
}

func checkExit(p *position, bar model.OHLCV) (model.TradeRecord, bool) {
	var (
		exit   float64
		reason model.ExitReason
	)
	switch {
	case bar.Close >= p.goal:
		exit, reason = p.goal, model.ExitTakeProfit
	case bar.Close <= p.stop:
		exit, reason = p.stop, model.ExitStopLoss
	default:
		return model.TradeRecord{}, false
	}

	profit := exit - p.price
	return model.TradeRecord{
		EntryDate:  p.entry.Time,
		EntryPrice: p.price,
		ExitDate:   bar.Time,
		ExitPrice:  exit,
		Profit:     profit,
		ProfitPct:  profit / p.price * 100,
		ExitReason: reason,
	}, true
}

// Summarize aggregates closed trades. An empty sequence is a valid zero summary.
func Summarize(trades []model.TradeRecord, windowDays int, compounding bool) *model.BacktestSummary {
	s := &model.BacktestSummary{
		WindowDays: windowDays,
		Compounded: compounding,
		Trades:     []model.TradeRecord{},
	}
	if len(trades) == 0 {
		return s
	}
	s.Trades = trades
	s.TotalTrades = len(trades)

	var (
		winSum, lossSum float64
		cumulative      float64
		peak            = math.Inf(-1)
		growth          = 1.0
	)
	for _, t := range trades {
		if t.Profit > 0 {
			s.WinningTrades++
			winSum += t.ProfitPct
		} else {
			s.LosingTrades++
			lossSum += t.ProfitPct
		}

		cumulative += t.ProfitPct
		peak = math.Max(peak, cumulative)
		s.MaxDrawdownPct = math.Min(s.MaxDrawdownPct, cumulative-peak)

		growth *= 1 + t.ProfitPct/100
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	if s.WinningTrades > 0 {
		s.AvgProfitPct = winSum / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLossPct = lossSum / float64(s.LosingTrades)
	}
	s.TotalReturnPct = cumulative
	if compounding {
		s.TotalReturnPct = (growth - 1) * 100
	}
	return s
}
