package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"KabuSentinel/internal/backtest"
	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
)

const (
	benchmarkBars   = 5
	weeklyBars      = 104
	levelWindow     = 10
	defaultDailyBar = 250
)

// CreditSource provides margin-balance rows for a code.
type CreditSource interface {
	FetchCreditBalance(ctx context.Context, code string) ([]model.CreditBalance, error)
}

// Namer is implemented by fetchers that can resolve a company name.
type Namer interface {
	FetchName(ctx context.Context, code string) (string, error)
}

// Collector orchestrates data fetching, indicator computation and planning.
type Collector struct {
	Fetcher   Fetcher
	Credit    CreditSource // optional
	Benchmark string
	DailyBars int
	Params    model.Params
	Risk      model.RiskConfig
	Backtest  backtest.Options
	Metrics   *metrics.Metrics
	Names     map[string]string // known code -> name
}

// NewCollector creates a Collector with default params, risk and backtest options.
func NewCollector(fetcher Fetcher, benchmark string) *Collector {
	opts := backtest.DefaultOptions()
	return &Collector{
		Fetcher:   fetcher,
		Benchmark: benchmark,
		DailyBars: defaultDailyBar,
		Params:    opts.Params,
		Risk:      opts.Risk,
		Backtest:  opts,
	}
}

// Analyze runs the full single-ticker pipeline.
// Daily data and indicator failures are returned; benchmark, weekly, backtest,
// metrics and credit failures only degrade the result.
func (c *Collector) Analyze(ctx context.Context, code string) (*model.Analysis, error) {
	code = NormalizeCode(code)
	log := zap.L().With(zap.String("code", code))

	daily, err := c.Fetcher.FetchDailyBars(ctx, code, c.DailyBars)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	frame, err := calculator.Compute(daily, c.Params)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	a := &model.Analysis{
		Code:     code,
		Name:     c.name(ctx, code),
		Frame:    frame,
		Signal:   strategy.PlanFrame(frame, c.Risk),
		Patterns: calculator.DetectCandlestickPatterns(daily),
		Levels:   calculator.DetectSupportResistance(daily, levelWindow),
	}
	c.Metrics.Signal(string(a.Signal.Trend))

	// Relative strength
	if c.Benchmark != "" {
		if rs, err := c.relativeStrength(ctx, daily); err != nil {
			log.Warn("relative strength unavailable", zap.Error(err))
		} else {
			a.Relative = rs
		}
	}

	// Weekly
	if weekly, err := c.Fetcher.FetchWeeklyBars(ctx, code, weeklyBars); err != nil {
		log.Warn("weekly bars unavailable", zap.Error(err))
	} else if wf, err := calculator.Compute(weekly, model.WeeklyParams()); err != nil {
		log.Warn("weekly indicators unavailable", zap.Error(err))
	} else {
		ws := strategy.PlanFrame(wf, c.Risk)
		a.WeeklyFrame, a.WeeklySignal = wf, &ws
	}

	// Backtest
	opts := c.Backtest
	opts.Params, opts.Risk = c.Params, c.Risk
	if summary, err := backtest.Run(daily, opts); err != nil {
		log.Warn("backtest skipped", zap.Error(err))
	} else {
		a.Backtest = summary
		for _, t := range summary.Trades {
			c.Metrics.BacktestTrade(string(t.ExitReason))
		}
	}

	// Market metrics
	if m, err := calculator.CalculateMarketMetrics(frame); err != nil {
		log.Warn("market metrics unavailable", zap.Error(err))
	} else {
		a.Metrics = m
	}

	// Credit
	if c.Credit != nil {
		if rows, err := c.Credit.FetchCreditBalance(ctx, code); err != nil {
			log.Warn("credit data unavailable", zap.Error(err))
		} else {
			a.Credit = rows
			a.CreditScore, a.CreditNote = CreditScore(rows)
		}
	}

	log.Info("analysis complete",
		zap.String("trend", string(a.Signal.Trend)),
		zap.Float64("price", a.Signal.Price),
		zap.Float64("entry", a.Signal.EntryPrice))
	return a, nil
}

func (c *Collector) relativeStrength(ctx context.Context, daily []model.OHLCV) (*model.RelativeStrength, error) {
	bench, err := c.Fetcher.FetchDailyBars(ctx, c.Benchmark, benchmarkBars)
	if err != nil {
		return nil, fmt.Errorf("fetch benchmark: %w", err)
	}
	benchChange, err := calculator.ChangePct(bench)
	if err != nil {
		return nil, err
	}
	rs, err := calculator.CompareRelativeStrength(daily, benchChange)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (c *Collector) name(ctx context.Context, code string) string {
	if n, ok := c.Names[code]; ok {
		return n
	}
	if namer, ok := c.Fetcher.(Namer); ok {
		if n, err := namer.FetchName(ctx, code); err == nil && n != "" {
			return n
		}
	}
	return code
}
