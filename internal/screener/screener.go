package screener

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
)

// scanBars is enough history for SMA75 plus the crossover lookback.
const scanBars = 120

// DefaultUniverse is the large-cap list scanned when none is configured.
var DefaultUniverse = []model.Ticker{
	{Code: "7203", Name: "Toyota Motor"},
	{Code: "9984", Name: "SoftBank Group"},
	{Code: "6758", Name: "Sony Group"},
	{Code: "6861", Name: "Keyence"},
	{Code: "6098", Name: "Recruit Holdings"},
	{Code: "9983", Name: "Fast Retailing"},
	{Code: "8316", Name: "Sumitomo Mitsui FG"},
	{Code: "9432", Name: "NTT"},
	{Code: "8306", Name: "Mitsubishi UFJ FG"},
	{Code: "7974", Name: "Nintendo"},
	{Code: "8035", Name: "Tokyo Electron"},
	{Code: "8058", Name: "Mitsubishi Corp"},
	{Code: "6501", Name: "Hitachi"},
	{Code: "4063", Name: "Shin-Etsu Chemical"},
	{Code: "4502", Name: "Takeda Pharmaceutical"},
	{Code: "3382", Name: "Seven & i Holdings"},
	{Code: "8001", Name: "Itochu"},
	{Code: "6954", Name: "Fanuc"},
	{Code: "6367", Name: "Daikin Industries"},
	{Code: "4568", Name: "Daiichi Sankyo"},
	{Code: "6273", Name: "SMC"},
	{Code: "7741", Name: "HOYA"},
	{Code: "6981", Name: "Murata Manufacturing"},
	{Code: "7267", Name: "Honda Motor"},
	{Code: "2914", Name: "Japan Tobacco"},
	{Code: "4452", Name: "Kao"},
	{Code: "8766", Name: "Tokio Marine HD"},
	{Code: "6902", Name: "Denso"},
	{Code: "4543", Name: "Terumo"},
	{Code: "6594", Name: "Nidec"},
	{Code: "5401", Name: "Nippon Steel"},
	{Code: "8802", Name: "Mitsubishi Estate"},
	{Code: "8411", Name: "Mizuho FG"},
	{Code: "7201", Name: "Nissan Motor"},
	{Code: "7733", Name: "Olympus"},
	{Code: "6702", Name: "Fujitsu"},
	{Code: "9101", Name: "Nippon Yusen"},
	{Code: "7011", Name: "Mitsubishi Heavy Industries"},
	{Code: "4901", Name: "Fujifilm HD"},
	{Code: "6146", Name: "Disco"},
}

// Screener scans a ticker universe with a bounded worker pool.
type Screener struct {
	Fetcher collector.Fetcher
	Params  model.Params
	Workers int
	Metrics *metrics.Metrics
}

// New creates a Screener using the default indicator params.
func New(fetcher collector.Fetcher, workers int, m *metrics.Metrics) *Screener {
	if workers <= 0 {
		workers = 1
	}
	return &Screener{Fetcher: fetcher, Params: model.DefaultParams(), Workers: workers, Metrics: m}
}

// Scan scores every ticker in universe and returns the ones with something to say,
// sorted by score descending then code. Per-ticker failures are logged and skipped;
// only context cancellation aborts the scan.
func (s *Screener) Scan(ctx context.Context, universe []model.Ticker) ([]model.ScanResult, error) {
	if len(universe) == 0 {
		universe = DefaultUniverse
	}
	start := time.Now()

	// Each worker owns one slot; nothing is shared until Wait returns.
	slots := make([]*model.ScanResult, len(universe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)

	for i, t := range universe {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.scanOne(gctx, t)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("scan skipped ticker", zap.String("code", t.Code), zap.Error(err))
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []model.ScanResult
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Code < results[j].Code
	})

	s.Metrics.ObserveScan(time.Since(start))
	zap.L().Info("scan finished",
		zap.Int("universe", len(universe)),
		zap.Int("hits", len(results)),
		zap.Duration("took", time.Since(start)))
	return results, nil
}

// scanOne returns nil (and no error) for a ticker with no signals and a zero score.
func (s *Screener) scanOne(ctx context.Context, t model.Ticker) (*model.ScanResult, error) {
	bars, err := s.Fetcher.FetchDailyBars(ctx, t.Code, scanBars)
	if err != nil {
		return nil, err
	}
	frame, err := calculator.Compute(bars, s.Params)
	if err != nil {
		return nil, err
	}
	score := strategy.ScoreScreen(frame)
	if len(score.Signals) == 0 && score.Score == 0 {
		return nil, nil
	}

	change, _ := calculator.ChangePct(bars)
	return &model.ScanResult{
		Code:           t.Code,
		Name:           t.Name,
		Price:          frame.Last().Close,
		ChangePct:      change,
		Score:          score.Score,
		Recommendation: score.Recommendation,
		Signals:        score.Signals,
		RSI:            score.RSI,
		Trend:          score.Trend,
	}, nil
}
