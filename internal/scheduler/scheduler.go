package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/notifier"
	"KabuSentinel/internal/portfolio"
	"KabuSentinel/internal/recorder"
)

const (
	sendRetries  = 3
	scanTopN     = 10
	helpText     = "Commands:\n• /analyze CODE\n• /backtest CODE\n• /scan\n• /portfolio\n• /buy CODE QTY PRICE\n• /sell CODE\n• /watchlist\n• /watch CODE\n• /unwatch CODE\n• /alert CODE above|below PRICE\n• /unalert CODE above|below\n• /help"
	reportHeader = "📰 Daily report"
)

// Analyzer runs the single-ticker pipeline. *collector.Collector implements it.
type Analyzer interface {
	Analyze(ctx context.Context, code string) (*model.Analysis, error)
}

// Scanner scores a universe. *screener.Screener implements it.
type Scanner interface {
	Scan(ctx context.Context, universe []model.Ticker) ([]model.ScanResult, error)
}

// PriceSource returns the latest traded price.
type PriceSource interface {
	FetchCurrentPrice(ctx context.Context, code string) (float64, error)
}

// Sender delivers a notification. *notifier.LineNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Analyzer  Analyzer
	Scanner   Scanner
	Prices    PriceSource
	Portfolio *portfolio.Manager
	Notifier  Sender
	Recorder  recorder.Recorder
	Health    *metrics.HealthStatus // optional
	Universe  []model.Ticker
	Ctx       context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, an Analyzer, sc Scanner, prices PriceSource, pm *portfolio.Manager, sender Sender, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Analyzer:  an,
		Scanner:   sc,
		Prices:    prices,
		Portfolio: pm,
		Notifier:  sender,
		Recorder:  rec,
		Ctx:       ctx,
		now:       time.Now,
	}
}

// RegisterAll registers the daily report, intraday alert check and weekly scan.
func (s *Scheduler) RegisterAll(dailyCron, alertCron, scanCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyReport); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if _, err := s.Cron.AddFunc(alertCron, s.alertCheck); err != nil {
		return fmt.Errorf("register alert task: %w", err)
	}
	if _, err := s.Cron.AddFunc(scanCron, s.weeklyScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	zap.L().Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	zap.L().Info("scheduler stopped")
}

// RunDailyNow executes the daily report immediately (for RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyReport()
}

func (s *Scheduler) markRun() {
	if s.Health != nil {
		s.Health.MarkRun(s.now())
	}
}

// reportCodes is the watchlist followed by held codes not already watched.
func (s *Scheduler) reportCodes() []string {
	seen := make(map[string]bool)
	var codes []string
	for _, t := range s.Portfolio.Watchlist() {
		if !seen[t.Code] {
			seen[t.Code] = true
			codes = append(codes, t.Code)
		}
	}
	for _, h := range s.Portfolio.Holdings() {
		if !seen[h.Code] {
			seen[h.Code] = true
			codes = append(codes, h.Code)
		}
	}
	return codes
}

func (s *Scheduler) dailyReport() {
	defer s.markRun()
	zap.L().Info("running daily report")

	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s\n\n", reportHeader, s.now().Format("2006-01-02"))

	prices := make(map[string]float64)
	for _, code := range s.reportCodes() {
		if s.Ctx.Err() != nil {
			return
		}
		a, err := s.analyze(s.Ctx, code)
		if err != nil {
			zap.L().Error("daily analysis failed", zap.String("code", code), zap.Error(err))
			fmt.Fprintf(&b, "❌ %s: %v\n\n", code, err)
			continue
		}
		if !a.Signal.Insufficient() {
			prices[a.Code] = a.Signal.Price
		}
		b.WriteString(notifier.FormatAnalysis(a))
		b.WriteString("\n")
	}

	if len(s.Portfolio.Holdings()) > 0 {
		b.WriteString(notifier.FormatPortfolio(s.Portfolio.Valuate(prices)))
	}
	s.trySend(b.String())
}

func (s *Scheduler) alertCheck() {
	defer s.markRun()
	codes := s.Portfolio.AlertCodes()
	if len(codes) == 0 {
		return
	}
	zap.L().Debug("running alert check", zap.Int("codes", len(codes)))

	prices := make(map[string]float64, len(codes))
	for _, code := range codes {
		p, err := s.Prices.FetchCurrentPrice(s.Ctx, code)
		if err != nil {
			zap.L().Warn("alert price unavailable", zap.String("code", code), zap.Error(err))
			continue
		}
		prices[code] = p
	}

	fired, err := s.Portfolio.CheckAlerts(prices, s.now())
	if err != nil {
		zap.L().Error("persist alert log", zap.Error(err))
	}
	for _, a := range fired {
		s.trySend(notifier.FormatAlert(a, prices[a.Code]))
		if err := s.Recorder.RecordAlert(a, prices[a.Code]); err != nil {
			zap.L().Error("record alert", zap.Error(err))
		}
	}
}

func (s *Scheduler) weeklyScan() {
	defer s.markRun()
	text, err := s.scan(s.Ctx)
	if err != nil {
		zap.L().Error("weekly scan failed", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ market scan failed: %v", err))
		return
	}
	s.trySend(text)
}

func (s *Scheduler) scan(ctx context.Context) (string, error) {
	zap.L().Info("running market scan")
	results, err := s.Scanner.Scan(ctx, s.Universe)
	if err != nil {
		return "", err
	}
	if err := s.Recorder.RecordScan(results); err != nil {
		zap.L().Error("record scan", zap.Error(err))
	}
	return notifier.FormatScan(results, scanTopN), nil
}

// analyze runs and records one analysis, including its backtest run.
func (s *Scheduler) analyze(ctx context.Context, code string) (*model.Analysis, error) {
	a, err := s.Analyzer.Analyze(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.Recorder.RecordAnalysis(a); err != nil {
		zap.L().Error("record analysis", zap.String("code", a.Code), zap.Error(err))
	}
	if a.Backtest != nil {
		if _, err := s.Recorder.RecordBacktest(a.Code, a.Backtest); err != nil {
			zap.L().Error("record backtest", zap.String("code", a.Code), zap.Error(err))
		}
	}
	return a, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/analyze", "/backtest":
		if len(fields) < 2 {
			return fmt.Sprintf("Usage: %s CODE (e.g. %s 7203)", cmd, cmd)
		}
		code := collector.NormalizeCode(fields[1])
		if !collector.IsTSECode(code) {
			return fmt.Sprintf("%q is not a TSE code", fields[1])
		}
		a, err := s.analyze(ctx, code)
		if err != nil {
			if cmd == "/analyze" {
				if rec, lerr := s.Recorder.LatestAnalysis(code); lerr == nil {
					zap.L().Warn("analysis failed, replying with stored record", zap.String("code", code), zap.Error(err))
					return notifier.FormatStoredAnalysis(rec)
				}
			}
			if errors.Is(err, collector.ErrNoData) {
				return fmt.Sprintf("❌ no data for %s", code)
			}
			return fmt.Sprintf("❌ analysis of %s failed: %v", code, err)
		}
		if cmd == "/backtest" {
			return notifier.FormatBacktest(a.Code, a.Backtest)
		}
		return notifier.FormatAnalysis(a)
	case "/scan":
		text, err := s.scan(ctx)
		if err != nil {
			return fmt.Sprintf("❌ market scan failed: %v", err)
		}
		return text
	case "/portfolio":
		return notifier.FormatPortfolio(s.Portfolio.Valuate(s.holdingPrices(ctx)))
	case "/watchlist":
		return notifier.FormatWatchlist(s.Portfolio.Watchlist())
	case "/buy", "/sell", "/watch", "/unwatch", "/alert", "/unalert":
		return s.mutate(cmd, fields[1:])
	default:
		return helpText
	}
}

// mutate handles the commands that change the stored portfolio state.
func (s *Scheduler) mutate(cmd string, args []string) string {
	usage := map[string]string{
		"/buy":     "Usage: /buy CODE QTY PRICE (e.g. /buy 7203 100 2500)",
		"/sell":    "Usage: /sell CODE",
		"/watch":   "Usage: /watch CODE",
		"/unwatch": "Usage: /unwatch CODE",
		"/alert":   "Usage: /alert CODE above|below PRICE",
		"/unalert": "Usage: /unalert CODE above|below",
	}
	want := map[string]int{"/buy": 3, "/sell": 1, "/watch": 1, "/unwatch": 1, "/alert": 3, "/unalert": 2}
	if len(args) < want[cmd] {
		return usage[cmd]
	}
	code := collector.NormalizeCode(args[0])
	if !collector.IsTSECode(code) {
		return fmt.Sprintf("%q is not a TSE code", args[0])
	}

	switch cmd {
	case "/buy":
		qty, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Sprintf("❌ invalid quantity %q", args[1])
		}
		price, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Sprintf("❌ invalid price %q", args[2])
		}
		h, err := s.Portfolio.Add(code, s.tickerName(code), qty, price)
		if err != nil {
			return fmt.Sprintf("❌ buy %s failed: %v", code, err)
		}
		return fmt.Sprintf("✅ holding %s: %s shares @ ¥%s", h.Code, h.Quantity.String(), h.AvgPrice.StringFixed(2))
	case "/sell":
		ok, err := s.Portfolio.Remove(code)
		if err != nil {
			return fmt.Sprintf("❌ sell %s failed: %v", code, err)
		}
		if !ok {
			return fmt.Sprintf("%s is not held", code)
		}
		return fmt.Sprintf("✅ sold %s", code)
	case "/watch":
		ok, err := s.Portfolio.AddWatch(model.Ticker{Code: code, Name: s.tickerName(code)})
		if err != nil {
			return fmt.Sprintf("❌ watch %s failed: %v", code, err)
		}
		if !ok {
			return fmt.Sprintf("%s is already watched", code)
		}
		return fmt.Sprintf("✅ watching %s", code)
	case "/unwatch":
		ok, err := s.Portfolio.RemoveWatch(code)
		if err != nil {
			return fmt.Sprintf("❌ unwatch %s failed: %v", code, err)
		}
		if !ok {
			return fmt.Sprintf("%s is not watched", code)
		}
		return fmt.Sprintf("✅ stopped watching %s", code)
	}

	cond := model.AlertCondition(strings.ToLower(args[1]))
	if cond != model.AlertAbove && cond != model.AlertBelow {
		return usage[cmd]
	}
	if cmd == "/unalert" {
		ok, err := s.Portfolio.RemoveAlert(code, cond)
		if err != nil {
			return fmt.Sprintf("❌ unalert %s failed: %v", code, err)
		}
		if !ok {
			return fmt.Sprintf("no %s alert for %s", cond, code)
		}
		return fmt.Sprintf("✅ removed %s alert for %s", cond, code)
	}
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Sprintf("❌ invalid price %q", args[2])
	}
	alert := model.PriceAlert{Code: code, Name: s.tickerName(code), Price: price.InexactFloat64(), Condition: cond}
	if err := s.Portfolio.AddAlert(alert); err != nil {
		return fmt.Sprintf("❌ alert %s failed: %v", code, err)
	}
	return fmt.Sprintf("✅ alert set: %s %s ¥%s", code, cond, price.StringFixed(2))
}

// tickerName resolves a display name from the universe or the watchlist, or "" if unknown.
func (s *Scheduler) tickerName(code string) string {
	for _, t := range s.Universe {
		if t.Code == code {
			return t.Name
		}
	}
	for _, t := range s.Portfolio.Watchlist() {
		if t.Code == code {
			return t.Name
		}
	}
	return ""
}

func (s *Scheduler) holdingPrices(ctx context.Context) map[string]float64 {
	prices := make(map[string]float64)
	for _, h := range s.Portfolio.Holdings() {
		p, err := s.Prices.FetchCurrentPrice(ctx, h.Code)
		if err != nil {
			zap.L().Warn("holding price unavailable, using cost", zap.String("code", h.Code), zap.Error(err))
			continue
		}
		prices[h.Code] = p
	}
	return prices
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		zap.L().Error("send notification", zap.Error(err))
	}
}
