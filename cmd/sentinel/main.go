package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"KabuSentinel/internal/backtest"
	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/config"
	"KabuSentinel/internal/logger"
	"KabuSentinel/internal/metrics"
	"KabuSentinel/internal/notifier"
	"KabuSentinel/internal/portfolio"
	"KabuSentinel/internal/recorder"
	"KabuSentinel/internal/scheduler"
	"KabuSentinel/internal/screener"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("config validation", zap.Error(err))
	}
	log.Info("KabuSentinel starting...")

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()

	// Init fetcher: yahoo behind the bar cache
	rdb, err := collector.NewRedisClient(ctx, collector.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("redis unavailable, using memory cache", zap.Error(err))
	}
	if rdb != nil {
		health.SetRedisConnected(true)
		defer rdb.Close()
	}
	yahoo := collector.NewYahooFetcher(cfg.DataSource.BaseURL, cfg.Proxy, m)
	fetcher := collector.NewCachedFetcher(yahoo, rdb, cfg.Redis.TTL, m)
	log.Info("data source ready", zap.String("fetcher", fetcher.Name()))

	// Init collector
	opts := backtest.Options{
		Params:      cfg.Strategy.Params,
		Risk:        cfg.Strategy.Risk,
		WindowDays:  cfg.Strategy.Backtest.WindowDays,
		Lookback:    cfg.Strategy.Backtest.Lookback,
		Compounding: cfg.Strategy.Backtest.Compounding,
	}
	col := collector.NewCollector(fetcher, cfg.DataSource.Benchmark)
	col.DailyBars = cfg.DataSource.DailyBars
	col.Params, col.Risk, col.Backtest = opts.Params, opts.Risk, opts
	col.Credit = collector.NewCreditScraper(cfg.DataSource.CreditURL, nil)
	col.Metrics = m

	universe := cfg.Screener.Universe
	if len(universe) == 0 {
		universe = screener.DefaultUniverse
	}
	col.Names = make(map[string]string, len(universe))
	for _, t := range universe {
		col.Names[t.Code] = t.Name
	}
	scr := screener.New(fetcher, cfg.Screener.Workers, m)

	// Init portfolio
	pm, err := portfolio.NewManager(cfg.Portfolio.StateFile, cfg.Portfolio.AlertCooldown)
	if err != nil {
		log.Fatal("init portfolio", zap.Error(err))
	}
	for _, t := range pm.Watchlist() {
		if _, ok := col.Names[t.Code]; !ok && t.Name != "" {
			col.Names[t.Code] = t.Name
		}
	}

	// Init LINE notifier
	ln := notifier.NewLineNotifier(cfg.Line.ChannelAccessToken, cfg.Line.UserID, cfg.Proxy)

	// Init recorder
	var rec recorder.Recorder
	if sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath); err != nil {
		log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		rec = recorder.NewNoopRecorder()
	} else {
		rec = sr
		health.SetSQLiteOK(true)
		defer sr.Close()
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, scr, fetcher, pm, ln, rec)
	sched.Universe = universe
	sched.Health = health
	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.AlertCron, cfg.Schedule.ScanCron); err != nil {
		log.Fatal("register cron tasks", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	// HTTP: metrics, health and the LINE webhook
	webhook := notifier.NewWebhookHandler(ctx, cfg.Line.ChannelSecret, ln, sched.HandleCommand)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)
	if cfg.Line.ChannelSecret != "" {
		mux.Handle("/line/webhook", webhook)
	} else {
		log.Warn("line.channel_secret not set, webhook commands disabled")
	}
	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
		}
	}()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, executing daily report now")
		go sched.RunDailyNow()
	}

	log.Info("KabuSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info("shutdown signal received, stopping...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	webhook.Wait()
	log.Info("KabuSentinel stopped")
}
