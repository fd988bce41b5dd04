package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"KabuSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Line struct {
		ChannelAccessToken string `yaml:"channel_access_token"`
		ChannelSecret      string `yaml:"channel_secret"`
		UserID             string `yaml:"user_id"`
	} `yaml:"line"`
	DataSource struct {
		BaseURL   string `yaml:"base_url"`
		Benchmark string `yaml:"benchmark"`
		CreditURL string `yaml:"credit_url"`
		DailyBars int    `yaml:"daily_bars"`
	} `yaml:"data_source"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
		AlertCron string `yaml:"alert_cron"`
		ScanCron  string `yaml:"scan_cron"`
	} `yaml:"schedule"`
	Strategy struct {
		Params   model.Params     `yaml:"params"`
		Risk     model.RiskConfig `yaml:"risk"`
		Backtest struct {
			WindowDays  int  `yaml:"window_days"`
			Lookback    int  `yaml:"lookback"`
			Compounding bool `yaml:"compounding"`
		} `yaml:"backtest"`
	} `yaml:"strategy"`
	Screener struct {
		Workers  int            `yaml:"workers"`
		Universe []model.Ticker `yaml:"universe"`
	} `yaml:"screener"`
	Portfolio struct {
		StateFile     string        `yaml:"state_file"`
		AlertCooldown time.Duration `yaml:"alert_cooldown"`
	} `yaml:"portfolio"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Log   LogConfig `yaml:"log"`
	Proxy string    `yaml:"proxy"`
}

// LogConfig configures the zap logger and its rotating file sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxAge     int    `yaml:"max_age"`  // days
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults fill every unset field.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Strategy.Params = model.DefaultParams()
	cfg.Strategy.Risk = model.DefaultRiskConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"); v != "" {
		cfg.Line.ChannelAccessToken = v
	}
	if v := os.Getenv("LINE_CHANNEL_SECRET"); v != "" {
		cfg.Line.ChannelSecret = v
	}
	if v := os.Getenv("LINE_USER_ID"); v != "" {
		cfg.Line.UserID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("STOP_LOSS_LIMIT_PCT"); v != "" {
		var pct float64
		if _, err := fmt.Sscanf(v, "%f", &pct); err == nil {
			cfg.Strategy.Risk.StopLossLimitPct = pct
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Defaults
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.DataSource.Benchmark == "" {
		cfg.DataSource.Benchmark = "^N225"
	}
	if cfg.DataSource.DailyBars == 0 {
		cfg.DataSource.DailyBars = 250
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 15 * * 1-5"
	}
	if cfg.Schedule.AlertCron == "" {
		cfg.Schedule.AlertCron = "0 */15 9-14 * * 1-5"
	}
	if cfg.Schedule.ScanCron == "" {
		cfg.Schedule.ScanCron = "0 0 8 * * 1"
	}
	if cfg.Strategy.Backtest.WindowDays == 0 {
		cfg.Strategy.Backtest.WindowDays = 30
	}
	if cfg.Strategy.Backtest.Lookback == 0 {
		cfg.Strategy.Backtest.Lookback = 150
	}
	if cfg.Screener.Workers == 0 {
		cfg.Screener.Workers = 4
	}
	if cfg.Portfolio.StateFile == "" {
		cfg.Portfolio.StateFile = "data/portfolio.json"
	}
	if cfg.Portfolio.AlertCooldown == 0 {
		cfg.Portfolio.AlertCooldown = 24 * time.Hour
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/kabu_sentinel.db"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 15 * time.Minute
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 50
	}
	if cfg.Log.MaxAge == 0 {
		cfg.Log.MaxAge = 14
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Line.ChannelAccessToken == "" {
		return fmt.Errorf("line.channel_access_token is required")
	}
	if pct := c.Strategy.Risk.StopLossLimitPct; pct >= 0 || pct <= -100 {
		return fmt.Errorf("strategy.risk.stop_loss_limit_pct must be in (-100, 0), got %.2f", pct)
	}
	if c.Strategy.Backtest.WindowDays < 2 {
		return fmt.Errorf("strategy.backtest.window_days must be at least 2")
	}
	if c.Strategy.Backtest.Lookback < 0 {
		return fmt.Errorf("strategy.backtest.lookback must not be negative")
	}
	if c.Screener.Workers <= 0 {
		return fmt.Errorf("screener.workers must be positive")
	}
	return nil
}

// ConfigPath returns CONFIG_PATH or the default location.
func ConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}
