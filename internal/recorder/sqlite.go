package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"KabuSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	zap.L().Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_log (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			code             TEXT NOT NULL,
			name             TEXT,
			price            REAL,
			trend            TEXT,
			trend_score      INTEGER,
			rsi              REAL,
			support_level    REAL,
			entry_price      REAL,
			target_price     REAL,
			stop_loss        REAL,
			stop_loss_source TEXT,
			is_high_risk     INTEGER,
			risk_reward      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_code_ts ON analysis_log(code, timestamp)`,

		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			code             TEXT NOT NULL,
			window_days      INTEGER,
			total_trades     INTEGER,
			winning_trades   INTEGER,
			losing_trades    INTEGER,
			win_rate         REAL,
			avg_profit_pct   REAL,
			avg_loss_pct     REAL,
			total_return_pct REAL,
			max_drawdown_pct REAL,
			compounded       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_code_ts ON backtest_runs(code, timestamp)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL REFERENCES backtest_runs(id),
			entry_date  INTEGER,
			entry_price REAL,
			exit_date   INTEGER,
			exit_price  REAL,
			profit      REAL,
			profit_pct  REAL,
			exit_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			code           TEXT NOT NULL,
			name           TEXT,
			price          REAL,
			change_pct     REAL,
			score          INTEGER,
			recommendation TEXT,
			signals        TEXT,
			rsi            REAL,
			trend          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_ts ON scan_results(timestamp)`,

		`CREATE TABLE IF NOT EXISTS alert_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			code         TEXT NOT NULL,
			name         TEXT,
			condition    TEXT,
			target_price REAL,
			price        REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_ts ON alert_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// nullable stores NA as NULL.
func nullable(v float64) any {
	if model.IsNA(v) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return model.NA
	}
	return v.Float64
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRecorder) RecordAnalysis(a *model.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rsi := model.NA
	if a.Frame != nil && a.Frame.Len() > 0 {
		rsi = a.Frame.Last().RSI
	}
	sig := a.Signal

	_, err := r.db.Exec(`INSERT INTO analysis_log
		(timestamp, code, name, price, trend, trend_score, rsi, support_level,
		 entry_price, target_price, stop_loss, stop_loss_source, is_high_risk, risk_reward)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), a.Code, a.Name, sig.Price, string(sig.Trend), sig.TrendScore,
		nullable(rsi), sig.SupportLevel, sig.EntryPrice, sig.TargetPrice,
		sig.StopLoss, sig.StopLossSource, boolInt(sig.IsHighRisk), sig.RiskRewardRatio,
	)
	return err
}

func (r *SQLiteRecorder) RecordBacktest(code string, s *model.BacktestSummary) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.NewString()
	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO backtest_runs
		(id, timestamp, code, window_days, total_trades, winning_trades, losing_trades,
		 win_rate, avg_profit_pct, avg_loss_pct, total_return_pct, max_drawdown_pct, compounded)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		runID, r.now().Unix(), code, s.WindowDays, s.TotalTrades, s.WinningTrades, s.LosingTrades,
		s.WinRate, s.AvgProfitPct, s.AvgLossPct, s.TotalReturnPct, s.MaxDrawdownPct, boolInt(s.Compounded),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, t := range s.Trades {
		if _, err := tx.Exec(`INSERT INTO backtest_trades
			(run_id, entry_date, entry_price, exit_date, exit_price, profit, profit_pct, exit_reason)
			VALUES (?,?,?,?,?,?,?,?)`,
			runID, t.EntryDate.Unix(), t.EntryPrice, t.ExitDate.Unix(), t.ExitPrice,
			t.Profit, t.ProfitPct, string(t.ExitReason),
		); err != nil {
			return "", fmt.Errorf("insert trade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

func (r *SQLiteRecorder) RecordScan(results []model.ScanResult) error {
	if len(results) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, res := range results {
		if _, err := tx.Exec(`INSERT INTO scan_results
			(timestamp, code, name, price, change_pct, score, recommendation, signals, rsi, trend)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			now, res.Code, res.Name, res.Price, res.ChangePct, res.Score,
			res.Recommendation, strings.Join(res.Signals, "; "), nullable(res.RSI), string(res.Trend),
		); err != nil {
			return fmt.Errorf("insert scan result %s: %w", res.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlert(a model.PriceAlert, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO alert_events
		(timestamp, code, name, condition, target_price, price)
		VALUES (?,?,?,?,?,?)`,
		r.now().Unix(), a.Code, a.Name, string(a.Condition), a.Price, price,
	)
	return err
}

// LatestAnalysis returns the most recent analysis_log row for code.
func (r *SQLiteRecorder) LatestAnalysis(code string) (*AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		rec      AnalysisRecord
		ts       int64
		trend    string
		rsi      sql.NullFloat64
		highRisk int
	)
	err := r.db.QueryRow(`SELECT timestamp, code, name, price, trend, trend_score, rsi,
		support_level, entry_price, target_price, stop_loss, stop_loss_source, is_high_risk, risk_reward
		FROM analysis_log WHERE code = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, code).Scan(
		&ts, &rec.Code, &rec.Name, &rec.Price, &trend, &rec.TrendScore, &rsi,
		&rec.SupportLevel, &rec.EntryPrice, &rec.TargetPrice, &rec.StopLoss,
		&rec.StopLossSource, &highRisk, &rec.RiskReward,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Timestamp = time.Unix(ts, 0)
	rec.Trend = model.TrendState(trend)
	rec.RSI = fromNull(rsi)
	rec.IsHighRisk = highRisk != 0
	return &rec, nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRecorder) Ping() error {
	return r.db.Ping()
}

func (r *SQLiteRecorder) Close() error {
	zap.L().Info("closing sqlite recorder")
	return r.db.Close()
}
