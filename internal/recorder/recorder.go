package recorder

import (
	"errors"
	"time"

	"KabuSentinel/internal/model"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("record not found")

// AnalysisRecord is one stored row of analysis_log.
type AnalysisRecord struct {
	Timestamp      time.Time
	Code           string
	Name           string
	Price          float64
	Trend          model.TrendState
	TrendScore     int
	RSI            float64
	SupportLevel   float64
	EntryPrice     float64
	TargetPrice    float64
	StopLoss       float64
	StopLossSource string
	IsHighRisk     bool
	RiskReward     float64
}

// Recorder persists analyses, backtests, scans and alert events.
type Recorder interface {
	RecordAnalysis(a *model.Analysis) error
	// RecordBacktest stores a run with its trades and returns the run id.
	RecordBacktest(code string, s *model.BacktestSummary) (string, error)
	RecordScan(results []model.ScanResult) error
	RecordAlert(a model.PriceAlert, price float64) error
	LatestAnalysis(code string) (*AnalysisRecord, error)
	Close() error
}
