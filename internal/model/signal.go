package model

// TrendState classifies the moving-average alignment of the latest bar.
type TrendState string

const (
	TrendPerfectUp   TrendState = "PERFECT_UP"
	TrendPerfectDown TrendState = "PERFECT_DOWN"
	TrendMildUp      TrendState = "MILD_UP"
	TrendMildDown    TrendState = "MILD_DOWN"
	TrendUnknown     TrendState = "UNKNOWN"
)

// Label returns the human-readable trend label.
func (t TrendState) Label() string {
	switch t {
	case TrendPerfectUp:
		return "strong uptrend"
	case TrendPerfectDown:
		return "strong downtrend"
	case TrendMildUp:
		return "mild uptrend"
	case TrendMildDown:
		return "mild downtrend"
	default:
		return "insufficient data"
	}
}

// Score returns the trend score (-2 ~ +2, 0 when unknown).
func (t TrendState) Score() int {
	switch t {
	case TrendPerfectUp:
		return 2
	case TrendPerfectDown:
		return -2
	case TrendMildUp:
		return 1
	case TrendMildDown:
		return -1
	default:
		return 0
	}
}

// Stop-loss sources.
const (
	StopLossATR        = "atr"
	StopLossFixedLimit = "fixed_limit"
)

// RiskConfig caps the loss of a planned trade. StopLossLimitPct uses the negative
// convention: -5.0 means "never risk more than 5% below entry".
type RiskConfig struct {
	StopLossLimitPct float64 `yaml:"stop_loss_limit_pct"`
}

// DefaultRiskConfig returns the -5% guardrail.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{StopLossLimitPct: -5.0}
}

// VolumeSpike is the output of the volume spike detector.
type VolumeSpike struct {
	IsSpike bool
	Ratio   float64
}

// StrategySignal is the trading plan derived from the latest indicator row.
// A zero-priced signal with TrendUnknown means there was not enough history.
type StrategySignal struct {
	Trend           TrendState
	TrendLabel      string
	TrendScore      int
	Price           float64
	SupportLevel    float64
	EntryPrice      float64
	TargetPrice     float64
	StopLoss        float64
	StopLossSource  string
	IsHighRisk      bool
	RiskRewardRatio float64
	VolumeSpike     bool
	VolumeRatio     float64
}

// Insufficient reports whether s is the "insufficient data" sentinel.
func (s StrategySignal) Insufficient() bool {
	return s.Trend == TrendUnknown
}

// Relative strength statuses, in classification priority order.
const (
	RSStrongDivergenceUp = "strong divergence up"
	RSOutperforming      = "outperforming"
	RSUnderperforming    = "underperforming"
	RSDivergenceDown     = "divergence down"
	RSInLine             = "in line with market"
)

// RelativeStrength compares a ticker's last move with the benchmark's.
type RelativeStrength struct {
	Status             string
	Diff               float64
	StockChangePct     float64
	BenchmarkChangePct float64
	Description        string
}

// ScanResult is one row of a market scan.
type ScanResult struct {
	Code           string
	Name           string
	Price          float64
	ChangePct      float64
	Score          int
	Recommendation string
	Signals        []string
	RSI            float64
	Trend          TrendState
}

// Analysis bundles everything computed for one ticker.
type Analysis struct {
	Code         string
	Name         string
	Frame        *IndicatorFrame
	WeeklyFrame  *IndicatorFrame
	Signal       StrategySignal
	WeeklySignal *StrategySignal
	Relative     *RelativeStrength
	Backtest     *BacktestSummary
	Metrics      *MarketMetrics
	Patterns     []Pattern
	Levels       SupportResistance
	Credit       []CreditBalance
	CreditScore  int
	CreditNote   string
}
