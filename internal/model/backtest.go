package model

import "time"

// ExitReason explains why a simulated position was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
)

// TradeRecord is one closed simulated position.
type TradeRecord struct {
	EntryDate  time.Time  `json:"entry_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitDate   time.Time  `json:"exit_date"`
	ExitPrice  float64    `json:"exit_price"`
	Profit     float64    `json:"profit"`
	ProfitPct  float64    `json:"profit_pct"`
	ExitReason ExitReason `json:"exit_reason"`
}

// BacktestSummary aggregates a completed trade sequence.
type BacktestSummary struct {
	WindowDays     int           `json:"window_days"`
	TotalTrades    int           `json:"total_trades"`
	WinningTrades  int           `json:"winning_trades"`
	LosingTrades   int           `json:"losing_trades"`
	WinRate        float64       `json:"win_rate"`
	AvgProfitPct   float64       `json:"avg_profit_pct"`
	AvgLossPct     float64       `json:"avg_loss_pct"`
	TotalReturnPct float64       `json:"total_return_pct"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	Compounded     bool          `json:"compounded"`
	Trades         []TradeRecord `json:"trades"`
}
