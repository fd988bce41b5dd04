package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker identifies a TSE-listed stock.
type Ticker struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Holding is a portfolio position.
type Holding struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	AddedAt  time.Time       `json:"added_at"`
}

// AlertCondition is the direction of a price alert.
type AlertCondition string

const (
	AlertAbove AlertCondition = "above"
	AlertBelow AlertCondition = "below"
)

// PriceAlert fires when a ticker crosses Price in the given direction.
type PriceAlert struct {
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Price     float64        `json:"price"`
	Condition AlertCondition `json:"condition"`
}

// Key identifies the alert in the notification log.
func (a PriceAlert) Key() string {
	return a.Code + ":" + string(a.Condition)
}

// PortfolioState is the persisted user state.
type PortfolioState struct {
	Holdings        []Holding            `json:"holdings"`
	Watchlist       []Ticker             `json:"watchlist"`
	Alerts          []PriceAlert         `json:"alerts"`
	NotificationLog map[string]time.Time `json:"notification_log"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// HoldingValue is a valued portfolio row.
type HoldingValue struct {
	Holding
	CurrentPrice decimal.Decimal
	Invested     decimal.Decimal
	Value        decimal.Decimal
	Profit       decimal.Decimal
	ProfitPct    decimal.Decimal
}

// PortfolioValuation is the valued portfolio with totals.
type PortfolioValuation struct {
	Rows          []HoldingValue
	TotalInvested decimal.Decimal
	TotalValue    decimal.Decimal
	TotalProfit   decimal.Decimal
	ProfitPct     decimal.Decimal
}
