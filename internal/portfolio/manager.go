package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"KabuSentinel/internal/model"
)

// DefaultCooldown is how long a fired alert stays silent.
const DefaultCooldown = 24 * time.Hour

// DefaultWatchlist seeds a fresh state file.
var DefaultWatchlist = []model.Ticker{
	{Code: "7203", Name: "Toyota Motor"},
	{Code: "9984", Name: "SoftBank Group"},
	{Code: "6758", Name: "Sony Group"},
}

var (
	ErrInvalidHolding = errors.New("quantity and price must be positive")
	ErrInvalidAlert   = errors.New("alert needs a code, a positive price and a condition of above or below")
)

var hundred = decimal.NewFromInt(100)

// Manager owns the holdings, watchlist and alerts with concurrency safety.
// Every mutation is persisted before it returns.
type Manager struct {
	mu       sync.Mutex
	state    *model.PortfolioState
	filePath string
	cooldown time.Duration
}

// NewManager creates a Manager, loading or initializing state from disk.
func NewManager(filePath string, cooldown time.Duration) (*Manager, error) {
	state, existed, err := LoadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load portfolio %s: %w", filePath, err)
	}
	if !existed {
		state.Watchlist = append([]model.Ticker(nil), DefaultWatchlist...)
	}
	if state.NotificationLog == nil {
		state.NotificationLog = make(map[string]time.Time)
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	m := &Manager{state: state, filePath: filePath, cooldown: cooldown}
	if !existed {
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Holdings returns a copy of the current holdings.
func (m *Manager) Holdings() []model.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Holding(nil), m.state.Holdings...)
}

// Add buys qty at price. An existing holding is merged at the weighted average cost.
func (m *Manager) Add(code, name string, qty, price decimal.Decimal) (model.Holding, error) {
	if !qty.IsPositive() || !price.IsPositive() {
		return model.Holding{}, ErrInvalidHolding
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, h := range m.state.Holdings {
		if h.Code != code {
			continue
		}
		total := h.Quantity.Add(qty)
		cost := h.Quantity.Mul(h.AvgPrice).Add(qty.Mul(price))
		h.AvgPrice = cost.Div(total)
		h.Quantity = total
		if name != "" {
			h.Name = name
		}
		m.state.Holdings[i] = h
		return h, m.save()
	}

	h := model.Holding{Code: code, Name: name, Quantity: qty, AvgPrice: price, AddedAt: time.Now()}
	m.state.Holdings = append(m.state.Holdings, h)
	return h, m.save()
}

// Remove drops the holding for code. It reports whether one existed.
func (m *Manager) Remove(code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.state.Holdings[:0]
	found := false
	for _, h := range m.state.Holdings {
		if h.Code == code {
			found = true
			continue
		}
		kept = append(kept, h)
	}
	if !found {
		return false, nil
	}
	m.state.Holdings = kept
	return true, m.save()
}

// Valuate values the current holdings at prices.
func (m *Manager) Valuate(prices map[string]float64) model.PortfolioValuation {
	return Valuate(m.Holdings(), prices)
}

// Valuate values holdings at prices. A missing or non-positive price values the
// holding at its average cost.
func Valuate(holdings []model.Holding, prices map[string]float64) model.PortfolioValuation {
	var v model.PortfolioValuation
	for _, h := range holdings {
		current := h.AvgPrice
		if p, ok := prices[h.Code]; ok && p > 0 {
			current = decimal.NewFromFloat(p)
		}
		row := model.HoldingValue{
			Holding:      h,
			CurrentPrice: current,
			Invested:     h.Quantity.Mul(h.AvgPrice),
			Value:        h.Quantity.Mul(current),
		}
		row.Profit = row.Value.Sub(row.Invested)
		row.ProfitPct = percent(row.Profit, row.Invested)

		v.Rows = append(v.Rows, row)
		v.TotalInvested = v.TotalInvested.Add(row.Invested)
		v.TotalValue = v.TotalValue.Add(row.Value)
	}
	v.TotalProfit = v.TotalValue.Sub(v.TotalInvested)
	v.ProfitPct = percent(v.TotalProfit, v.TotalInvested)
	return v
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// Watchlist returns a copy of the watchlist.
func (m *Manager) Watchlist() []model.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Ticker(nil), m.state.Watchlist...)
}

// AddWatch appends t unless its code is already watched.
func (m *Manager) AddWatch(t model.Ticker) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.state.Watchlist {
		if w.Code == t.Code {
			return false, nil
		}
	}
	m.state.Watchlist = append(m.state.Watchlist, t)
	return true, m.save()
}

// RemoveWatch drops code from the watchlist.
func (m *Manager) RemoveWatch(code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.state.Watchlist[:0]
	found := false
	for _, w := range m.state.Watchlist {
		if w.Code == code {
			found = true
			continue
		}
		kept = append(kept, w)
	}
	if !found {
		return false, nil
	}
	m.state.Watchlist = kept
	return true, m.save()
}

// Alerts returns a copy of the configured price alerts.
func (m *Manager) Alerts() []model.PriceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.PriceAlert(nil), m.state.Alerts...)
}

// AddAlert stores a, replacing any alert with the same code and condition.
func (m *Manager) AddAlert(a model.PriceAlert) error {
	if a.Code == "" || a.Price <= 0 || (a.Condition != model.AlertAbove && a.Condition != model.AlertBelow) {
		return ErrInvalidAlert
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.state.Alerts {
		if existing.Key() == a.Key() {
			m.state.Alerts[i] = a
			delete(m.state.NotificationLog, a.Key())
			return m.save()
		}
	}
	m.state.Alerts = append(m.state.Alerts, a)
	return m.save()
}

// RemoveAlert deletes the alert for code and condition.
func (m *Manager) RemoveAlert(code string, cond model.AlertCondition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := model.PriceAlert{Code: code, Condition: cond}.Key()
	kept := m.state.Alerts[:0]
	found := false
	for _, a := range m.state.Alerts {
		if a.Key() == key {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return false, nil
	}
	m.state.Alerts = kept
	delete(m.state.NotificationLog, key)
	return true, m.save()
}

// AlertCodes returns the distinct codes that have alerts, sorted.
func (m *Manager) AlertCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var codes []string
	for _, a := range m.state.Alerts {
		if !seen[a.Code] {
			seen[a.Code] = true
			codes = append(codes, a.Code)
		}
	}
	sort.Strings(codes)
	return codes
}

// CheckAlerts returns the alerts crossed by prices. An alert that fired within the
// cooldown is suppressed; a fired alert is stamped with now in the notification log.
func (m *Manager) CheckAlerts(prices map[string]float64, now time.Time) ([]model.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fired []model.PriceAlert
	for _, a := range m.state.Alerts {
		price, ok := prices[a.Code]
		if !ok || price <= 0 {
			continue
		}
		crossed := (a.Condition == model.AlertAbove && price >= a.Price) ||
			(a.Condition == model.AlertBelow && price <= a.Price)
		if !crossed {
			continue
		}
		if last, ok := m.state.NotificationLog[a.Key()]; ok && now.Sub(last) < m.cooldown {
			continue
		}
		m.state.NotificationLog[a.Key()] = now
		fired = append(fired, a)
	}
	if len(fired) == 0 {
		return nil, nil
	}
	zap.L().Info("price alerts fired", zap.Int("count", len(fired)))
	return fired, m.save()
}

func (m *Manager) save() error {
	if err := SaveState(m.filePath, m.state); err != nil {
		zap.L().Error("failed to save portfolio state", zap.String("path", m.filePath), zap.Error(err))
		return err
	}
	return nil
}
