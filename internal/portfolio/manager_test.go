package portfolio

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"KabuSentinel/internal/model"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "portfolio.json")
	m, err := NewManager(path, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, path
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestNewManager_SeedsWatchlist(t *testing.T) {
	m, path := newTestManager(t)
	wl := m.Watchlist()
	if len(wl) != len(DefaultWatchlist) || wl[0].Code != "7203" {
		t.Fatalf("expected default watchlist, got %+v", wl)
	}

	// an emptied watchlist must not be re-seeded on reload
	for _, w := range wl {
		if _, err := m.RemoveWatch(w.Code); err != nil {
			t.Fatal(err)
		}
	}
	reloaded, err := NewManager(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Watchlist(); len(got) != 0 {
		t.Errorf("expected empty watchlist after reload, got %+v", got)
	}
}

func TestAdd_WeightedAverage(t *testing.T) {
	m, path := newTestManager(t)

	if _, err := m.Add("7203", "Toyota Motor", dec(100), dec(1000)); err != nil {
		t.Fatal(err)
	}
	h, err := m.Add("7203", "", dec(100), dec(1100))
	if err != nil {
		t.Fatal(err)
	}
	if !h.Quantity.Equal(dec(200)) || !h.AvgPrice.Equal(dec(1050)) {
		t.Errorf("got qty %s avg %s, want 200 @ 1050", h.Quantity, h.AvgPrice)
	}
	if h.Name != "Toyota Motor" {
		t.Errorf("empty name must not overwrite, got %q", h.Name)
	}

	reloaded, err := NewManager(path, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	hs := reloaded.Holdings()
	if len(hs) != 1 || !hs[0].AvgPrice.Equal(dec(1050)) {
		t.Errorf("holding not persisted: %+v", hs)
	}
}

func TestAdd_Invalid(t *testing.T) {
	m, _ := newTestManager(t)
	cases := []struct{ qty, price decimal.Decimal }{
		{dec(0), dec(100)},
		{dec(10), dec(0)},
		{dec(-1), dec(100)},
	}
	for _, c := range cases {
		if _, err := m.Add("7203", "", c.qty, c.price); !errors.Is(err, ErrInvalidHolding) {
			t.Errorf("Add(%s, %s): expected ErrInvalidHolding, got %v", c.qty, c.price, err)
		}
	}
}

func TestRemove(t *testing.T) {
	m, _ := newTestManager(t)
	m.Add("7203", "", dec(10), dec(1000))
	m.Add("6758", "", dec(5), dec(3000))

	if ok, err := m.Remove("7203"); err != nil || !ok {
		t.Fatalf("Remove: ok=%v err=%v", ok, err)
	}
	if ok, _ := m.Remove("7203"); ok {
		t.Error("second Remove should report false")
	}
	if hs := m.Holdings(); len(hs) != 1 || hs[0].Code != "6758" {
		t.Errorf("unexpected holdings %+v", hs)
	}
}

func TestValuate(t *testing.T) {
	holdings := []model.Holding{
		{Code: "7203", Quantity: dec(100), AvgPrice: dec(1050)},
		{Code: "6758", Quantity: dec(10), AvgPrice: dec(3000)},
	}
	v := Valuate(holdings, map[string]float64{"7203": 1100})

	if len(v.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(v.Rows))
	}
	toyota := v.Rows[0]
	if !toyota.Value.Equal(dec(110000)) || !toyota.Profit.Equal(dec(5000)) {
		t.Errorf("toyota: value %s profit %s", toyota.Value, toyota.Profit)
	}
	if !toyota.ProfitPct.Equal(decimal.RequireFromString("4.76")) {
		t.Errorf("toyota: pct %s, want 4.76", toyota.ProfitPct)
	}

	sony := v.Rows[1]
	if !sony.CurrentPrice.Equal(dec(3000)) || !sony.Profit.IsZero() {
		t.Errorf("missing price should fall back to average cost, got %+v", sony)
	}

	if !v.TotalInvested.Equal(dec(135000)) || !v.TotalValue.Equal(dec(140000)) || !v.TotalProfit.Equal(dec(5000)) {
		t.Errorf("totals: invested %s value %s profit %s", v.TotalInvested, v.TotalValue, v.TotalProfit)
	}
}

func TestValuate_Empty(t *testing.T) {
	v := Valuate(nil, nil)
	if len(v.Rows) != 0 || !v.ProfitPct.IsZero() {
		t.Errorf("expected empty valuation, got %+v", v)
	}
}

func TestWatchlist_AddDuplicate(t *testing.T) {
	m, _ := newTestManager(t)
	if ok, err := m.AddWatch(model.Ticker{Code: "7974", Name: "Nintendo"}); err != nil || !ok {
		t.Fatalf("AddWatch: ok=%v err=%v", ok, err)
	}
	if ok, _ := m.AddWatch(model.Ticker{Code: "7974"}); ok {
		t.Error("duplicate code must not be added")
	}
	if n := len(m.Watchlist()); n != len(DefaultWatchlist)+1 {
		t.Errorf("watchlist size = %d", n)
	}
}

func TestAlerts_Validation(t *testing.T) {
	m, _ := newTestManager(t)
	bad := []model.PriceAlert{
		{Price: 100, Condition: model.AlertAbove},
		{Code: "7203", Condition: model.AlertAbove},
		{Code: "7203", Price: 100, Condition: "sideways"},
	}
	for _, a := range bad {
		if err := m.AddAlert(a); !errors.Is(err, ErrInvalidAlert) {
			t.Errorf("AddAlert(%+v): expected ErrInvalidAlert, got %v", a, err)
		}
	}
}

func TestCheckAlerts_Cooldown(t *testing.T) {
	m, _ := newTestManager(t)
	m.AddAlert(model.PriceAlert{Code: "7203", Price: 3000, Condition: model.AlertAbove})
	m.AddAlert(model.PriceAlert{Code: "6758", Price: 2500, Condition: model.AlertBelow})

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fired, err := m.CheckAlerts(map[string]float64{"7203": 3000, "6758": 2600}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(fired) != 1 || fired[0].Code != "7203" {
		t.Fatalf("expected only 7203 to fire, got %+v", fired)
	}

	// still above within the cooldown: silent
	fired, _ = m.CheckAlerts(map[string]float64{"7203": 3100}, now.Add(30*time.Minute))
	if len(fired) != 0 {
		t.Errorf("alert fired again inside cooldown: %+v", fired)
	}

	fired, _ = m.CheckAlerts(map[string]float64{"7203": 3100, "6758": 2400}, now.Add(2*time.Hour))
	if len(fired) != 2 {
		t.Errorf("expected both alerts after cooldown, got %+v", fired)
	}
}

func TestRemoveAlert(t *testing.T) {
	m, _ := newTestManager(t)
	m.AddAlert(model.PriceAlert{Code: "7203", Price: 3000, Condition: model.AlertAbove})
	m.AddAlert(model.PriceAlert{Code: "7203", Price: 2000, Condition: model.AlertBelow})

	if codes := m.AlertCodes(); len(codes) != 1 || codes[0] != "7203" {
		t.Errorf("AlertCodes = %v", codes)
	}
	if ok, err := m.RemoveAlert("7203", model.AlertAbove); err != nil || !ok {
		t.Fatalf("RemoveAlert: ok=%v err=%v", ok, err)
	}
	as := m.Alerts()
	if len(as) != 1 || as[0].Condition != model.AlertBelow {
		t.Errorf("unexpected alerts %+v", as)
	}
}
