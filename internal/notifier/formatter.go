package notifier

import (
	"fmt"
	"strings"
	"time"

	"KabuSentinel/internal/model"
	"KabuSentinel/internal/recorder"
)

// Backtest evaluation labels.
const (
	EvalGood      = "✅ good"
	EvalNeedsWork = "⚠️ needs work"
	EvalLoss      = "❌ loss"

	goodWinRate = 60.0
)

func na(v float64, format string) string {
	if model.IsNA(v) {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

func displayName(code, name string) string {
	if name == "" || name == code {
		return code
	}
	return fmt.Sprintf("%s %s", code, name)
}

// FormatAnalysis formats a single-ticker analysis report.
func FormatAnalysis(a *model.Analysis) string {
	var b strings.Builder
	sig := a.Signal

	fmt.Fprintf(&b, "📊 %s | %s\n\n", displayName(a.Code, a.Name), time.Now().Format("2006-01-02"))

	if sig.Insufficient() {
		b.WriteString("Not enough price history for a trade plan.\n")
	} else {
		fmt.Fprintf(&b, "Price: %.1f\n", sig.Price)
		fmt.Fprintf(&b, "Trend: %s (%+d)\n", sig.Trend.Label(), sig.TrendScore)
		if a.WeeklySignal != nil && !a.WeeklySignal.Insufficient() {
			fmt.Fprintf(&b, "Weekly: %s\n", a.WeeklySignal.Trend.Label())
		}
		if a.Frame != nil && a.Frame.Len() > 0 {
			fmt.Fprintf(&b, "RSI: %s\n", na(a.Frame.Last().RSI, "%.1f"))
		}

		b.WriteString("\n🎯 Plan\n")
		fmt.Fprintf(&b, "  Support: %.1f\n", sig.SupportLevel)
		fmt.Fprintf(&b, "  Entry:   %.0f\n", sig.EntryPrice)
		fmt.Fprintf(&b, "  Target:  %.1f\n", sig.TargetPrice)
		fmt.Fprintf(&b, "  Stop:    %.1f (%s)\n", sig.StopLoss, sig.StopLossSource)
		fmt.Fprintf(&b, "  R/R:     %.2f\n", sig.RiskRewardRatio)
		if sig.IsHighRisk {
			b.WriteString("  ⚠️ volatility exceeds the stop-loss limit\n")
		}
		if sig.VolumeSpike {
			fmt.Fprintf(&b, "  🔥 volume spike x%.1f\n", sig.VolumeRatio)
		}
	}

	if rs := a.Relative; rs != nil {
		fmt.Fprintf(&b, "\nvs market: %s (%+.2f%%)\n", rs.Status, rs.Diff)
	}
	if m := a.Metrics; m != nil {
		fmt.Fprintf(&b, "52w position: %.0f%% | ATR %.1f%% | MACD %s\n", m.Position52w, m.ATRPct, m.MACDCross)
	}
	if len(a.Patterns) > 0 {
		names := make([]string, len(a.Patterns))
		for i, p := range a.Patterns {
			names[i] = p.Name
		}
		fmt.Fprintf(&b, "Patterns: %s\n", strings.Join(names, ", "))
	}
	if a.CreditNote != "" {
		fmt.Fprintf(&b, "Credit: %s\n", a.CreditNote)
	}
	if a.Backtest != nil {
		fmt.Fprintf(&b, "Backtest %dd: %d trades, win %.0f%%, return %+.2f%%\n",
			a.Backtest.WindowDays, a.Backtest.TotalTrades, a.Backtest.WinRate, a.Backtest.TotalReturnPct)
	}
	return b.String()
}

// FormatStoredAnalysis renders the last recorded analysis, used when a fresh one is unavailable.
func FormatStoredAnalysis(r *recorder.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s | last recorded %s\n", displayName(r.Code, r.Name), r.Timestamp.Format("2006-01-02 15:04"))
	b.WriteString("⚠️ live data unavailable, showing the stored analysis\n\n")
	fmt.Fprintf(&b, "Price: %.1f\n", r.Price)
	fmt.Fprintf(&b, "Trend: %s (%+d)\n", r.Trend.Label(), r.TrendScore)
	fmt.Fprintf(&b, "RSI: %s\n", na(r.RSI, "%.1f"))
	b.WriteString("\n🎯 Plan\n")
	fmt.Fprintf(&b, "  Support: %.1f\n", r.SupportLevel)
	fmt.Fprintf(&b, "  Entry:   %.0f\n", r.EntryPrice)
	fmt.Fprintf(&b, "  Target:  %.1f\n", r.TargetPrice)
	fmt.Fprintf(&b, "  Stop:    %.1f (%s)\n", r.StopLoss, r.StopLossSource)
	fmt.Fprintf(&b, "  R/R:     %.2f\n", r.RiskReward)
	if r.IsHighRisk {
		b.WriteString("  ⚠️ volatility exceeds the stop-loss limit\n")
	}
	return b.String()
}

// Evaluate grades a backtest: good needs a win rate above 60% and a positive return.
func Evaluate(s *model.BacktestSummary) string {
	switch {
	case s.WinRate > goodWinRate && s.TotalReturnPct > 0:
		return EvalGood
	case s.TotalReturnPct > 0:
		return EvalNeedsWork
	default:
		return EvalLoss
	}
}

// FormatBacktest formats a backtest summary as markdown.
func FormatBacktest(code string, s *model.BacktestSummary) string {
	if s == nil || s.TotalTrades == 0 {
		days := 0
		if s != nil {
			days = s.WindowDays
		}
		return fmt.Sprintf("📊 %s: no trade signals in the last %d days.", code, days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 📊 Backtest %s (last %d days)\n\n", code, s.WindowDays)
	b.WriteString("**Trades**\n")
	fmt.Fprintf(&b, "- Total: %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "- Winners: %d\n", s.WinningTrades)
	fmt.Fprintf(&b, "- Losers: %d\n\n", s.LosingTrades)
	b.WriteString("**Performance**\n")
	fmt.Fprintf(&b, "- Win rate: %.1f%%\n", s.WinRate)
	fmt.Fprintf(&b, "- Avg profit: %.2f%%\n", s.AvgProfitPct)
	fmt.Fprintf(&b, "- Avg loss: %.2f%%\n", s.AvgLossPct)
	fmt.Fprintf(&b, "- Total return: %.2f%%", s.TotalReturnPct)
	if s.Compounded {
		b.WriteString(" (compounded)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Max drawdown: %.2f%%\n\n", s.MaxDrawdownPct)
	fmt.Fprintf(&b, "**Evaluation**: %s", Evaluate(s))
	return b.String()
}

// FormatScan formats the top scan hits, at most limit rows (0 means all).
func FormatScan(results []model.ScanResult, limit int) string {
	if len(results) == 0 {
		return "🔍 Market scan: no signals today."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Market scan | %s\n\n", time.Now().Format("2006-01-02"))
	for i, r := range results {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "…and %d more\n", len(results)-limit)
			break
		}
		fmt.Fprintf(&b, "%d. %s %.1f (%+.2f%%) score %+d [%s]\n",
			i+1, displayName(r.Code, r.Name), r.Price, r.ChangePct, r.Score, r.Recommendation)
		if len(r.Signals) > 0 {
			fmt.Fprintf(&b, "   %s\n", strings.Join(r.Signals, ", "))
		}
	}
	return b.String()
}

// FormatPortfolio formats a valued portfolio.
func FormatPortfolio(v model.PortfolioValuation) string {
	if len(v.Rows) == 0 {
		return "💼 Portfolio is empty."
	}
	var b strings.Builder
	b.WriteString("💼 Portfolio\n\n")
	for _, r := range v.Rows {
		fmt.Fprintf(&b, "%s x%s @ %s → %s (%s%%)\n",
			displayName(r.Code, r.Name), r.Quantity.String(), r.AvgPrice.StringFixed(1),
			r.CurrentPrice.StringFixed(1), r.ProfitPct.StringFixed(2))
	}
	b.WriteString("─────────────────\n")
	fmt.Fprintf(&b, "Invested: ¥%s\n", v.TotalInvested.StringFixed(0))
	fmt.Fprintf(&b, "Value:    ¥%s\n", v.TotalValue.StringFixed(0))
	fmt.Fprintf(&b, "P/L:      ¥%s (%s%%)\n", v.TotalProfit.StringFixed(0), v.ProfitPct.StringFixed(2))
	return b.String()
}

// FormatWatchlist lists the watched tickers.
func FormatWatchlist(tickers []model.Ticker) string {
	if len(tickers) == 0 {
		return "👀 Watchlist is empty."
	}
	var b strings.Builder
	b.WriteString("👀 Watchlist\n")
	for _, t := range tickers {
		fmt.Fprintf(&b, "- %s\n", displayName(t.Code, t.Name))
	}
	return b.String()
}

// FormatAlert formats a fired price alert.
func FormatAlert(a model.PriceAlert, price float64) string {
	dir := "rose above"
	if a.Condition == model.AlertBelow {
		dir = "fell below"
	}
	return fmt.Sprintf("🔔 %s %s %.1f (now %.1f)", displayName(a.Code, a.Name), dir, a.Price, price)
}
