// Package notification fans trading events out to the configured providers.
// Delivery is fire-and-forget: a failing provider never blocks trading.
package notification

import (
	"fmt"
	"time"

	"cryptopump-bot/internal/strategy"
	"cryptopump-bot/internal/trading"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal     NotificationType = "signal"
	NotifyTradeOpen  NotificationType = "trade_open"
	NotifyTradeClose NotificationType = "trade_close"
	NotifySummary    NotificationType = "summary"
	NotifyError      NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Price      float64
	PnL        float64
	PnLPercent float64
	Timestamp  time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendPumpSignal reports a detected pump
func (m *Manager) SendPumpSignal(sig *strategy.PumpSignal) error {
	return m.Send(&Notification{
		Type:  NotifySignal,
		Title: fmt.Sprintf("🚀 Pump Detected: %s", sig.Symbol),
		Message: fmt.Sprintf("+%.2f%% in %dm on %.1fx volume\nPrice: %.8f\nQuality: %.0f/100",
			sig.PriceChangePercent, sig.TimeWindowSeconds/60, sig.VolumeMultiplier,
			sig.CurrentPrice, sig.QualityScore),
		Symbol:    sig.Symbol,
		Price:     sig.CurrentPrice,
		Timestamp: time.Now(),
	})
}

// SendMoverSignal reports a top-mover analysis that qualified for trading
func (m *Manager) SendMoverSignal(a *strategy.MoverAnalysis) error {
	return m.Send(&Notification{
		Type:  NotifySignal,
		Title: fmt.Sprintf("📊 Top Mover: %s (%s)", a.Symbol, a.FinalSignal),
		Message: fmt.Sprintf("Move: %+.2f%%\nTechnical: %.0f | Model: %.0f | Final: %.0f\nVolatility: %.3f | Volume ratio: %.2f",
			a.PriceChangePercent, a.TechnicalScore, a.ModelScore, a.FinalScore,
			a.Volatility, a.VolumeRatio),
		Symbol:    a.Symbol,
		Price:     a.CurrentPrice,
		Timestamp: time.Now(),
	})
}

// SendTradeOpen sends a trade opened notification
func (m *Manager) SendTradeOpen(symbol, side string, price, quantity float64) error {
	return m.Send(&Notification{
		Type:      NotifyTradeOpen,
		Title:     fmt.Sprintf("📈 Trade Opened: %s", symbol),
		Message:   fmt.Sprintf("%s %s\nPrice: %.8f\nQuantity: %.8f", side, symbol, price, quantity),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// SendTradeClose sends a trade closed notification
func (m *Manager) SendTradeClose(symbol string, entryPrice, exitPrice, pnl, pnlPercent float64, reason string) error {
	emoji := "✅"
	if pnl < 0 {
		emoji = "❌"
	}

	return m.Send(&Notification{
		Type:       NotifyTradeClose,
		Title:      fmt.Sprintf("%s Trade Closed: %s", emoji, symbol),
		Message:    fmt.Sprintf("Entry: %.8f → Exit: %.8f\nP&L: %.4f (%.2f%%)\nReason: %s", entryPrice, exitPrice, pnl, pnlPercent, reason),
		Symbol:     symbol,
		Price:      exitPrice,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		Timestamp:  time.Now(),
	})
}

// SendDailySummary reports the day's performance rollup
func (m *Manager) SendDailySummary(p trading.DailyProgress) error {
	emoji := "📉"
	if p.DailyPnL >= 0 {
		emoji = "💰"
	}

	return m.Send(&Notification{
		Type:  NotifySummary,
		Title: fmt.Sprintf("%s Daily Summary", emoji),
		Message: fmt.Sprintf("Balance: %.2f\nP&L: %+.2f (%.1f%% of target)\nTrades: %d (W %d / L %d)",
			p.CurrentBalance, p.DailyPnL, p.ProgressPct, p.TradesToday, p.WinsToday, p.LossesToday),
		PnL:       p.DailyPnL,
		Timestamp: time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}
