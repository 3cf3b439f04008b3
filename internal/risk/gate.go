// Package risk implements trade admission control and position sizing.
// Every candidate signal passes through the Gate before any capital is
// committed: concurrency cap, cooldown after consecutive losses, and the
// daily loss cap tracked by the balance layer.
package risk

import (
	"context"
	"fmt"
	"time"

	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/strategy"
)

// cooldownWindow bounds how far back the consecutive-loss scan looks.
const cooldownWindow = 24 * time.Hour

// Consecutive-loss thresholds. Top movers are throttled harder after
// losses than pumps.
const (
	pumpLossThreshold  = 3
	moverLossThreshold = 2
)

// ClosedTrade is the slice of trade history the gate needs for cooldown
// decisions.
type ClosedTrade struct {
	Strategy strategy.Kind
	PnL      float64
	ClosedAt time.Time
}

// TradeHistory provides the trade counts and recent closes the gate
// consults. Implemented by the database repository.
type TradeHistory interface {
	OpenTradeCount(ctx context.Context) (int, error)
	// ClosedTradesSince returns trades closed at or after since, in
	// chronological close order.
	ClosedTradesSince(ctx context.Context, since time.Time) ([]ClosedTrade, error)
}

// DailyGuard reports whether the daily loss cap has been breached.
// Implemented by the balance tracker.
type DailyGuard interface {
	DailyLossExceeded() bool
}

// GateConfig holds the admission limits.
type GateConfig struct {
	MaxConcurrentTrades int
	MinPumpQuality      float64 // default 70
	MaxPumpChange       float64 // default 15, moves beyond this are too extreme to chase
}

// Gate is the shared admission policy for both strategies.
type Gate struct {
	cfg     GateConfig
	history TradeHistory
	guard   DailyGuard
	log     *logging.Logger

	now func() time.Time
}

// NewGate wires the gate to trade history and the daily-loss guard.
func NewGate(cfg GateConfig, history TradeHistory, guard DailyGuard) *Gate {
	if cfg.MinPumpQuality == 0 {
		cfg.MinPumpQuality = 70
	}
	if cfg.MaxPumpChange == 0 {
		cfg.MaxPumpChange = 15
	}
	return &Gate{
		cfg:     cfg,
		history: history,
		guard:   guard,
		log:     logging.WithComponent("risk_gate"),
		now:     time.Now,
	}
}

// AdmitPump decides whether a pump signal may be traded. The returned
// reason is empty on admission.
func (g *Gate) AdmitPump(ctx context.Context, sig *strategy.PumpSignal) (bool, string) {
	if sig.QualityScore < g.cfg.MinPumpQuality {
		return false, fmt.Sprintf("quality %.1f below %.1f", sig.QualityScore, g.cfg.MinPumpQuality)
	}
	if sig.PriceChangePercent > g.cfg.MaxPumpChange {
		return false, fmt.Sprintf("move %.1f%% beyond %.1f%% cap", sig.PriceChangePercent, g.cfg.MaxPumpChange)
	}
	return g.admit(ctx, strategy.KindPump)
}

// AdmitMover decides whether a mover candidate may be traded. Score and
// agreement thresholds are the scorer's responsibility; the gate applies
// the shared limits.
func (g *Gate) AdmitMover(ctx context.Context) (bool, string) {
	return g.admit(ctx, strategy.KindTopMover)
}

func (g *Gate) admit(ctx context.Context, kind strategy.Kind) (bool, string) {
	if g.guard != nil && g.guard.DailyLossExceeded() {
		return false, "daily loss cap reached"
	}

	open, err := g.history.OpenTradeCount(ctx)
	if err != nil {
		g.log.WithError(err).Error("failed to count open trades")
		return false, "trade history unavailable"
	}
	if open >= g.cfg.MaxConcurrentTrades {
		return false, fmt.Sprintf("max concurrent trades reached (%d/%d)", open, g.cfg.MaxConcurrentTrades)
	}

	cooling, err := g.inCooldown(ctx, kind)
	if err != nil {
		g.log.WithError(err).Error("failed to evaluate cooldown")
		return false, "trade history unavailable"
	}
	if cooling {
		return false, fmt.Sprintf("%s strategy in cooldown after consecutive losses", kind)
	}
	return true, ""
}

// inCooldown scans the strategy's trades closed in the last 24 hours in
// chronological order. The consecutive-loss counter increments on a losing
// close and resets on any non-losing close; reaching the strategy's
// threshold at any point activates cooldown.
func (g *Gate) inCooldown(ctx context.Context, kind strategy.Kind) (bool, error) {
	trades, err := g.history.ClosedTradesSince(ctx, g.now().Add(-cooldownWindow))
	if err != nil {
		return false, err
	}

	threshold := pumpLossThreshold
	if kind == strategy.KindTopMover {
		threshold = moverLossThreshold
	}

	consecutive := 0
	for _, t := range trades {
		if t.Strategy != kind {
			continue
		}
		if t.PnL < 0 {
			consecutive++
			if consecutive >= threshold {
				return true, nil
			}
		} else {
			consecutive = 0
		}
	}
	return false, nil
}
