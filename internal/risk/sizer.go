package risk

import (
	"math"

	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/strategy"
)

// balanceSafetyMargin caps a computed size that would exceed the free
// balance at 95% of it.
const balanceSafetyMargin = 0.95

// SizerConfig holds the base capital allocation per trade.
type SizerConfig struct {
	CapitalPercentage float64 // fraction of free balance committed per trade
}

// PositionSizer converts a qualifying signal and the free quote balance
// into a position size in quote units. A zero or negative result means
// "do not trade" and is not an error.
type PositionSizer struct {
	cfg SizerConfig
}

// NewPositionSizer creates a sizer.
func NewPositionSizer(cfg SizerConfig) *PositionSizer {
	return &PositionSizer{cfg: cfg}
}

// SizePump scales the base allocation by signal quality and detection
// speed. Faster windows size larger, floored at half the base allocation.
func (p *PositionSizer) SizePump(sig *strategy.PumpSignal, freeBalance float64) float64 {
	if freeBalance <= 0 {
		return 0
	}
	speedFactor := math.Max(0.5, 1-sig.WindowMinutes()/10)
	amount := freeBalance * p.cfg.CapitalPercentage * (sig.QualityScore / 100) * speedFactor
	return p.clamp(amount, freeBalance)
}

// SizeMover scales the base allocation by final score and volatility.
// Shorts are sized at 80% of the equivalent long.
func (p *PositionSizer) SizeMover(a *strategy.MoverAnalysis, freeBalance float64) float64 {
	if freeBalance <= 0 {
		return 0
	}
	volFactor := math.Max(0.5, 1-a.Volatility)
	sideFactor := 1.0
	if a.FinalSignal == market.DirectionShort {
		sideFactor = 0.8
	}
	amount := freeBalance * p.cfg.CapitalPercentage * (a.FinalScore / 100) * volFactor * sideFactor
	return p.clamp(amount, freeBalance)
}

func (p *PositionSizer) clamp(amount, freeBalance float64) float64 {
	if amount > freeBalance {
		return freeBalance * balanceSafetyMargin
	}
	return amount
}
