// Package strategy contains the two signal generators: the short-window pump
// detector and the medium-window top-mover scorer. Both produce immutable
// signal records that are persisted best-effort and handed to the risk gate
// for admission.
package strategy

import (
	"context"
	"time"

	"cryptopump-bot/internal/market"
)

// Kind identifies which strategy produced a signal or trade.
type Kind string

const (
	KindPump     Kind = "pump"
	KindTopMover Kind = "top_mover"
)

// PumpSignal is a detected short-window spike. Read-only after creation.
type PumpSignal struct {
	ID                 int64            `json:"id,omitempty"`
	Symbol             string           `json:"symbol"`
	DetectedAt         time.Time        `json:"detected_at"`
	PriceChangePercent float64          `json:"price_change_percent"`
	VolumeMultiplier   float64          `json:"volume_multiplier"`
	TimeWindowSeconds  int              `json:"time_window_seconds"`
	CurrentPrice       float64          `json:"current_price"`
	QualityScore       float64          `json:"quality_score"`
	Direction          market.Direction `json:"direction"`
}

// WindowMinutes returns the detection window in minutes.
func (s *PumpSignal) WindowMinutes() float64 {
	return float64(s.TimeWindowSeconds) / 60.0
}

// MoverAnalysis is a scored medium-window mover. Read-only after creation.
type MoverAnalysis struct {
	ID                 int64            `json:"id,omitempty"`
	Symbol             string           `json:"symbol"`
	DetectedAt         time.Time        `json:"detected_at"`
	PriceChangePercent float64          `json:"price_change_percent"`
	TechnicalScore     float64          `json:"technical_score"`
	ModelScore         float64          `json:"model_score"`
	FinalScore         float64          `json:"final_score"`
	TechnicalSignal    market.Direction `json:"technical_signal"`
	ModelSignal        market.Direction `json:"model_signal"`
	FinalSignal        market.Direction `json:"final_signal"`
	Volatility         float64          `json:"volatility"`
	VolumeRatio        float64          `json:"volume_ratio"`
	CurrentPrice       float64          `json:"current_price"`
}

// SignalStore persists detected signals. Saves are best-effort: callers log
// failures and keep the in-memory result.
type SignalStore interface {
	SavePumpSignal(ctx context.Context, signal *PumpSignal) error
	SaveMoverAnalysis(ctx context.Context, analysis *MoverAnalysis) error
}

// PredictiveModel scores a candle window. Implementations must be pure
// functions of the window with no side effects visible to callers.
type PredictiveModel interface {
	Score(candles []market.Candle) (score float64, direction market.Direction)
}
