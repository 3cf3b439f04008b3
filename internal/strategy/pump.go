package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"cryptopump-bot/internal/cache"
	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/market"
)

// dedupTTL is how long a fired (symbol, minute) key suppresses repeats.
const dedupTTL = time.Hour

// pumpMinBars is the minimum window below which detection returns nothing.
const pumpMinBars = 30

// PumpConfig holds the spike detection thresholds.
type PumpConfig struct {
	ThresholdPercent float64       // minimum price change over the window
	TimeWindow       time.Duration // detection window, default 300s
	VolumeMultiplier float64       // minimum last-bar volume vs window mean
}

// PumpDetector flags symbols whose price spiked upward on elevated volume.
// Each occurrence fires at most once per symbol per minute bucket.
type PumpDetector struct {
	cfg   PumpConfig
	dedup *cache.TTLSet
	store SignalStore
	log   *logging.Logger

	now func() time.Time
}

// NewPumpDetector creates a detector. store may be nil for dry runs.
func NewPumpDetector(cfg PumpConfig, store SignalStore) *PumpDetector {
	return &PumpDetector{
		cfg:   cfg,
		dedup: cache.NewTTLSet(dedupTTL),
		store: store,
		log:   logging.WithComponent("pump_detector"),
		now:   time.Now,
	}
}

// Detect returns a signal when the window shows a qualifying spike, nil
// otherwise. Returns nil on short windows and on duplicate detections within
// the dedup TTL.
func (d *PumpDetector) Detect(ctx context.Context, symbol string, candles []market.Candle) *PumpSignal {
	if len(candles) < pumpMinBars {
		return nil
	}

	window := market.Tail(candles, market.WindowBars(d.cfg.TimeWindow))
	change := indicators.PriceChangePercent(window)
	volMult := indicators.VolumeMultiplier(window)

	if change < d.cfg.ThresholdPercent || volMult < d.cfg.VolumeMultiplier || change <= 0 {
		return nil
	}

	detectedAt := d.now()
	key := fmt.Sprintf("%s:%s", symbol, detectedAt.UTC().Format("2006-01-02T15:04"))
	d.dedup.Sweep()
	if !d.dedup.Add(key) {
		return nil
	}

	signal := &PumpSignal{
		Symbol:             symbol,
		DetectedAt:         detectedAt,
		PriceChangePercent: change,
		VolumeMultiplier:   volMult,
		TimeWindowSeconds:  int(d.cfg.TimeWindow.Seconds()),
		CurrentPrice:       market.LastClose(candles),
		QualityScore:       qualityScore(change, volMult, d.cfg.TimeWindow),
		Direction:          market.DirectionLong,
	}

	if d.store != nil {
		if err := d.store.SavePumpSignal(ctx, signal); err != nil {
			d.log.WithError(err).WithField("symbol", symbol).Warn("failed to persist pump signal")
		}
	}

	d.log.WithFields(map[string]interface{}{
		"symbol":  symbol,
		"change":  change,
		"volume":  volMult,
		"quality": signal.QualityScore,
	}).Info("pump detected")

	return signal
}

// qualityScore rewards larger moves, stronger volume confirmation and
// shorter windows, clipped to [0, 100].
func qualityScore(changePercent, volumeMultiplier float64, window time.Duration) float64 {
	windowMinutes := window.Minutes()
	score := math.Min(50, changePercent*5) +
		math.Min(30, volumeMultiplier*10) +
		math.Max(0, 20-windowMinutes*2)
	return math.Max(0, math.Min(100, score))
}
