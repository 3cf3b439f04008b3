package strategy

import (
	"context"
	"math"
	"sort"
	"time"

	"cryptopump-bot/internal/cache"
	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/market"
)

const (
	moverMinBars   = 50
	moverMaxOutput = 10

	// recencyTTL is how long a scored symbol is skipped in later scans.
	recencyTTL = 30 * time.Minute

	// candleFetchLimit covers the mover window plus the slow indicator
	// lookbacks with room to spare.
	candleFetchLimit = 100
)

// MoverConfig holds the sustained-move detection thresholds.
type MoverConfig struct {
	ThresholdPercent float64       // minimum absolute move over the window
	TimeWindow       time.Duration // analysis window, default 1800s

	// Admission thresholds for ShouldTrade.
	MinFinalScore  float64 // default 75
	MaxVolatility  float64 // default 0.3
	MinVolumeRatio float64 // default 1.5
}

// TopMoverScorer finds symbols with a sustained directional move, filters
// out illiquid or manipulated feeds, and fuses technical and model scores
// into a single ranked decision per symbol.
type TopMoverScorer struct {
	cfg      MoverConfig
	analyzer *indicators.Analyzer
	model    PredictiveModel
	gateway  market.Gateway
	recent   *cache.TTLSet
	store    SignalStore
	log      *logging.Logger

	now func() time.Time
}

// NewTopMoverScorer wires the scorer to its collaborators. store may be nil.
func NewTopMoverScorer(cfg MoverConfig, analyzer *indicators.Analyzer, model PredictiveModel, gateway market.Gateway, store SignalStore) *TopMoverScorer {
	if cfg.MinFinalScore == 0 {
		cfg.MinFinalScore = 75
	}
	if cfg.MaxVolatility == 0 {
		cfg.MaxVolatility = 0.3
	}
	if cfg.MinVolumeRatio == 0 {
		cfg.MinVolumeRatio = 1.5
	}
	return &TopMoverScorer{
		cfg:      cfg,
		analyzer: analyzer,
		model:    model,
		gateway:  gateway,
		recent:   cache.NewTTLSet(recencyTTL),
		store:    store,
		log:      logging.WithComponent("top_movers"),
		now:      time.Now,
	}
}

// Scan scores every symbol not analyzed recently and returns the top
// analyses sorted by final score descending, at most 10. Per-symbol fetch
// or data failures are logged and skipped.
func (s *TopMoverScorer) Scan(ctx context.Context, symbols []string) []MoverAnalysis {
	s.recent.Sweep()

	results := make([]MoverAnalysis, 0, len(symbols))
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		if s.recent.Contains(symbol) {
			continue
		}

		candles, err := s.gateway.GetCandles(ctx, symbol, market.Interval, candleFetchLimit)
		if err != nil {
			s.log.WithError(err).WithField("symbol", symbol).Debug("candle fetch failed, skipping")
			continue
		}
		analysis := s.analyze(symbol, candles)
		if analysis == nil {
			continue
		}
		s.recent.Add(symbol)

		if s.store != nil {
			if err := s.store.SaveMoverAnalysis(ctx, analysis); err != nil {
				s.log.WithError(err).WithField("symbol", symbol).Warn("failed to persist mover analysis")
			}
		}
		results = append(results, *analysis)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	if len(results) > moverMaxOutput {
		results = results[:moverMaxOutput]
	}
	return results
}

// analyze scores a single symbol, returning nil when the symbol does not
// qualify for any reason.
func (s *TopMoverScorer) analyze(symbol string, candles []market.Candle) *MoverAnalysis {
	if len(candles) < moverMinBars {
		return nil
	}

	window := market.Tail(candles, market.WindowBars(s.cfg.TimeWindow))
	change := indicators.PriceChangePercent(window)
	if math.Abs(change) < s.cfg.ThresholdPercent {
		return nil
	}
	if !s.isValidSymbol(symbol, window) {
		return nil
	}

	techScore := s.analyzer.TechnicalScore(candles)
	techSignal := indicators.DirectionForScore(techScore)
	modelScore, modelSignal := s.model.Score(candles)

	finalScore, finalSignal := fuseScores(techScore, modelScore, techSignal, modelSignal)

	return &MoverAnalysis{
		Symbol:             symbol,
		DetectedAt:         s.now(),
		PriceChangePercent: change,
		TechnicalScore:     techScore,
		ModelScore:         modelScore,
		FinalScore:         finalScore,
		TechnicalSignal:    techSignal,
		ModelSignal:        modelSignal,
		FinalSignal:        finalSignal,
		Volatility:         indicators.Volatility(window),
		VolumeRatio:        indicators.VolumeRatio(candles, 20),
		CurrentPrice:       market.LastClose(candles),
	}
}

// fuseScores combines the technical and model scores 60/40. When both
// signals agree on a non-neutral direction, the agreed direction wins over
// the score-derived one.
func fuseScores(techScore, modelScore float64, techSignal, modelSignal market.Direction) (float64, market.Direction) {
	finalScore := techScore*0.6 + modelScore*0.4
	if techSignal == modelSignal && techSignal != market.DirectionNeutral {
		return finalScore, techSignal
	}
	return finalScore, indicators.DirectionForScore(finalScore)
}

// isValidSymbol rejects illiquid, erratic, or manipulation-like feeds.
func (s *TopMoverScorer) isValidSymbol(symbol string, window []market.Candle) bool {
	if len(window) == 0 {
		return false
	}

	totalVolume := 0.0
	for _, c := range window {
		totalVolume += c.Volume
	}
	if totalVolume/float64(len(window)) < 10000 {
		s.log.WithField("symbol", symbol).Debug("rejected: low average volume")
		return false
	}

	returns := indicators.Returns(window)
	if indicators.StdDev(returns) > 0.5 {
		s.log.WithField("symbol", symbol).Debug("rejected: erratic returns")
		return false
	}
	for _, r := range returns {
		if math.Abs(r) > 0.3 {
			s.log.WithField("symbol", symbol).Debug("rejected: extreme single-bar move")
			return false
		}
	}

	return !s.looksSuspicious(symbol, window, returns)
}

// looksSuspicious flags stale feeds, manipulation-like bar patterns and
// irregular volume.
func (s *TopMoverScorer) looksSuspicious(symbol string, window []market.Candle, returns []float64) bool {
	unique := make(map[float64]struct{}, len(window))
	for _, c := range window {
		unique[c.Close] = struct{}{}
	}
	if float64(len(unique)) < float64(len(window))*0.3 {
		s.log.WithField("symbol", symbol).Debug("rejected: stale price feed")
		return true
	}

	bigMoves := 0
	for _, r := range returns {
		if math.Abs(r) > 0.1 {
			bigMoves++
		}
	}
	if len(returns) > 0 && float64(bigMoves) > float64(len(returns))*0.2 {
		s.log.WithField("symbol", symbol).Debug("rejected: manipulation-like bars")
		return true
	}

	volumeChanges := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Volume
		if prev == 0 {
			continue
		}
		volumeChanges = append(volumeChanges, (window[i].Volume-prev)/prev)
	}
	if indicators.StdDev(volumeChanges) > 2 {
		s.log.WithField("symbol", symbol).Debug("rejected: irregular volume")
		return true
	}
	return false
}

// ShouldTrade applies the strict mover admission rule: high final score,
// strict signal agreement, bounded volatility and confirmed volume. The
// risk gate's concurrency and cooldown checks apply on top of this.
func (s *TopMoverScorer) ShouldTrade(a *MoverAnalysis) bool {
	if a.FinalScore < s.cfg.MinFinalScore {
		return false
	}
	if a.TechnicalSignal != a.ModelSignal || a.TechnicalSignal == market.DirectionNeutral {
		return false
	}
	if a.Volatility > s.cfg.MaxVolatility {
		return false
	}
	return a.VolumeRatio >= s.cfg.MinVolumeRatio
}
