// Package ml implements the predictive model consulted by the top-mover
// scorer. It is a deterministic feature-based scorer: momentum, mean
// reversion, volume and trend sub-signals are combined by configurable
// weights into a 0-100 score and a direction. Scoring is a pure function of
// the candle window.
package ml

import (
	"math"

	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/market"
)

// features holds the inputs to the sub-signal calculations.
type features struct {
	Returns           []float64
	PriceVelocity     float64 // average of the last 5 returns, percent
	PriceAcceleration float64 // change in velocity between the last two 5-bar windows
	RSI               float64
	MACDHistogram     float64
	BollingerPosition float64 // -1..1 around the middle band
	VolumeRatio       float64
	BuyPressure       float64 // close position within the last bar's range
	VolumeAccel       float64
	TrendStrength     float64 // EMA20 vs EMA50 divergence, percent
	TrendConsistency  float64 // -1..1 share of bullish bars in the last 10
}

// Config holds the sub-signal weights.
type Config struct {
	MomentumWeight      float64
	MeanReversionWeight float64
	VolumeWeight        float64
	TrendWeight         float64
}

// DefaultConfig returns the standard weighting.
func DefaultConfig() Config {
	return Config{
		MomentumWeight:      0.3,
		MeanReversionWeight: 0.2,
		VolumeWeight:        0.25,
		TrendWeight:         0.25,
	}
}

// Predictor scores candle windows. Safe for concurrent use.
type Predictor struct {
	cfg Config
}

// NewPredictor creates a predictor with the given weights. Zero weights fall
// back to the defaults.
func NewPredictor(cfg Config) *Predictor {
	if cfg.MomentumWeight == 0 && cfg.MeanReversionWeight == 0 &&
		cfg.VolumeWeight == 0 && cfg.TrendWeight == 0 {
		cfg = DefaultConfig()
	}
	return &Predictor{cfg: cfg}
}

// minBars is the window below which Score returns the neutral default.
const minBars = 50

// Score rates the window 0-100 with a direction. Windows shorter than 50
// bars score the neutral 50.
func (p *Predictor) Score(candles []market.Candle) (float64, market.Direction) {
	if len(candles) < minBars {
		return 50.0, market.DirectionNeutral
	}

	f := extractFeatures(candles)

	combined := p.momentumSignal(f)*p.cfg.MomentumWeight +
		p.meanReversionSignal(f)*p.cfg.MeanReversionWeight +
		p.volumeSignal(f)*p.cfg.VolumeWeight +
		p.trendSignal(f)*p.cfg.TrendWeight

	score := clamp(50+combined*50, 0, 100)
	return score, indicators.DirectionForScore(score)
}

func extractFeatures(candles []market.Candle) *features {
	f := &features{}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev*100)
	}
	f.Returns = returns

	if len(returns) >= 5 {
		sum := 0.0
		for i := len(returns) - 5; i < len(returns); i++ {
			sum += returns[i]
		}
		f.PriceVelocity = sum / 5
	}

	if len(returns) >= 10 {
		recent, prev := 0.0, 0.0
		for i := len(returns) - 5; i < len(returns); i++ {
			recent += returns[i]
		}
		for i := len(returns) - 10; i < len(returns)-5; i++ {
			prev += returns[i]
		}
		f.PriceAcceleration = (recent - prev) / 5
	}

	f.RSI = indicators.RSI(candles, 14)

	macd := indicators.MACD(candles, 12, 26, 9)
	f.MACDHistogram = macd.Histogram

	bb := indicators.Bollinger(candles, 20, 2.0)
	if bb.Upper > bb.Middle {
		f.BollingerPosition = (market.LastClose(candles) - bb.Middle) / (bb.Upper - bb.Middle)
	}

	f.VolumeRatio = indicators.VolumeRatio(candles, 20)

	last := candles[len(candles)-1]
	if candleRange := last.High - last.Low; candleRange > 0 {
		f.BuyPressure = (last.Close - last.Low) / candleRange
	}

	if len(candles) >= 10 {
		recentVol, prevVol := 0.0, 0.0
		for i := len(candles) - 5; i < len(candles); i++ {
			recentVol += candles[i].Volume
		}
		for i := len(candles) - 10; i < len(candles)-5; i++ {
			prevVol += candles[i].Volume
		}
		if prevVol > 0 {
			f.VolumeAccel = (recentVol - prevVol) / prevVol
		}
	}

	ema20 := indicators.EMA(candles, 20)
	ema50 := indicators.EMA(candles, 50)
	if ema50 > 0 {
		f.TrendStrength = (ema20 - ema50) / ema50 * 100
	}

	bullish := 0
	for i := len(candles) - 10; i < len(candles); i++ {
		if candles[i].Close > candles[i].Open {
			bullish++
		}
	}
	f.TrendConsistency = float64(bullish-5) / 5

	return f
}

func (p *Predictor) momentumSignal(f *features) float64 {
	signal := clamp(f.PriceVelocity/0.5, -1, 1) * 0.4
	signal += clamp(f.PriceAcceleration/0.2, -1, 1) * 0.3
	signal += clamp(f.MACDHistogram/0.01, -1, 1) * 0.3
	return clamp(signal, -1, 1)
}

func (p *Predictor) meanReversionSignal(f *features) float64 {
	signal := 0.0
	if f.RSI > 70 {
		signal -= (f.RSI - 70) / 30
	} else if f.RSI < 30 {
		signal += (30 - f.RSI) / 30
	}

	if f.BollingerPosition > 1 {
		signal -= (f.BollingerPosition - 1) * 0.5
	} else if f.BollingerPosition < -1 {
		signal += (-1 - f.BollingerPosition) * 0.5
	}
	return clamp(signal, -1, 1)
}

func (p *Predictor) volumeSignal(f *features) float64 {
	signal := 0.0
	if f.VolumeRatio > 1.5 {
		signal += (f.BuyPressure - 0.5) * (f.VolumeRatio - 1) * 0.5
	}
	signal += clamp(f.VolumeAccel*0.5, -0.5, 0.5)
	return clamp(signal, -1, 1)
}

func (p *Predictor) trendSignal(f *features) float64 {
	signal := clamp(f.TrendStrength/2, -1, 1) * 0.6
	signal += f.TrendConsistency * 0.4
	return clamp(signal, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
