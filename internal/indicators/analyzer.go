package indicators

import (
	"math"

	"cryptopump-bot/internal/market"
)

// Config holds the indicator periods. All values come from deployment
// configuration, never hardcoded at call sites.
type Config struct {
	EMAFast         int
	EMASlow         int
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerStd    float64
	ATRPeriod       int
}

// DefaultConfig returns the standard indicator parameters.
func DefaultConfig() Config {
	return Config{
		EMAFast:         9,
		EMASlow:         21,
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerStd:    2.0,
		ATRPeriod:       14,
	}
}

// Analyzer computes the composite technical score from the configured
// indicator set.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an analyzer with the given indicator periods.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// minScoreBars is the series length below which the score is the neutral 50.
const minScoreBars = 50

// TechnicalScore combines indicator votes into a 0-100 score. Base 50, four
// votes worth +/-20 each (EMA cross, RSI extremes, MACD cross, Bollinger
// position), a +10 volume bonus and a clipped momentum term. Series shorter
// than 50 bars score the neutral 50.
func (a *Analyzer) TechnicalScore(candles []market.Candle) float64 {
	if len(candles) < minScoreBars {
		return 50.0
	}

	score := 50.0

	// EMA cross
	if EMA(candles, a.cfg.EMAFast) > EMA(candles, a.cfg.EMASlow) {
		score += 20
	} else {
		score -= 20
	}

	// RSI extremes
	rsi := RSI(candles, a.cfg.RSIPeriod)
	if rsi < 30 {
		score += 20 // oversold
	} else if rsi > 70 {
		score -= 20 // overbought
	}

	// MACD cross
	macd := MACD(candles, a.cfg.MACDFast, a.cfg.MACDSlow, a.cfg.MACDSignal)
	if macd.MACD > macd.Signal {
		score += 20
	} else {
		score -= 20
	}

	// Bollinger position
	bb := Bollinger(candles, a.cfg.BollingerPeriod, a.cfg.BollingerStd)
	if bb.Position < 0.2 {
		score += 20 // near lower band
	} else if bb.Position > 0.8 {
		score -= 20 // near upper band
	}

	// Volume confirmation
	if VolumeRatio(candles, 20) > 1.5 {
		score += 10
	}

	// Momentum over the last 5 bars, clipped to +/-20
	if len(candles) >= 6 {
		ref := candles[len(candles)-6].Close
		if ref > 0 {
			change := (candles[len(candles)-1].Close - ref) / ref * 100
			score += math.Max(-20, math.Min(20, change*2))
		}
	}

	return math.Max(0, math.Min(100, score))
}

// SignalDirection maps the technical score to a direction: above 70 is long,
// below 30 is short, anything else neutral.
func (a *Analyzer) SignalDirection(candles []market.Candle) market.Direction {
	return DirectionForScore(a.TechnicalScore(candles))
}

// DirectionForScore maps a 0-100 score to a direction using the 70/30
// thresholds shared by the technical and model signals.
func DirectionForScore(score float64) market.Direction {
	switch {
	case score > 70:
		return market.DirectionLong
	case score < 30:
		return market.DirectionShort
	default:
		return market.DirectionNeutral
	}
}

// SupportResistance estimates the nearest support and resistance levels from
// rolling extremes. Falls back to +/-5% around the last close when no level
// brackets the current price.
func (a *Analyzer) SupportResistance(candles []market.Candle, window int) (support, resistance float64) {
	current := market.LastClose(candles)
	support = current * 0.95
	resistance = current * 1.05

	if window <= 0 || len(candles) < window {
		return support, resistance
	}

	for i := len(candles) - window; i < len(candles); i++ {
		if candles[i].High > current && (resistance == current*1.05 || candles[i].High < resistance) {
			resistance = candles[i].High
		}
		if candles[i].Low < current && (support == current*0.95 || candles[i].Low > support) {
			support = candles[i].Low
		}
	}
	return support, resistance
}
