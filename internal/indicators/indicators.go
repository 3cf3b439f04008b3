package indicators

import (
	"math"

	"cryptopump-bot/internal/market"
)

// barsPerDay is the number of 1m bars in a day, used to scale per-bar return
// volatility to a daily-equivalent figure.
const barsPerDay = 24 * 60

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average over the last period bars.
func SMA(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA calculates the Exponential Moving Average over the last period bars,
// seeded with an SMA of the first period values.
func EMA(candles []market.Candle, period int) float64 {
	series := emaSeries(closes(candles), period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries returns the EMA series for values, starting at index period-1.
// Empty when there are fewer than period values.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}

	multiplier := 2.0 / float64(period+1)
	ema := sum / float64(period)
	series := make([]float64, 0, len(values)-period+1)
	series = append(series, ema)

	for i := period; i < len(values); i++ {
		ema = values[i]*multiplier + ema*(1-multiplier)
		series = append(series, ema)
	}
	return series
}

func closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// ============================================================================
// RSI
// ============================================================================

// RSI calculates the Relative Strength Index. Returns the neutral 50 when
// there are not enough bars.
func RSI(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD
// ============================================================================

// MACDResult holds MACD line, signal line and histogram values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line, its signal line (an EMA over the MACD
// series) and the histogram. Zero result when there are not enough bars.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) MACDResult {
	if len(candles) < slowPeriod+signalPeriod {
		return MACDResult{}
	}

	prices := closes(candles)
	fast := emaSeries(prices, fastPeriod)
	slow := emaSeries(prices, slowPeriod)

	// Both series end at the last bar; align them from the back.
	n := len(slow)
	if len(fast) < n {
		n = len(fast)
	}
	macdLine := make([]float64, n)
	for i := 0; i < n; i++ {
		macdLine[i] = fast[len(fast)-n+i] - slow[len(slow)-n+i]
	}

	signal := emaSeries(macdLine, signalPeriod)
	if len(signal) == 0 {
		return MACDResult{MACD: macdLine[n-1]}
	}

	m := macdLine[n-1]
	s := signal[len(signal)-1]
	return MACDResult{MACD: m, Signal: s, Histogram: m - s}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds band levels and the position of the last close within
// them (0 at the lower band, 1 at the upper band, 0.5 when undefined).
type BollingerResult struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Position float64
}

// Bollinger calculates Bollinger Bands over the last period bars.
func Bollinger(candles []market.Candle, period int, stdDevMultiplier float64) BollingerResult {
	if period <= 0 || len(candles) < period {
		return BollingerResult{Position: 0.5}
	}

	middle := SMA(candles, period)

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := middle + stdDev*stdDevMultiplier
	lower := middle - stdDev*stdDevMultiplier

	position := 0.5
	if upper > lower {
		position = (candles[len(candles)-1].Close - lower) / (upper - lower)
	}

	return BollingerResult{Upper: upper, Middle: middle, Lower: lower, Position: position}
}

// ============================================================================
// ATR
// ============================================================================

// ATR calculates the Average True Range over the last period bars.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trSum += tr
	}
	return trSum / float64(period)
}

// ============================================================================
// WINDOW STATISTICS
// ============================================================================

// PriceChangePercent is the percentage move from the first to the last close
// of the series. Zero for series shorter than two bars or a zero start price.
func PriceChangePercent(candles []market.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	start := candles[0].Close
	if start == 0 {
		return 0
	}
	return (candles[len(candles)-1].Close - start) / start * 100
}

// VolumeMultiplier is the last bar's volume relative to the series mean,
// or 0 when the mean is 0.
func VolumeMultiplier(candles []market.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range candles {
		sum += c.Volume
	}
	mean := sum / float64(len(candles))
	if mean == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / mean
}

// VolumeRatio is the last bar's volume relative to the volume SMA over the
// last period bars. Zero when undefined.
func VolumeRatio(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / avg
}

// Returns computes simple bar-over-bar returns of the close series.
func Returns(candles []market.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev)
	}
	return out
}

// Volatility is the standard deviation of simple returns over the series,
// scaled by sqrt(bars per day) for a daily-equivalent figure.
func Volatility(candles []market.Candle) float64 {
	return StdDev(Returns(candles)) * math.Sqrt(barsPerDay)
}

// StdDev is the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
