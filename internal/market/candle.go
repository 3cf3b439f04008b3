package market

import "time"

// Candle represents a single OHLCV bar. Bars in a series are ordered by
// strictly increasing OpenTime and are never mutated once observed.
type Candle struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"`
}

// Interval is the nominal candle period used across the engine.
const Interval = "1m"

// IntervalDuration is the duration of one candle at Interval.
const IntervalDuration = time.Minute

// LastClose returns the close of the most recent bar, or 0 for an empty series.
func LastClose(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	return candles[len(candles)-1].Close
}

// Tail returns the most recent n bars, or the whole series when it is shorter.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 {
		return nil
	}
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// WindowBars converts a time window to a bar count at the nominal interval.
// A 300s window on 1m candles is 5 bars; windows shorter than one bar round up to 1.
func WindowBars(window time.Duration) int {
	bars := int(window / IntervalDuration)
	if bars < 1 {
		bars = 1
	}
	return bars
}
