package indicators

import (
	"math"
	"testing"

	"cryptopump-bot/internal/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     c,
			High:     c * 1.01,
			Low:      c * 0.99,
			Close:    c,
			Volume:   1000,
		}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	candles := candlesFromCloses(1, 2, 3, 4, 5)

	if got := SMA(candles, 5); !almostEqual(got, 3) {
		t.Errorf("SMA(5) = %v, want 3", got)
	}
	if got := SMA(candles, 2); !almostEqual(got, 4.5) {
		t.Errorf("SMA(2) = %v, want 4.5", got)
	}
	if got := SMA(candles, 6); got != 0 {
		t.Errorf("SMA with too few bars = %v, want 0", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	candles := candlesFromCloses(10, 10, 10, 10, 10, 10, 10, 10)
	if got := EMA(candles, 5); !almostEqual(got, 10) {
		t.Errorf("EMA of constant series = %v, want 10", got)
	}
}

func TestEMATracksTrend(t *testing.T) {
	up := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	ema := EMA(up, 5)
	sma := SMA(up, 5)
	if ema <= sma {
		t.Errorf("EMA %v should exceed SMA %v in an uptrend", ema, sma)
	}
}

func TestRSI(t *testing.T) {
	allGains := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
	if got := RSI(allGains, 14); got != 100 {
		t.Errorf("RSI of all-gains series = %v, want 100", got)
	}

	allLosses := candlesFromCloses(15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1)
	if got := RSI(allLosses, 14); got != 0 {
		t.Errorf("RSI of all-losses series = %v, want 0", got)
	}

	short := candlesFromCloses(1, 2, 3)
	if got := RSI(short, 14); got != 50 {
		t.Errorf("RSI with too few bars = %v, want neutral 50", got)
	}
}

func TestMACDCrossSign(t *testing.T) {
	// Long flat stretch then a sharp rise: fast EMA above slow, MACD above
	// its signal line.
	closes := make([]float64, 0, 60)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 100+float64(i+1)*2)
	}
	res := MACD(candlesFromCloses(closes...), 12, 26, 9)
	if res.MACD <= 0 {
		t.Errorf("MACD line = %v, want positive in an uptrend", res.MACD)
	}
	if res.Histogram <= 0 {
		t.Errorf("histogram = %v, want positive when momentum is building", res.Histogram)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	res := MACD(candlesFromCloses(1, 2, 3), 12, 26, 9)
	if res.MACD != 0 || res.Signal != 0 || res.Histogram != 0 {
		t.Errorf("MACD on short series = %+v, want zero result", res)
	}
}

func TestBollinger(t *testing.T) {
	flat := candlesFromCloses(10, 10, 10, 10, 10, 10, 10, 10, 10, 10,
		10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	res := Bollinger(flat, 20, 2)
	if !almostEqual(res.Middle, 10) {
		t.Errorf("middle band = %v, want 10", res.Middle)
	}
	// Zero variance collapses the bands, so position falls back to 0.5.
	if !almostEqual(res.Position, 0.5) {
		t.Errorf("position on collapsed bands = %v, want 0.5", res.Position)
	}

	short := Bollinger(candlesFromCloses(1, 2), 20, 2)
	if short.Position != 0.5 {
		t.Errorf("position with too few bars = %v, want 0.5", short.Position)
	}
}

func TestBollingerPositionAtExtremes(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11,
		10, 11, 10, 11, 10, 11, 10, 11, 10, 14}
	res := Bollinger(candlesFromCloses(closes...), 20, 2)
	if res.Position <= 0.8 {
		t.Errorf("position after a breakout = %v, want > 0.8", res.Position)
	}
}

func TestATR(t *testing.T) {
	candles := make([]market.Candle, 15)
	for i := range candles {
		candles[i] = market.Candle{High: 12, Low: 10, Close: 11}
	}
	if got := ATR(candles, 14); !almostEqual(got, 2) {
		t.Errorf("ATR = %v, want 2", got)
	}
	if got := ATR(candles[:5], 14); got != 0 {
		t.Errorf("ATR with too few bars = %v, want 0", got)
	}
}

func TestPriceChangePercent(t *testing.T) {
	if got := PriceChangePercent(candlesFromCloses(100, 105, 110)); !almostEqual(got, 10) {
		t.Errorf("change = %v, want 10", got)
	}
	if got := PriceChangePercent(candlesFromCloses(100, 95)); !almostEqual(got, -5) {
		t.Errorf("change = %v, want -5", got)
	}
	if got := PriceChangePercent(candlesFromCloses(100)); got != 0 {
		t.Errorf("change on single bar = %v, want 0", got)
	}
}

func TestVolumeMultiplier(t *testing.T) {
	candles := candlesFromCloses(1, 1, 1, 1)
	for i := range candles {
		candles[i].Volume = 100
	}
	candles[len(candles)-1].Volume = 400
	// Mean is (100+100+100+400)/4 = 175, last bar 400.
	if got := VolumeMultiplier(candles); !almostEqual(got, 400.0/175.0) {
		t.Errorf("multiplier = %v, want %v", got, 400.0/175.0)
	}
	if got := VolumeMultiplier(nil); got != 0 {
		t.Errorf("multiplier on empty series = %v, want 0", got)
	}
}

func TestReturnsAreFractional(t *testing.T) {
	rets := Returns(candlesFromCloses(100, 110, 99))
	if len(rets) != 2 {
		t.Fatalf("len = %d, want 2", len(rets))
	}
	if !almostEqual(rets[0], 0.1) {
		t.Errorf("rets[0] = %v, want 0.1", rets[0])
	}
	if !almostEqual(rets[1], -0.1) {
		t.Errorf("rets[1] = %v, want -0.1", rets[1])
	}
}

func TestVolatilityFlatSeriesIsZero(t *testing.T) {
	if got := Volatility(candlesFromCloses(10, 10, 10, 10)); got != 0 {
		t.Errorf("volatility of flat series = %v, want 0", got)
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(got, 2) {
		t.Errorf("stddev = %v, want 2", got)
	}
	if got := StdDev(nil); got != 0 {
		t.Errorf("stddev of empty slice = %v, want 0", got)
	}
}
