package indicators

import (
	"testing"

	"cryptopump-bot/internal/market"
)

func trendSeries(n int, start, step float64) []market.Candle {
	out := make([]market.Candle, n)
	price := start
	for i := range out {
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     price,
			High:     price * 1.005,
			Low:      price * 0.995,
			Close:    price,
			Volume:   1000,
		}
		price += step
	}
	return out
}

func TestTechnicalScoreNeutralOnShortSeries(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	if got := a.TechnicalScore(trendSeries(30, 100, 1)); got != 50 {
		t.Errorf("score on 30 bars = %v, want neutral 50", got)
	}
	if got := a.TechnicalScore(nil); got != 50 {
		t.Errorf("score on empty series = %v, want neutral 50", got)
	}
}

func TestTechnicalScoreBounds(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	for _, candles := range [][]market.Candle{
		trendSeries(60, 100, 5),
		trendSeries(60, 400, -5),
		trendSeries(60, 100, 0),
	} {
		score := a.TechnicalScore(candles)
		if score < 0 || score > 100 {
			t.Errorf("score = %v, want within [0,100]", score)
		}
	}
}

func TestTechnicalScoreFollowsTrend(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	up := a.TechnicalScore(trendSeries(60, 100, 1))
	down := a.TechnicalScore(trendSeries(60, 200, -1))
	if up <= down {
		t.Errorf("uptrend score %v should exceed downtrend score %v", up, down)
	}
}

func TestDirectionForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  market.Direction
	}{
		{85, market.DirectionLong},
		{70, market.DirectionNeutral},
		{50, market.DirectionNeutral},
		{30, market.DirectionNeutral},
		{15, market.DirectionShort},
	}
	for _, tc := range cases {
		if got := DirectionForScore(tc.score); got != tc.want {
			t.Errorf("DirectionForScore(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestSupportResistanceFallback(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	candles := trendSeries(5, 100, 0)
	support, resistance := a.SupportResistance(candles, 20)
	last := market.LastClose(candles)
	if support != last*0.95 || resistance != last*1.05 {
		t.Errorf("fallback levels = %v/%v, want %v/%v", support, resistance, last*0.95, last*1.05)
	}
}

func TestSupportResistanceBracketsPrice(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	candles := trendSeries(30, 100, 1)
	support, resistance := a.SupportResistance(candles, 20)
	last := market.LastClose(candles)
	if support >= last {
		t.Errorf("support %v should sit below the current price %v", support, last)
	}
	if resistance <= last && resistance != last*1.05 {
		t.Errorf("resistance %v should sit above the current price %v", resistance, last)
	}
}
