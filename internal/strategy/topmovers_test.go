package strategy

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/market"
)

// closeKeyedModel scores proportionally to the last close so tests can
// control relative ranking through the series alone.
type closeKeyedModel struct{}

func (closeKeyedModel) Score(candles []market.Candle) (float64, market.Direction) {
	return math.Min(100, market.LastClose(candles)/2), market.DirectionLong
}

func testMoverConfig() MoverConfig {
	return MoverConfig{
		ThresholdPercent: 0.5,
		TimeWindow:       30 * time.Minute,
	}
}

// trendSeries returns n bars rising linearly from base to base*(1+totalPct/100)
// at constant volume.
func trendSeries(n int, base, volume, totalPct float64) []market.Candle {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		price := base * (1 + totalPct/100*float64(i)/float64(n-1))
		candles[i] = market.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      price,
			High:      price * 1.0005,
			Low:       price * 0.9995,
			Close:     price,
			Volume:    volume,
			CloseTime: start.Add(time.Duration(i+1) * time.Minute).UnixMilli(),
		}
	}
	return candles
}

func newTestScorer(gw market.Gateway) *TopMoverScorer {
	analyzer := indicators.NewAnalyzer(indicators.DefaultConfig())
	return NewTopMoverScorer(testMoverConfig(), analyzer, closeKeyedModel{}, gw, nil)
}

func TestScanCapsAndSortsResults(t *testing.T) {
	gw := market.NewMockGateway(0)
	symbols := make([]string, 0, 12)
	for i := 1; i <= 12; i++ {
		symbol := fmt.Sprintf("SYM%02dUSDT", i)
		symbols = append(symbols, symbol)
		gw.SetCandles(symbol, trendSeries(100, float64(i)*10, 20000, 2))
	}

	results := newTestScorer(gw).Scan(context.Background(), symbols)

	if len(results) > 10 {
		t.Fatalf("scan returned %d results, cap is 10", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results not sorted descending at %d: %f > %f", i, results[i].FinalScore, results[i-1].FinalScore)
		}
	}
	for _, r := range results {
		if r.FinalScore < 0 || r.FinalScore > 100 {
			t.Errorf("final score %f out of range for %s", r.FinalScore, r.Symbol)
		}
	}
}

func TestScanSkipsRecentlyAnalyzed(t *testing.T) {
	gw := market.NewMockGateway(0)
	gw.SetCandles("BTCUSDT", trendSeries(100, 100, 20000, 2))
	scorer := newTestScorer(gw)

	first := scorer.Scan(context.Background(), []string{"BTCUSDT"})
	if len(first) != 1 {
		t.Fatalf("expected 1 result, got %d", len(first))
	}
	second := scorer.Scan(context.Background(), []string{"BTCUSDT"})
	if len(second) != 0 {
		t.Errorf("expected recently analyzed symbol to be skipped, got %d results", len(second))
	}
}

func TestScanRejectsIlliquidSymbol(t *testing.T) {
	gw := market.NewMockGateway(0)
	// Strong move but average volume far below 10,000.
	gw.SetCandles("THINUSDT", trendSeries(100, 100, 50, 5))

	results := newTestScorer(gw).Scan(context.Background(), []string{"THINUSDT"})
	if len(results) != 0 {
		t.Errorf("illiquid symbol must be filtered, got %d results", len(results))
	}
}

func TestScanRejectsStaleFeed(t *testing.T) {
	gw := market.NewMockGateway(0)
	// Flat closes except one jump at the end: movement passes the threshold
	// but almost every close repeats.
	candles := trendSeries(100, 100, 20000, 0)
	for i := range candles {
		candles[i].Close = 100
	}
	candles[len(candles)-1].Close = 103
	candles[len(candles)-1].High = 103.1
	gw.SetCandles("FLATUSDT", candles)

	results := newTestScorer(gw).Scan(context.Background(), []string{"FLATUSDT"})
	if len(results) != 0 {
		t.Errorf("stale feed must be filtered, got %d results", len(results))
	}
}

func TestScanSkipsShortSeries(t *testing.T) {
	gw := market.NewMockGateway(0)
	gw.SetCandles("NEWUSDT", trendSeries(30, 100, 20000, 5))

	results := newTestScorer(gw).Scan(context.Background(), []string{"NEWUSDT"})
	if len(results) != 0 {
		t.Errorf("series below 50 bars must be skipped, got %d results", len(results))
	}
}

func TestFuseScoresAgreementOverridesThreshold(t *testing.T) {
	score, signal := fuseScores(90, 65, market.DirectionShort, market.DirectionShort)
	if score != 90*0.6+65*0.4 {
		t.Errorf("unexpected fused score %f", score)
	}
	// Score 80 would map to long, but both inputs say short.
	if signal != market.DirectionShort {
		t.Errorf("agreement must override score-derived signal, got %s", signal)
	}
}

func TestFuseScoresDisagreementUsesThresholds(t *testing.T) {
	for _, tc := range []struct {
		tech, model   float64
		techS, modelS market.Direction
		want          market.Direction
	}{
		{90, 80, market.DirectionLong, market.DirectionShort, market.DirectionLong},   // fused 86 > 70
		{20, 20, market.DirectionShort, market.DirectionNeutral, market.DirectionShort}, // fused 20 < 30
		{50, 60, market.DirectionNeutral, market.DirectionNeutral, market.DirectionNeutral},
	} {
		_, signal := fuseScores(tc.tech, tc.model, tc.techS, tc.modelS)
		if signal != tc.want {
			t.Errorf("fuseScores(%f,%f,%s,%s) = %s, want %s", tc.tech, tc.model, tc.techS, tc.modelS, signal, tc.want)
		}
	}
}

func TestShouldTrade(t *testing.T) {
	scorer := newTestScorer(market.NewMockGateway(0))
	base := MoverAnalysis{
		FinalScore:      80,
		TechnicalSignal: market.DirectionLong,
		ModelSignal:     market.DirectionLong,
		Volatility:      0.1,
		VolumeRatio:     2.0,
	}

	if !scorer.ShouldTrade(&base) {
		t.Fatal("baseline candidate should trade")
	}

	lowScore := base
	lowScore.FinalScore = 74
	if scorer.ShouldTrade(&lowScore) {
		t.Error("final score below 75 must not trade")
	}

	disagree := base
	disagree.ModelSignal = market.DirectionShort
	if scorer.ShouldTrade(&disagree) {
		t.Error("disagreeing signals must not trade")
	}

	neutral := base
	neutral.TechnicalSignal = market.DirectionNeutral
	neutral.ModelSignal = market.DirectionNeutral
	if scorer.ShouldTrade(&neutral) {
		t.Error("neutral agreement must not trade")
	}

	volatile := base
	volatile.Volatility = 0.4
	if scorer.ShouldTrade(&volatile) {
		t.Error("excess volatility must not trade")
	}

	thinVolume := base
	thinVolume.VolumeRatio = 1.0
	if scorer.ShouldTrade(&thinVolume) {
		t.Error("weak volume ratio must not trade")
	}
}
