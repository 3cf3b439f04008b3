package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptopump-bot/internal/database"
	"cryptopump-bot/internal/events"
	"cryptopump-bot/internal/indicators"
	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/ml"
	"cryptopump-bot/internal/risk"
	"cryptopump-bot/internal/strategy"
	"cryptopump-bot/internal/trading"
)

// fakeStore is an in-memory stand-in for the database repository.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	trades map[int64]*trading.Trade
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, trades: make(map[int64]*trading.Trade)}
}

func (s *fakeStore) InsertTrade(ctx context.Context, trade *trading.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade.ID = s.nextID
	s.nextID++
	copied := *trade
	s.trades[trade.ID] = &copied
	return nil
}

func (s *fakeStore) CloseTrade(ctx context.Context, id int64, close trading.TradeClose) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[id]
	if !ok || trade.Status != trading.StatusOpen {
		return false, nil
	}
	trade.Status = trading.StatusClosed
	trade.ExitPrice = close.ExitPrice
	trade.PnL = close.PnL
	trade.PnLPercent = close.PnLPercent
	trade.CloseReason = close.Reason
	closedAt := close.ClosedAt
	trade.ClosedAt = &closedAt
	return true, nil
}

func (s *fakeStore) OpenTrades(ctx context.Context) ([]trading.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []trading.Trade
	for _, t := range s.trades {
		if t.Status == trading.StatusOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeStore) OpenTradeCount(ctx context.Context) (int, error) {
	open, _ := s.OpenTrades(ctx)
	return len(open), nil
}

func (s *fakeStore) ClosedTradesSince(ctx context.Context, since time.Time) ([]risk.ClosedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []risk.ClosedTrade
	for _, t := range s.trades {
		if t.Status == trading.StatusClosed && t.ClosedAt != nil && !t.ClosedAt.Before(since) {
			out = append(out, risk.ClosedTrade{Strategy: t.Strategy, PnL: t.PnL, ClosedAt: *t.ClosedAt})
		}
	}
	return out, nil
}

// pumpSeries is flat at price with one final bar spiking by changePct on
// 5x volume.
func pumpSeries(n int, price, changePct float64) []market.Candle {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = market.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
			CloseTime: base.Add(time.Duration(i+1) * time.Minute).UnixMilli(),
		}
	}
	last := &candles[n-1]
	last.Close = price * (1 + changePct/100)
	last.High = last.Close
	last.Volume = 5000
	return candles
}

func newTestEngine(gw market.Gateway, store *fakeStore) *Engine {
	detector := strategy.NewPumpDetector(strategy.PumpConfig{
		ThresholdPercent: 3,
		TimeWindow:       5 * time.Minute,
		VolumeMultiplier: 2,
	}, nil)
	analyzer := indicators.NewAnalyzer(indicators.DefaultConfig())
	scorer := strategy.NewTopMoverScorer(strategy.MoverConfig{
		ThresholdPercent: 2,
		TimeWindow:       30 * time.Minute,
	}, analyzer, ml.NewPredictor(ml.DefaultConfig()), gw, nil)

	tracker := trading.NewBalanceTracker(context.Background(), trading.TrackerConfig{
		InitialBalance:        1000,
		DailyTargetPercentage: 0.05,
		MaxDailyLoss:          0.03,
		MaxConcurrentTrades:   3,
	}, nil, store, zerolog.Nop())

	gate := risk.NewGate(risk.GateConfig{MaxConcurrentTrades: 3}, store, tracker)
	sizer := risk.NewPositionSizer(risk.SizerConfig{CapitalPercentage: 0.1})
	lifecycle := trading.NewLifecycle(store, gw, nil, tracker, zerolog.Nop())

	return New(Config{
		StopLossPercent:   2,
		TakeProfitPercent: 6,
		MaxSymbols:        50,
	}, gw, detector, scorer, gate, sizer, lifecycle, tracker, nil, events.NewEventBus())
}

func TestPumpScanOpensTrade(t *testing.T) {
	gw := market.NewMockGateway(1000)
	gw.SetCandles("PUMPUSDT", pumpSeries(60, 100, 10))
	store := newFakeStore()
	e := newTestEngine(gw, store)

	e.runPumpScan(context.Background())

	open, _ := store.OpenTrades(context.Background())
	if len(open) != 1 {
		t.Fatalf("expected 1 open trade, got %d", len(open))
	}
	trade := open[0]
	if trade.Strategy != strategy.KindPump || trade.Side != market.SideBuy {
		t.Errorf("unexpected trade: %+v", trade)
	}
	if trade.StopLoss >= trade.EntryPrice || trade.TakeProfit <= trade.EntryPrice {
		t.Errorf("exit levels on wrong side of entry: %+v", trade)
	}
}

func TestPumpScanIgnoresQuietMarket(t *testing.T) {
	gw := market.NewMockGateway(1000)
	gw.SetCandles("FLATUSDT", pumpSeries(60, 100, 0.5))
	store := newFakeStore()
	e := newTestEngine(gw, store)

	e.runPumpScan(context.Background())

	open, _ := store.OpenTrades(context.Background())
	if len(open) != 0 {
		t.Errorf("quiet market must open no trades, got %d", len(open))
	}
}

func TestPumpScanRespectsConcurrencyCap(t *testing.T) {
	gw := market.NewMockGateway(1000)
	gw.SetCandles("PUMPUSDT", pumpSeries(60, 100, 10))
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		store.InsertTrade(context.Background(), &trading.Trade{
			Symbol: "XUSDT", Status: trading.StatusOpen, Strategy: strategy.KindPump,
		})
	}
	e := newTestEngine(gw, store)

	e.runPumpScan(context.Background())

	count, _ := store.OpenTradeCount(context.Background())
	if count != 3 {
		t.Errorf("concurrency cap must block the new trade, open=%d", count)
	}
}

func TestMonitorSettlesBreachedTrade(t *testing.T) {
	gw := market.NewMockGateway(1000)
	store := newFakeStore()
	store.InsertTrade(context.Background(), &trading.Trade{
		Symbol: "BTCUSDT", Side: market.SideBuy, Strategy: strategy.KindPump,
		EntryPrice: 100, Quantity: 2, StopLoss: 98, TakeProfit: 106,
		Status: trading.StatusOpen, OpenedAt: time.Now(),
	})
	gw.SetPrice("BTCUSDT", 97)
	e := newTestEngine(gw, store)

	e.runMonitor(context.Background())

	open, _ := store.OpenTrades(context.Background())
	if len(open) != 0 {
		t.Fatalf("expected the trade to close, still open: %d", len(open))
	}
	// The loss lands in the balance tracker.
	if got := e.tracker.State().DailyPnL; got != -6 {
		t.Errorf("expected daily pnl -6, got %f", got)
	}
}

func TestMonitorPublishesTradeClosedEvent(t *testing.T) {
	gw := market.NewMockGateway(1000)
	store := newFakeStore()
	store.InsertTrade(context.Background(), &trading.Trade{
		Symbol: "BTCUSDT", Side: market.SideBuy, Strategy: strategy.KindPump,
		EntryPrice: 100, Quantity: 2, StopLoss: 98, TakeProfit: 106,
		Status: trading.StatusOpen, OpenedAt: time.Now(),
	})
	gw.SetPrice("BTCUSDT", 97)
	e := newTestEngine(gw, store)

	e.runMonitor(context.Background())

	var closedEvents []events.Event
	for _, ev := range e.bus.Recent(10) {
		if ev.Type == events.EventTradeClosed {
			closedEvents = append(closedEvents, ev)
		}
	}
	if len(closedEvents) != 1 {
		t.Fatalf("expected one TRADE_CLOSED event, got %d", len(closedEvents))
	}
	data := closedEvents[0].Data
	if data["symbol"] != "BTCUSDT" || data["reason"] != string(trading.ReasonStopLoss) {
		t.Errorf("unexpected event payload: %+v", data)
	}
	if data["pnl"] != -6.0 {
		t.Errorf("expected pnl -6 in event, got %v", data["pnl"])
	}
}

type fakeSummaryStore struct {
	mu    sync.Mutex
	saved []database.DailySummary
}

func (f *fakeSummaryStore) SaveDailySummary(ctx context.Context, s *database.DailySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *s)
	return nil
}

func TestDailySummaryFiresOncePerDayChange(t *testing.T) {
	gw := market.NewMockGateway(1000)
	store := newFakeStore()
	e := newTestEngine(gw, store)
	sink := &fakeSummaryStore{}
	e.SetSummaryStore(sink)

	// Same-day passes never emit.
	e.runDailySummary(context.Background())
	e.runDailySummary(context.Background())
	if len(sink.saved) != 0 {
		t.Fatalf("same-day passes must not emit, got %d", len(sink.saved))
	}

	// Force a day change.
	e.summary.mu.Lock()
	e.summary.date = "2024-06-01"
	e.summary.mu.Unlock()

	e.runDailySummary(context.Background())
	if len(sink.saved) != 1 {
		t.Fatalf("day change must emit exactly one summary, got %d", len(sink.saved))
	}
	e.runDailySummary(context.Background())
	if len(sink.saved) != 1 {
		t.Errorf("repeat same-day pass must not emit again, got %d", len(sink.saved))
	}
}
