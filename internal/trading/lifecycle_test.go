package trading

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/strategy"
)

// memStore is an in-memory TradeStore with the same conditional-close
// semantics as the SQL repository.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	trades map[int64]*Trade
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, trades: make(map[int64]*Trade)}
}

func (s *memStore) InsertTrade(ctx context.Context, trade *Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade.ID = s.nextID
	s.nextID++
	copied := *trade
	s.trades[trade.ID] = &copied
	return nil
}

func (s *memStore) CloseTrade(ctx context.Context, id int64, close TradeClose) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[id]
	if !ok || trade.Status != StatusOpen {
		return false, nil
	}
	trade.Status = StatusClosed
	trade.ExitPrice = close.ExitPrice
	trade.PnL = close.PnL
	trade.PnLPercent = close.PnLPercent
	trade.CloseReason = close.Reason
	closedAt := close.ClosedAt
	trade.ClosedAt = &closedAt
	return true, nil
}

func (s *memStore) OpenTrades(ctx context.Context) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trade, 0, len(s.trades))
	for _, t := range s.trades {
		if t.Status == StatusOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) get(id int64) Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trades[id]
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []Trade
}

func (r *fakeRecorder) Record(ctx context.Context, trade *Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *trade)
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func newTestLifecycle(store TradeStore, gw market.Gateway, rec TradeRecorder) *Lifecycle {
	return NewLifecycle(store, gw, nil, rec, zerolog.Nop())
}

func TestOpenCreatesOpenTrade(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	gw.SetPrice("BTCUSDT", 100)
	lc := newTestLifecycle(store, gw, nil)

	trade, err := lc.Open(context.Background(), OpenRequest{
		Symbol:            "BTCUSDT",
		Side:              market.SideBuy,
		Strategy:          strategy.KindPump,
		QuoteAmount:       200,
		StopLossPercent:   2,
		TakeProfitPercent: 6,
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if trade.Status != StatusOpen {
		t.Errorf("expected open status, got %s", trade.Status)
	}
	if trade.EntryPrice != 100 {
		t.Errorf("expected entry 100, got %f", trade.EntryPrice)
	}
	if math.Abs(trade.Quantity-2) > 1e-9 {
		t.Errorf("expected quantity 2, got %f", trade.Quantity)
	}
	if math.Abs(trade.StopLoss-98) > 1e-9 || math.Abs(trade.TakeProfit-106) > 1e-9 {
		t.Errorf("unexpected exit levels: sl=%f tp=%f", trade.StopLoss, trade.TakeProfit)
	}
	if trade.ClientOrderID == "" {
		t.Error("expected a client order id")
	}
	if len(gw.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(gw.Orders))
	}
}

func TestOpenSellInvertsExitLevels(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	gw.SetPrice("ETHUSDT", 50)
	lc := newTestLifecycle(store, gw, nil)

	trade, err := lc.Open(context.Background(), OpenRequest{
		Symbol:            "ETHUSDT",
		Side:              market.SideSell,
		Strategy:          strategy.KindTopMover,
		QuoteAmount:       500,
		StopLossPercent:   2.5,
		TakeProfitPercent: 5,
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if math.Abs(trade.StopLoss-51.25) > 1e-9 || math.Abs(trade.TakeProfit-47.5) > 1e-9 {
		t.Errorf("unexpected sell exit levels: sl=%f tp=%f", trade.StopLoss, trade.TakeProfit)
	}
}

func TestOpenFailedExecutionLeavesNoTrade(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000) // no price seeded, order is rejected
	lc := newTestLifecycle(store, gw, nil)

	_, err := lc.Open(context.Background(), OpenRequest{
		Symbol:      "BTCUSDT",
		Side:        market.SideBuy,
		Strategy:    strategy.KindPump,
		QuoteAmount: 200,
	})
	if err == nil {
		t.Fatal("expected execution error")
	}
	open, _ := store.OpenTrades(context.Background())
	if len(open) != 0 {
		t.Errorf("failed execution must leave no trade rows, found %d", len(open))
	}
}

func seedOpenTrade(store *memStore, side market.Side, entry, qty, sl, tp float64) int64 {
	trade := &Trade{
		Symbol:     "BTCUSDT",
		Side:       side,
		Strategy:   strategy.KindPump,
		EntryPrice: entry,
		Quantity:   qty,
		StopLoss:   sl,
		TakeProfit: tp,
		Status:     StatusOpen,
		OpenedAt:   time.Now(),
	}
	store.InsertTrade(context.Background(), trade)
	return trade.ID
}

func TestMonitorLeavesTradeOpenBetweenBounds(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideBuy, 100, 2, 98, 106)
	gw.SetPrice("BTCUSDT", 101)

	lc := newTestLifecycle(store, gw, nil)
	closed, err := lc.Monitor(context.Background())
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if len(closed) != 0 {
		t.Errorf("expected no settled trades, got %d", len(closed))
	}
	if got := store.get(id); got.Status != StatusOpen {
		t.Errorf("price inside bounds must leave the trade open, got %s", got.Status)
	}
}

func TestMonitorClosesBuyAtStopLoss(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideBuy, 100, 2, 98, 106)
	gw.SetPrice("BTCUSDT", 97)

	rec := &fakeRecorder{}
	lc := newTestLifecycle(store, gw, rec)
	closed, err := lc.Monitor(context.Background())
	if err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if len(closed) != 1 || closed[0].ID != id || closed[0].CloseReason != ReasonStopLoss {
		t.Fatalf("monitor must return the settled trade, got %+v", closed)
	}

	got := store.get(id)
	if got.Status != StatusClosed || got.CloseReason != ReasonStopLoss {
		t.Fatalf("expected stop_loss close, got status=%s reason=%s", got.Status, got.CloseReason)
	}
	if math.Abs(got.PnL-(-6)) > 1e-9 {
		t.Errorf("expected pnl -6, got %f", got.PnL)
	}
	if math.Abs(got.PnLPercent-(-3)) > 1e-9 {
		t.Errorf("expected pnl_percent -3, got %f", got.PnLPercent)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 balance record, got %d", rec.count())
	}
	// The exit order flattens the position on the opposite side.
	if len(gw.Orders) != 1 || gw.Orders[0].Side != market.SideSell.Order() {
		t.Errorf("expected one SELL exit order, got %+v", gw.Orders)
	}
}

func TestMonitorClosesSellAtTakeProfit(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideSell, 50, 10, 51.25, 47.5)
	gw.SetPrice("BTCUSDT", 47)

	lc := newTestLifecycle(store, gw, nil)
	if _, err := lc.Monitor(context.Background()); err != nil {
		t.Fatalf("monitor failed: %v", err)
	}

	got := store.get(id)
	if got.Status != StatusClosed || got.CloseReason != ReasonTakeProfit {
		t.Fatalf("expected take_profit close, got status=%s reason=%s", got.Status, got.CloseReason)
	}
	if math.Abs(got.PnL-30) > 1e-9 {
		t.Errorf("expected pnl 30, got %f", got.PnL)
	}
	if math.Abs(got.PnLPercent-6) > 1e-9 {
		t.Errorf("expected pnl_percent 6, got %f", got.PnLPercent)
	}
}

func TestMonitorPrefersStopLossWhenBothBreached(t *testing.T) {
	// Degenerate levels where one price satisfies both conditions: the
	// documented order settles it as a stop-loss.
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideBuy, 100, 1, 102, 98)
	gw.SetPrice("BTCUSDT", 100)

	lc := newTestLifecycle(store, gw, nil)
	if _, err := lc.Monitor(context.Background()); err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if got := store.get(id); got.CloseReason != ReasonStopLoss {
		t.Errorf("expected stop_loss to win the tie, got %s", got.CloseReason)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideBuy, 100, 2, 98, 106)
	gw.SetPrice("BTCUSDT", 97)

	rec := &fakeRecorder{}
	lc := newTestLifecycle(store, gw, rec)

	open, _ := store.OpenTrades(context.Background())
	trade := &open[0]
	lc.Close(context.Background(), trade, 97, ReasonStopLoss)
	first := store.get(id)

	lc.Close(context.Background(), trade, 90, ReasonManual)
	second := store.get(id)

	if second.PnL != first.PnL || second.ExitPrice != first.ExitPrice {
		t.Errorf("second close changed the record: %+v vs %+v", second, first)
	}
	if !second.ClosedAt.Equal(*first.ClosedAt) {
		t.Error("second close changed closed_at")
	}
	if rec.count() != 1 {
		t.Errorf("recorder must run once, ran %d times", rec.count())
	}
}

func TestMonitorSkipsSymbolsWithoutPrices(t *testing.T) {
	store := newMemStore()
	gw := market.NewMockGateway(1000)
	id := seedOpenTrade(store, market.SideBuy, 100, 2, 98, 106)
	// No price seeded: the fetch fails and the trade stays open.

	lc := newTestLifecycle(store, gw, nil)
	if _, err := lc.Monitor(context.Background()); err != nil {
		t.Fatalf("monitor must tolerate per-symbol failures: %v", err)
	}
	if got := store.get(id); got.Status != StatusOpen {
		t.Errorf("trade must stay open when the price is unavailable, got %s", got.Status)
	}
}

func TestComputePnL(t *testing.T) {
	pnl, pct := computePnL(market.SideBuy, 100, 97, 2)
	if math.Abs(pnl-(-6)) > 1e-9 || math.Abs(pct-(-3)) > 1e-9 {
		t.Errorf("buy pnl: got %f (%f%%)", pnl, pct)
	}

	pnl, pct = computePnL(market.SideSell, 50, 47, 10)
	if math.Abs(pnl-30) > 1e-9 || math.Abs(pct-6) > 1e-9 {
		t.Errorf("sell pnl: got %f (%f%%)", pnl, pct)
	}
}
