// Package trading owns the trade state machine and balance bookkeeping.
// Trades move PENDING -> OPEN -> CLOSED; a closed trade is terminal and all
// close-side fields are written atomically in one store update.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/strategy"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	StatusPending TradeStatus = "pending"
	StatusOpen    TradeStatus = "open"
	StatusClosed  TradeStatus = "closed"
)

// CloseReason records why a trade was closed.
type CloseReason string

const (
	ReasonStopLoss   CloseReason = "stop_loss"
	ReasonTakeProfit CloseReason = "take_profit"
	ReasonManual     CloseReason = "manual"
)

// Trade is a single position from open to close. Owned exclusively by the
// Lifecycle until closed; never reopened.
type Trade struct {
	ID            int64         `json:"id"`
	ClientOrderID string        `json:"client_order_id"`
	Symbol        string        `json:"symbol"`
	Side          market.Side   `json:"side"`
	Strategy      strategy.Kind `json:"strategy"`
	EntryPrice    float64       `json:"entry_price"`
	Quantity      float64       `json:"quantity"`
	StopLoss      float64       `json:"stop_loss"`
	TakeProfit    float64       `json:"take_profit"`

	// Declared for future trailing-stop support; nothing updates it yet.
	TrailingStopPercent float64 `json:"trailing_stop_percent,omitempty"`

	Status      TradeStatus `json:"status"`
	ExitPrice   float64     `json:"exit_price,omitempty"`
	PnL         float64     `json:"pnl,omitempty"`
	PnLPercent  float64     `json:"pnl_percent,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	OpenedAt    time.Time   `json:"opened_at"`
	ClosedAt    *time.Time  `json:"closed_at,omitempty"`
}

// TradeClose carries the full close-side update applied in one store write.
type TradeClose struct {
	ExitPrice  float64
	PnL        float64
	PnLPercent float64
	Reason     CloseReason
	ClosedAt   time.Time
}

// TradeStore persists trades. CloseTrade must be atomic and conditional on
// the trade still being open; it reports false when the trade was already
// closed or does not exist.
type TradeStore interface {
	InsertTrade(ctx context.Context, trade *Trade) error
	CloseTrade(ctx context.Context, id int64, close TradeClose) (bool, error)
	OpenTrades(ctx context.Context) ([]Trade, error)
}

// TradeNotifier receives lifecycle events. Failures never block trading.
type TradeNotifier interface {
	SendTradeOpen(symbol, side string, price, quantity float64) error
	SendTradeClose(symbol string, entryPrice, exitPrice, pnl, pnlPercent float64, reason string) error
}

// TradeRecorder absorbs closed trades into balance accounting.
type TradeRecorder interface {
	Record(ctx context.Context, trade *Trade)
}

// OpenRequest describes a position to open with a market order.
type OpenRequest struct {
	Symbol            string
	Side              market.Side
	Strategy          strategy.Kind
	QuoteAmount       float64
	StopLossPercent   float64
	TakeProfitPercent float64
}

// Lifecycle executes entries, monitors open trades and settles closes.
type Lifecycle struct {
	store    TradeStore
	gateway  market.Gateway
	notifier TradeNotifier
	recorder TradeRecorder
	logger   zerolog.Logger

	now func() time.Time
}

// NewLifecycle wires the state machine to its collaborators. notifier and
// recorder may be nil.
func NewLifecycle(store TradeStore, gateway market.Gateway, notifier TradeNotifier, recorder TradeRecorder, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With().Str("component", "TradeLifecycle").Logger(),
		now:      time.Now,
	}
}

// Open executes a market order and records the resulting trade as OPEN.
// A failed execution leaves no trade row behind.
func (l *Lifecycle) Open(ctx context.Context, req OpenRequest) (*Trade, error) {
	if req.QuoteAmount <= 0 {
		return nil, fmt.Errorf("invalid quote amount %.4f for %s", req.QuoteAmount, req.Symbol)
	}

	intent := &market.OrderIntent{
		Symbol:        req.Symbol,
		Side:          req.Side.Order(),
		QuoteAmount:   req.QuoteAmount,
		ClientOrderID: uuid.NewString(),
	}
	result, err := l.gateway.ExecuteOrder(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("order execution failed for %s: %w", req.Symbol, err)
	}

	stopLoss, takeProfit := exitLevels(req.Side, result.Price, req.StopLossPercent, req.TakeProfitPercent)
	trade := &Trade{
		ClientOrderID: intent.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Strategy:      req.Strategy,
		EntryPrice:    result.Price,
		Quantity:      result.ExecutedQty,
		StopLoss:      stopLoss,
		TakeProfit:    takeProfit,
		Status:        StatusOpen,
		OpenedAt:      l.now(),
	}
	if err := l.store.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to persist trade for %s: %w", req.Symbol, err)
	}

	l.logger.Info().
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Str("strategy", string(trade.Strategy)).
		Float64("entry", trade.EntryPrice).
		Float64("qty", trade.Quantity).
		Msg("trade opened")

	if l.notifier != nil {
		if err := l.notifier.SendTradeOpen(trade.Symbol, string(trade.Side), trade.EntryPrice, trade.Quantity); err != nil {
			l.logger.Warn().Err(err).Msg("open notification failed")
		}
	}
	return trade, nil
}

// Monitor checks every open trade against its exit levels using the latest
// price and returns the trades settled this pass. Stop-loss is evaluated
// before take-profit: when a price gap breaches both levels at once, the
// trade settles as a stop-loss.
func (l *Lifecycle) Monitor(ctx context.Context) ([]Trade, error) {
	trades, err := l.store.OpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open trades: %w", err)
	}

	var closed []Trade
	for i := range trades {
		trade := &trades[i]
		price, err := l.gateway.GetCurrentPrice(ctx, trade.Symbol)
		if err != nil {
			l.logger.Warn().Err(err).Str("symbol", trade.Symbol).Msg("price fetch failed, skipping")
			continue
		}

		switch {
		case breachesStopLoss(trade, price):
			if l.Close(ctx, trade, price, ReasonStopLoss) {
				closed = append(closed, *trade)
			}
		case breachesTakeProfit(trade, price):
			if l.Close(ctx, trade, price, ReasonTakeProfit) {
				closed = append(closed, *trade)
			}
		}
	}
	return closed, nil
}

// Close settles an open trade at exitPrice and reports whether this call
// committed the close. Closing an already-closed or unknown trade is a
// logged no-op; concurrent closes are serialized by the store's conditional
// update and the loser changes nothing.
func (l *Lifecycle) Close(ctx context.Context, trade *Trade, exitPrice float64, reason CloseReason) bool {
	pnl, pnlPercent := computePnL(trade.Side, trade.EntryPrice, exitPrice, trade.Quantity)
	update := TradeClose{
		ExitPrice:  exitPrice,
		PnL:        pnl,
		PnLPercent: pnlPercent,
		Reason:     reason,
		ClosedAt:   l.now(),
	}

	closed, err := l.store.CloseTrade(ctx, trade.ID, update)
	if err != nil {
		l.logger.Error().Err(err).Int64("trade_id", trade.ID).Msg("close persist failed, will retry next cycle")
		return false
	}
	if !closed {
		l.logger.Debug().Int64("trade_id", trade.ID).Msg("close skipped, trade already closed")
		return false
	}

	trade.Status = StatusClosed
	trade.ExitPrice = update.ExitPrice
	trade.PnL = update.PnL
	trade.PnLPercent = update.PnLPercent
	trade.CloseReason = update.Reason
	trade.ClosedAt = &update.ClosedAt

	// Flatten the position on the exchange. The books are already settled;
	// an execution failure here needs operator attention.
	exit := &market.OrderIntent{
		Symbol:        trade.Symbol,
		Side:          trade.Side.Opposite().Order(),
		Quantity:      trade.Quantity,
		ClientOrderID: uuid.NewString(),
	}
	if _, err := l.gateway.ExecuteOrder(ctx, exit); err != nil {
		l.logger.Error().Err(err).Str("symbol", trade.Symbol).Msg("exit order failed")
	}

	l.logger.Info().
		Str("symbol", trade.Symbol).
		Str("reason", string(reason)).
		Float64("exit", exitPrice).
		Float64("pnl", pnl).
		Float64("pnl_percent", pnlPercent).
		Msg("trade closed")

	if l.recorder != nil {
		l.recorder.Record(ctx, trade)
	}
	if l.notifier != nil {
		if err := l.notifier.SendTradeClose(trade.Symbol, trade.EntryPrice, exitPrice, pnl, pnlPercent, string(reason)); err != nil {
			l.logger.Warn().Err(err).Msg("close notification failed")
		}
	}
	return true
}

// exitLevels derives stop-loss and take-profit prices from the entry.
func exitLevels(side market.Side, entry, stopLossPct, takeProfitPct float64) (stopLoss, takeProfit float64) {
	switch side {
	case market.SideSell:
		return entry * (1 + stopLossPct/100), entry * (1 - takeProfitPct/100)
	default:
		return entry * (1 - stopLossPct/100), entry * (1 + takeProfitPct/100)
	}
}

func breachesStopLoss(trade *Trade, price float64) bool {
	if trade.Side == market.SideBuy {
		return price <= trade.StopLoss
	}
	return price >= trade.StopLoss
}

func breachesTakeProfit(trade *Trade, price float64) bool {
	if trade.Side == market.SideBuy {
		return price >= trade.TakeProfit
	}
	return price <= trade.TakeProfit
}

// computePnL returns realized profit and its percentage of the entry
// notional. Sells profit when price falls.
func computePnL(side market.Side, entry, exit, quantity float64) (pnl, pnlPercent float64) {
	if side == market.SideSell {
		pnl = (entry - exit) * quantity
	} else {
		pnl = (exit - entry) * quantity
	}
	notional := entry * quantity
	if notional != 0 {
		pnlPercent = pnl / notional * 100
	}
	return pnl, pnlPercent
}
