package market

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by Gateway implementations.
var (
	// ErrDataUnavailable means the symbol/interval could not be served. Scans
	// treat it as a per-symbol skip, never as a batch failure.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientLiquidity means the order notional is too large for the
	// symbol's current depth/volume.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrOrderRejected means the exchange refused the order.
	ErrOrderRejected = errors.New("order rejected")
)

// Balance holds the quote-currency account balance.
type Balance struct {
	Free  float64 `json:"free"`
	Total float64 `json:"total"`
}

// OrderIntent describes a market order the engine wants filled. StopLoss and
// TakeProfit are informational for the exchange-side bracket; the lifecycle
// monitor enforces them regardless.
type OrderIntent struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // "BUY" or "SELL"
	Quantity      float64 `json:"quantity"`
	QuoteAmount   float64 `json:"quote_amount"`
	StopLoss      float64 `json:"stop_loss,omitempty"`
	TakeProfit    float64 `json:"take_profit,omitempty"`
	ClientOrderID string  `json:"client_order_id"`
}

// ExecutionResult is the fill confirmation for an OrderIntent.
type ExecutionResult struct {
	OrderID     int64   `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	ExecutedQty float64 `json:"executed_qty"`
	QuoteQty    float64 `json:"quote_qty"`
}

// Gateway is the exchange collaborator consumed by the decision engine.
// Implementations must tolerate concurrent calls.
type Gateway interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetBalance(ctx context.Context) (Balance, error)
	ExecuteOrder(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error)
	HighVolumeSymbols(ctx context.Context, max int) ([]string, error)
}
