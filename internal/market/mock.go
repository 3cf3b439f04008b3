package market

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is an in-memory Gateway for dry runs and tests. Candles and
// prices are seeded by the caller; orders fill instantly at the seeded price.
type MockGateway struct {
	mu      sync.RWMutex
	candles map[string][]Candle
	prices  map[string]float64
	balance Balance
	nextID  int64

	// Orders records every executed intent for assertions.
	Orders []OrderIntent
}

// NewMockGateway creates an empty mock with the given starting balance.
func NewMockGateway(freeBalance float64) *MockGateway {
	return &MockGateway{
		candles: make(map[string][]Candle),
		prices:  make(map[string]float64),
		balance: Balance{Free: freeBalance, Total: freeBalance},
		nextID:  1,
	}
}

var _ Gateway = (*MockGateway)(nil)

// SetCandles seeds the candle series for a symbol and derives its price from
// the last close.
func (m *MockGateway) SetCandles(symbol string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = candles
	if len(candles) > 0 {
		m.prices[symbol] = candles[len(candles)-1].Close
	}
}

// SetPrice overrides the current price for a symbol.
func (m *MockGateway) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

func (m *MockGateway) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	candles, ok := m.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, symbol)
	}
	return Tail(candles, limit), nil
}

func (m *MockGateway) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrDataUnavailable, symbol)
	}
	return price, nil
}

func (m *MockGateway) GetBalance(ctx context.Context) (Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance, nil
}

func (m *MockGateway) ExecuteOrder(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[intent.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no price for %s", ErrOrderRejected, intent.Symbol)
	}

	m.Orders = append(m.Orders, *intent)
	id := m.nextID
	m.nextID++

	qty := intent.Quantity
	if qty == 0 && price > 0 {
		qty = intent.QuoteAmount / price
	}

	return &ExecutionResult{
		OrderID:     id,
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Price:       price,
		ExecutedQty: qty,
		QuoteQty:    qty * price,
	}, nil
}

func (m *MockGateway) HighVolumeSymbols(ctx context.Context, max int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbols := make([]string, 0, len(m.candles))
	for s := range m.candles {
		symbols = append(symbols, s)
	}
	if max > 0 && len(symbols) > max {
		symbols = symbols[:max]
	}
	return symbols, nil
}
