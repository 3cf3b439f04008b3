// Package events is a small in-process pub/sub bus for engine events. The
// API layer subscribes to mirror recent activity; nothing on the trading
// path waits for subscribers.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPumpDetected  EventType = "PUMP_DETECTED"
	EventMoverDetected EventType = "MOVER_DETECTED"
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventTradeSkipped  EventType = "TRADE_SKIPPED"
	EventBalanceUpdate EventType = "BALANCE_UPDATE"
	EventBotStarted    EventType = "BOT_STARTED"
	EventBotStopped    EventType = "BOT_STOPPED"
	EventError         EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// historySize bounds the recent-event ring.
const historySize = 100

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
	history     []Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers without blocking the caller.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	eb.history = append(eb.history, event)
	if len(eb.history) > historySize {
		eb.history = eb.history[len(eb.history)-historySize:]
	}
	subs := append([]Subscriber(nil), eb.subscribers[event.Type]...)
	subs = append(subs, eb.allSubs...)
	eb.mu.Unlock()

	for _, sub := range subs {
		go sub(event)
	}
}

// Recent returns up to limit most recent events, newest last.
func (eb *EventBus) Recent(limit int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	n := len(eb.history)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Event, n)
	copy(out, eb.history[len(eb.history)-n:])
	return out
}

// PublishPumpDetected publishes a pump detection event
func (eb *EventBus) PublishPumpDetected(symbol string, changePercent, quality, price float64) {
	eb.Publish(Event{
		Type: EventPumpDetected,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"change_percent": changePercent,
			"quality_score":  quality,
			"price":          price,
		},
	})
}

// PublishMoverDetected publishes a top-mover detection event
func (eb *EventBus) PublishMoverDetected(symbol, signal string, finalScore, price float64) {
	eb.Publish(Event{
		Type: EventMoverDetected,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"signal":      signal,
			"final_score": finalScore,
			"price":       price,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(symbol, side, strategyName string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"strategy":    strategyName,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(symbol, reason string, exitPrice, pnl, pnlPercent float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"reason":      reason,
			"exit_price":  exitPrice,
			"pnl":         pnl,
			"pnl_percent": pnlPercent,
		},
	})
}

// PublishTradeSkipped publishes an admission rejection event
func (eb *EventBus) PublishTradeSkipped(symbol, strategyName, reason string) {
	eb.Publish(Event{
		Type: EventTradeSkipped,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"strategy": strategyName,
			"reason":   reason,
		},
	})
}

// PublishBalanceUpdate publishes a balance update event
func (eb *EventBus) PublishBalanceUpdate(balance, dailyPnL float64) {
	eb.Publish(Event{
		Type: EventBalanceUpdate,
		Data: map[string]interface{}{
			"balance":   balance,
			"daily_pnl": dailyPnL,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
