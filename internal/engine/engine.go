// Package engine drives the periodic scan, monitor and summary loops and
// wires signals through admission control into trade execution.
package engine

import (
	"context"
	"sync"
	"time"

	"cryptopump-bot/internal/events"
	"cryptopump-bot/internal/logging"
	"cryptopump-bot/internal/market"
	"cryptopump-bot/internal/metrics"
	"cryptopump-bot/internal/notification"
	"cryptopump-bot/internal/risk"
	"cryptopump-bot/internal/strategy"
	"cryptopump-bot/internal/trading"
)

// Config holds the loop intervals and trade parameters.
type Config struct {
	PumpScanInterval    time.Duration // default 30s
	MoverScanInterval   time.Duration // default 300s
	MonitorInterval     time.Duration // default 60s
	MaxSymbols          int           // universe size per scan
	PumpScanConcurrency int           // parallel symbol fetches in a pump scan

	StopLossPercent   float64
	TakeProfitPercent float64
}

// Engine runs the trading loops. Each loop is independent; a failing pass
// degrades to "nothing detected" and the next tick retries.
type Engine struct {
	cfg       Config
	gateway   market.Gateway
	detector  *strategy.PumpDetector
	scorer    *strategy.TopMoverScorer
	gate      *risk.Gate
	sizer     *risk.PositionSizer
	lifecycle *trading.Lifecycle
	tracker   *trading.BalanceTracker
	notifier  *notification.Manager
	bus       *events.EventBus
	summaries SummaryStore
	log       *logging.Logger

	summary  summaryState
	stopChan chan struct{}
	wg       sync.WaitGroup
	startOne sync.Once
	stopOne  sync.Once
}

// New assembles the engine. notifier and bus may be nil.
func New(
	cfg Config,
	gateway market.Gateway,
	detector *strategy.PumpDetector,
	scorer *strategy.TopMoverScorer,
	gate *risk.Gate,
	sizer *risk.PositionSizer,
	lifecycle *trading.Lifecycle,
	tracker *trading.BalanceTracker,
	notifier *notification.Manager,
	bus *events.EventBus,
) *Engine {
	if cfg.PumpScanInterval == 0 {
		cfg.PumpScanInterval = 30 * time.Second
	}
	if cfg.MoverScanInterval == 0 {
		cfg.MoverScanInterval = 300 * time.Second
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = 60 * time.Second
	}
	if cfg.MaxSymbols == 0 {
		cfg.MaxSymbols = 100
	}
	if cfg.PumpScanConcurrency == 0 {
		cfg.PumpScanConcurrency = 8
	}
	return &Engine{
		cfg:       cfg,
		gateway:   gateway,
		detector:  detector,
		scorer:    scorer,
		gate:      gate,
		sizer:     sizer,
		lifecycle: lifecycle,
		tracker:   tracker,
		notifier:  notifier,
		bus:       bus,
		log:       logging.WithComponent("engine"),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the periodic loops.
func (e *Engine) Start() {
	e.startOne.Do(func() {
		e.log.Info("engine starting")
		if e.bus != nil {
			e.bus.Publish(events.Event{Type: events.EventBotStarted})
		}

		e.wg.Add(4)
		go e.loop(e.cfg.PumpScanInterval, e.runPumpScan)
		go e.loop(e.cfg.MoverScanInterval, e.runMoverScan)
		go e.loop(e.cfg.MonitorInterval, e.runMonitor)
		go e.loop(time.Minute, e.runDailySummary)
	})
}

// Stop halts the loops and waits for in-flight passes to finish.
func (e *Engine) Stop() {
	e.stopOne.Do(func() {
		close(e.stopChan)
		e.wg.Wait()
		if e.bus != nil {
			e.bus.Publish(events.Event{Type: events.EventBotStopped})
		}
		e.log.Info("engine stopped")
	})
}

func (e *Engine) loop(interval time.Duration, pass func(ctx context.Context)) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			pass(ctx)
			cancel()
		case <-e.stopChan:
			return
		}
	}
}

// symbols returns the scan universe, empty on failure.
func (e *Engine) symbols(ctx context.Context) []string {
	symbols, err := e.gateway.HighVolumeSymbols(ctx, e.cfg.MaxSymbols)
	if err != nil {
		e.log.WithError(err).Warn("failed to load symbol universe")
		return nil
	}
	return symbols
}

// runPumpScan fetches candles for the universe in parallel, runs detection
// and routes qualifying signals into execution.
func (e *Engine) runPumpScan(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("pump").Observe(time.Since(started).Seconds())
	}()

	symbols := e.symbols(ctx)
	if len(symbols) == 0 {
		return
	}

	var mu sync.Mutex
	var detected []*strategy.PumpSignal

	sem := make(chan struct{}, e.cfg.PumpScanConcurrency)
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			candles, err := e.gateway.GetCandles(ctx, symbol, market.Interval, 60)
			if err != nil {
				metrics.ScanErrors.WithLabelValues("pump").Inc()
				e.log.WithError(err).WithField("symbol", symbol).Debug("candle fetch failed, skipping")
				return
			}
			if sig := e.detector.Detect(ctx, symbol, candles); sig != nil {
				mu.Lock()
				detected = append(detected, sig)
				mu.Unlock()
			}
		}(symbol)
	}
	wg.Wait()

	for _, sig := range detected {
		e.handlePumpSignal(ctx, sig)
	}
}

func (e *Engine) handlePumpSignal(ctx context.Context, sig *strategy.PumpSignal) {
	if e.bus != nil {
		e.bus.PublishPumpDetected(sig.Symbol, sig.PriceChangePercent, sig.QualityScore, sig.CurrentPrice)
	}
	if e.notifier != nil {
		if err := e.notifier.SendPumpSignal(sig); err != nil {
			e.log.WithError(err).Debug("pump notification failed")
		}
	}

	ok, reason := e.gate.AdmitPump(ctx, sig)
	if !ok {
		metrics.PumpsDetected.WithLabelValues("rejected").Inc()
		metrics.TradesSkipped.WithLabelValues(string(strategy.KindPump)).Inc()
		e.log.WithFields(map[string]interface{}{"symbol": sig.Symbol, "reason": reason}).Info("pump not admitted")
		if e.bus != nil {
			e.bus.PublishTradeSkipped(sig.Symbol, string(strategy.KindPump), reason)
		}
		return
	}
	metrics.PumpsDetected.WithLabelValues("admitted").Inc()

	e.openTrade(ctx, trading.OpenRequest{
		Symbol:            sig.Symbol,
		Side:              market.SideBuy,
		Strategy:          strategy.KindPump,
		StopLossPercent:   e.cfg.StopLossPercent,
		TakeProfitPercent: e.cfg.TakeProfitPercent,
	}, func(freeBalance float64) float64 {
		return e.sizer.SizePump(sig, freeBalance)
	})
}

// runMoverScan scores the universe and routes qualifying movers into
// execution.
func (e *Engine) runMoverScan(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("mover").Observe(time.Since(started).Seconds())
	}()

	symbols := e.symbols(ctx)
	if len(symbols) == 0 {
		return
	}

	analyses := e.scorer.Scan(ctx, symbols)
	for i := range analyses {
		a := &analyses[i]
		metrics.MoversDetected.WithLabelValues(string(a.FinalSignal)).Inc()
		if e.bus != nil {
			e.bus.PublishMoverDetected(a.Symbol, string(a.FinalSignal), a.FinalScore, a.CurrentPrice)
		}

		if !e.scorer.ShouldTrade(a) {
			continue
		}
		if e.notifier != nil {
			if err := e.notifier.SendMoverSignal(a); err != nil {
				e.log.WithError(err).Debug("mover notification failed")
			}
		}

		ok, reason := e.gate.AdmitMover(ctx)
		if !ok {
			metrics.TradesSkipped.WithLabelValues(string(strategy.KindTopMover)).Inc()
			e.log.WithFields(map[string]interface{}{"symbol": a.Symbol, "reason": reason}).Info("mover not admitted")
			if e.bus != nil {
				e.bus.PublishTradeSkipped(a.Symbol, string(strategy.KindTopMover), reason)
			}
			continue
		}

		analysis := a
		e.openTrade(ctx, trading.OpenRequest{
			Symbol:            a.Symbol,
			Side:              market.SideFor(a.FinalSignal),
			Strategy:          strategy.KindTopMover,
			StopLossPercent:   e.cfg.StopLossPercent,
			TakeProfitPercent: e.cfg.TakeProfitPercent,
		}, func(freeBalance float64) float64 {
			return e.sizer.SizeMover(analysis, freeBalance)
		})
	}
}

// openTrade sizes and executes an admitted signal. size receives the free
// quote balance and returns the notional to commit.
func (e *Engine) openTrade(ctx context.Context, req trading.OpenRequest, size func(freeBalance float64) float64) {
	balance, err := e.gateway.GetBalance(ctx)
	if err != nil {
		e.log.WithError(err).Error("balance fetch failed, skipping trade")
		return
	}

	amount := size(balance.Free)
	if amount <= 0 {
		e.log.WithField("symbol", req.Symbol).Debug("sized to zero, not trading")
		return
	}
	if ok, reason := e.tracker.CanTrade(ctx, amount); !ok {
		e.log.WithFields(map[string]interface{}{"symbol": req.Symbol, "reason": reason}).Info("trade blocked")
		return
	}

	req.QuoteAmount = amount
	trade, err := e.lifecycle.Open(ctx, req)
	if err != nil {
		e.log.WithError(err).WithField("symbol", req.Symbol).Error("trade open failed")
		if e.notifier != nil {
			e.notifier.SendError("Trade open failed", err.Error())
		}
		return
	}

	metrics.TradesOpened.WithLabelValues(string(trade.Strategy), string(trade.Side)).Inc()
	metrics.OpenTrades.Inc()
	if e.bus != nil {
		e.bus.PublishTradeOpened(trade.Symbol, string(trade.Side), string(trade.Strategy), trade.EntryPrice, trade.Quantity)
	}
}

// runMonitor walks open trades and settles breached exits.
func (e *Engine) runMonitor(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("monitor").Observe(time.Since(started).Seconds())
	}()

	closed, err := e.lifecycle.Monitor(ctx)
	if err != nil {
		metrics.ScanErrors.WithLabelValues("monitor").Inc()
		e.log.WithError(err).Error("monitor pass failed")
	}
	for i := range closed {
		trade := &closed[i]
		metrics.TradesClosed.WithLabelValues(string(trade.Strategy), string(trade.CloseReason)).Inc()
		metrics.OpenTrades.Dec()
		if e.bus != nil {
			e.bus.PublishTradeClosed(trade.Symbol, string(trade.CloseReason), trade.ExitPrice, trade.PnL, trade.PnLPercent)
		}
	}

	state := e.tracker.State()
	metrics.CurrentBalance.Set(state.CurrentBalance)
	metrics.DailyPnL.Set(state.DailyPnL)
}

// runDailySummary sends the previous day's rollup once per day change.
func (e *Engine) runDailySummary(ctx context.Context) {
	e.summaryOnRollover(ctx)
}
