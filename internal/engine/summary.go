package engine

import (
	"context"
	"sync"
	"time"

	"cryptopump-bot/internal/database"
	"cryptopump-bot/internal/trading"
)

// SummaryStore persists end-of-day summaries. Implemented by the database
// repository.
type SummaryStore interface {
	SaveDailySummary(ctx context.Context, s *database.DailySummary) error
}

// summaryState snapshots the last observed day so the rollup fires exactly
// once per day change, with the figures as they stood at day end.
type summaryState struct {
	mu           sync.Mutex
	date         string
	lastProgress trading.DailyProgress
	startBalance float64
}

// SetSummaryStore wires the end-of-day summary sink. Call before Start.
func (e *Engine) SetSummaryStore(store SummaryStore) {
	e.summaries = store
}

// summaryOnRollover caches the day's progress every pass and, on the first
// pass of a new day, emits the cached previous-day figures.
func (e *Engine) summaryOnRollover(ctx context.Context) {
	e.summary.mu.Lock()
	defer e.summary.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	state := e.tracker.State()
	progress := e.tracker.DailyProgress()

	if e.summary.date == "" {
		e.summary.date = today
	}

	if e.summary.date != today {
		closedDate, err := time.Parse("2006-01-02", e.summary.date)
		if err != nil {
			closedDate = time.Now().UTC().AddDate(0, 0, -1)
		}
		e.emitSummary(ctx, closedDate, e.summary.lastProgress, e.summary.startBalance)
		e.summary.date = today
	}

	e.summary.lastProgress = progress
	e.summary.startBalance = state.DailyStartBalance
}

func (e *Engine) emitSummary(ctx context.Context, date time.Time, p trading.DailyProgress, startBalance float64) {
	e.log.WithFields(map[string]interface{}{
		"date":   date.Format("2006-01-02"),
		"pnl":    p.DailyPnL,
		"trades": p.TradesToday,
	}).Info("daily summary")

	if e.notifier != nil {
		if err := e.notifier.SendDailySummary(p); err != nil {
			e.log.WithError(err).Warn("daily summary notification failed")
		}
	}
	if e.bus != nil {
		e.bus.PublishBalanceUpdate(p.CurrentBalance, p.DailyPnL)
	}
	if e.summaries != nil {
		summary := &database.DailySummary{
			Date:         date,
			StartBalance: startBalance,
			EndBalance:   p.CurrentBalance,
			DailyPnL:     p.DailyPnL,
			Trades:       p.TradesToday,
			Wins:         p.WinsToday,
			Losses:       p.LossesToday,
		}
		if err := e.summaries.SaveDailySummary(ctx, summary); err != nil {
			e.log.WithError(err).Warn("daily summary persist failed")
		}
	}
}
