package trading

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// dateLayout is the calendar-day key used for daily rollover.
const dateLayout = "2006-01-02"

// BalanceState is the persisted balance snapshot. All daily figures are
// relative to LastResetDate.
type BalanceState struct {
	InitialBalance    float64 `json:"initial_balance"`
	CurrentBalance    float64 `json:"current_balance"`
	DailyStartBalance float64 `json:"daily_start_balance"`
	DailyPnL          float64 `json:"daily_pnl"`
	TotalPnL          float64 `json:"total_pnl"`
	TotalPnLPercent   float64 `json:"total_pnl_percent"`
	TradesToday       int     `json:"trades_today"`
	WinsToday         int     `json:"wins_today"`
	LossesToday       int     `json:"losses_today"`
	LastResetDate     string  `json:"last_reset_date"`
}

// BalanceStore persists balance snapshots between runs.
type BalanceStore interface {
	SaveBalanceState(ctx context.Context, state *BalanceState) error
	LoadBalanceState(ctx context.Context) (*BalanceState, error)
}

// OpenTradeCounter reports how many trades are currently open.
type OpenTradeCounter interface {
	OpenTradeCount(ctx context.Context) (int, error)
}

// TrackerConfig holds the balance targets and limits.
type TrackerConfig struct {
	InitialBalance        float64
	DailyTargetPercentage float64 // daily profit goal as a fraction of the day's start balance
	MaxDailyLoss          float64 // daily loss cap as a fraction of the day's start balance
	MaxConcurrentTrades   int
}

// DailyProgress is a point-in-time view of the day's performance.
type DailyProgress struct {
	CurrentBalance float64 `json:"current_balance"`
	DailyTarget    float64 `json:"daily_target"`
	DailyPnL       float64 `json:"daily_pnl"`
	ProgressPct    float64 `json:"progress_percent"`
	Remaining      float64 `json:"remaining"`
	TradesToday    int     `json:"trades_today"`
	WinsToday      int     `json:"wins_today"`
	LossesToday    int     `json:"losses_today"`
}

// BalanceTracker maintains the running balance and daily P&L bookkeeping
// derived from closed trades. Day rollover happens lazily on the first
// operation of a new calendar day and is idempotent per day.
type BalanceTracker struct {
	mu      sync.Mutex
	state   BalanceState
	cfg     TrackerConfig
	store   BalanceStore
	counter OpenTradeCounter
	logger  zerolog.Logger

	now func() time.Time
}

// NewBalanceTracker restores the last snapshot, or starts fresh from the
// configured initial balance when none exists.
func NewBalanceTracker(ctx context.Context, cfg TrackerConfig, store BalanceStore, counter OpenTradeCounter, logger zerolog.Logger) *BalanceTracker {
	t := &BalanceTracker{
		cfg:     cfg,
		store:   store,
		counter: counter,
		logger:  logger.With().Str("component", "BalanceTracker").Logger(),
		now:     time.Now,
	}

	restored := false
	if store != nil {
		if state, err := store.LoadBalanceState(ctx); err != nil {
			t.logger.Warn().Err(err).Msg("failed to load balance snapshot, starting fresh")
		} else if state != nil {
			// A snapshot with a zero balance is still a snapshot: a fully
			// drawn-down account must not restart from the initial balance.
			t.state = *state
			restored = true
		}
	}
	if !restored {
		t.state = BalanceState{
			InitialBalance:    cfg.InitialBalance,
			CurrentBalance:    cfg.InitialBalance,
			DailyStartBalance: cfg.InitialBalance,
			LastResetDate:     t.now().UTC().Format(dateLayout),
		}
	}
	return t
}

// rollover resets the daily figures on the first call of a new calendar
// day. Callers must hold the lock.
func (t *BalanceTracker) rollover() {
	today := t.now().UTC().Format(dateLayout)
	if t.state.LastResetDate == today {
		return
	}

	t.logger.Info().
		Str("date", today).
		Float64("start_balance", t.state.CurrentBalance).
		Msg("daily rollover")

	t.state.DailyStartBalance = t.state.CurrentBalance
	t.state.DailyPnL = 0
	t.state.TradesToday = 0
	t.state.WinsToday = 0
	t.state.LossesToday = 0
	t.state.LastResetDate = today
}

// Record absorbs a closed trade into the running figures and persists the
// updated snapshot.
func (t *BalanceTracker) Record(ctx context.Context, trade *Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	t.state.CurrentBalance += trade.PnL
	t.state.DailyPnL += trade.PnL
	t.state.TotalPnL += trade.PnL
	if t.state.InitialBalance > 0 {
		t.state.TotalPnLPercent = t.state.TotalPnL / t.state.InitialBalance * 100
	}
	t.state.TradesToday++
	// Break-even trades count as losses.
	if trade.PnL > 0 {
		t.state.WinsToday++
	} else {
		t.state.LossesToday++
	}

	if t.store != nil {
		if err := t.store.SaveBalanceState(ctx, &t.state); err != nil {
			t.logger.Error().Err(err).Msg("failed to persist balance snapshot")
		}
	}
}

// DailyProgress reports the day's figures against the daily target.
func (t *BalanceTracker) DailyProgress() DailyProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	target := t.state.DailyStartBalance * t.cfg.DailyTargetPercentage
	progress := 0.0
	if target > 0 {
		progress = t.state.DailyPnL / target * 100
	}
	return DailyProgress{
		CurrentBalance: t.state.CurrentBalance,
		DailyTarget:    target,
		DailyPnL:       t.state.DailyPnL,
		ProgressPct:    progress,
		Remaining:      target - t.state.DailyPnL,
		TradesToday:    t.state.TradesToday,
		WinsToday:      t.state.WinsToday,
		LossesToday:    t.state.LossesToday,
	}
}

// BalanceSummary is the full account view: lifetime figures plus the
// day's progress.
type BalanceSummary struct {
	InitialBalance  float64       `json:"initial_balance"`
	CurrentBalance  float64       `json:"current_balance"`
	TotalPnL        float64       `json:"total_pnl"`
	TotalPnLPercent float64       `json:"total_pnl_percent"`
	WinRateToday    float64       `json:"win_rate_today"`
	LastResetDate   string        `json:"last_reset_date"`
	Daily           DailyProgress `json:"daily"`
}

// Summary reports the lifetime and daily figures in one snapshot.
func (t *BalanceTracker) Summary() BalanceSummary {
	daily := t.DailyProgress()

	t.mu.Lock()
	defer t.mu.Unlock()

	winRate := 0.0
	if t.state.TradesToday > 0 {
		winRate = float64(t.state.WinsToday) / float64(t.state.TradesToday) * 100
	}
	return BalanceSummary{
		InitialBalance:  t.state.InitialBalance,
		CurrentBalance:  t.state.CurrentBalance,
		TotalPnL:        t.state.TotalPnL,
		TotalPnLPercent: t.state.TotalPnLPercent,
		WinRateToday:    winRate,
		LastResetDate:   t.state.LastResetDate,
		Daily:           daily,
	}
}

// IsDailyTargetReached reports whether the daily profit goal is met.
func (t *BalanceTracker) IsDailyTargetReached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.state.DailyPnL >= t.state.DailyStartBalance*t.cfg.DailyTargetPercentage
}

// DailyLossExceeded reports whether today's losses breach the daily cap.
func (t *BalanceTracker) DailyLossExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.state.DailyPnL < -(t.state.DailyStartBalance * t.cfg.MaxDailyLoss)
}

// CanTrade approves a proposed notional amount against the daily loss cap
// and the concurrent-trade limit.
func (t *BalanceTracker) CanTrade(ctx context.Context, amount float64) (bool, string) {
	if amount <= 0 {
		return false, "non-positive amount"
	}
	if t.DailyLossExceeded() {
		return false, "daily loss cap reached"
	}
	if t.counter != nil {
		open, err := t.counter.OpenTradeCount(ctx)
		if err != nil {
			t.logger.Error().Err(err).Msg("failed to count open trades")
			return false, "trade history unavailable"
		}
		if open >= t.cfg.MaxConcurrentTrades {
			return false, "max concurrent trades reached"
		}
	}
	return true, ""
}

// State returns a copy of the current snapshot.
func (t *BalanceTracker) State() BalanceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.state
}
