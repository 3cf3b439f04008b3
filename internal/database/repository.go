package database

import (
	"context"
	"time"

	"cryptopump-bot/internal/risk"
	"cryptopump-bot/internal/strategy"
	"cryptopump-bot/internal/trading"
)

// Repository provides data access on top of the connection pool. It
// implements the store interfaces consumed by the strategy, risk and
// trading packages.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies the database connection
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

var (
	_ trading.TradeStore   = (*Repository)(nil)
	_ strategy.SignalStore = (*Repository)(nil)
	_ risk.TradeHistory    = (*Repository)(nil)
)

// ============================================================================
// TRADES
// ============================================================================

const tradeColumns = `id, client_order_id, symbol, side, strategy, entry_price, quantity,
	stop_loss, take_profit, trailing_stop_percent, status, exit_price, pnl, pnl_percent,
	close_reason, opened_at, closed_at`

// InsertTrade inserts a new open trade
func (r *Repository) InsertTrade(ctx context.Context, trade *trading.Trade) error {
	query := `
		INSERT INTO trades (client_order_id, symbol, side, strategy, entry_price, quantity,
			stop_loss, take_profit, trailing_stop_percent, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.ClientOrderID, trade.Symbol, trade.Side, trade.Strategy, trade.EntryPrice,
		trade.Quantity, trade.StopLoss, trade.TakeProfit, trade.TrailingStopPercent,
		trade.Status, trade.OpenedAt,
	).Scan(&trade.ID)
}

// CloseTrade applies the full close-side update in one conditional write.
// The WHERE clause serializes concurrent closes: only the first caller
// observes an open row, later callers get false.
func (r *Repository) CloseTrade(ctx context.Context, id int64, close trading.TradeClose) (bool, error) {
	query := `
		UPDATE trades
		SET status = 'closed', exit_price = $2, pnl = $3, pnl_percent = $4,
			close_reason = $5, closed_at = $6
		WHERE id = $1 AND status = 'open'
	`
	tag, err := r.db.Pool.Exec(
		ctx, query,
		id, close.ExitPrice, close.PnL, close.PnLPercent, close.Reason, close.ClosedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// OpenTrades retrieves all open trades
func (r *Repository) OpenTrades(ctx context.Context) ([]trading.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = 'open' ORDER BY opened_at`
	return r.queryTrades(ctx, query)
}

// ClosedTrades retrieves closed trades with pagination, most recent first
func (r *Repository) ClosedTrades(ctx context.Context, limit, offset int) ([]trading.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = 'closed'
		ORDER BY closed_at DESC LIMIT $1 OFFSET $2`
	return r.queryTrades(ctx, query, limit, offset)
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]trading.Trade, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []trading.Trade
	for rows.Next() {
		var t trading.Trade
		var exitPrice, pnl, pnlPercent *float64
		var closeReason *string
		err := rows.Scan(
			&t.ID, &t.ClientOrderID, &t.Symbol, &t.Side, &t.Strategy, &t.EntryPrice,
			&t.Quantity, &t.StopLoss, &t.TakeProfit, &t.TrailingStopPercent, &t.Status,
			&exitPrice, &pnl, &pnlPercent, &closeReason, &t.OpenedAt, &t.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		if exitPrice != nil {
			t.ExitPrice = *exitPrice
		}
		if pnl != nil {
			t.PnL = *pnl
		}
		if pnlPercent != nil {
			t.PnLPercent = *pnlPercent
		}
		if closeReason != nil {
			t.CloseReason = trading.CloseReason(*closeReason)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// OpenTradeCount counts trades currently open
func (r *Repository) OpenTradeCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE status = 'open'`).Scan(&count)
	return count, err
}

// ClosedTradesSince returns the strategy/pnl/close-time slice of trades
// closed at or after since, in chronological close order.
func (r *Repository) ClosedTradesSince(ctx context.Context, since time.Time) ([]risk.ClosedTrade, error) {
	query := `
		SELECT strategy, pnl, closed_at
		FROM trades
		WHERE status = 'closed' AND closed_at >= $1
		ORDER BY closed_at
	`
	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []risk.ClosedTrade
	for rows.Next() {
		var t risk.ClosedTrade
		if err := rows.Scan(&t.Strategy, &t.PnL, &t.ClosedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ============================================================================
// SIGNALS
// ============================================================================

// SavePumpSignal persists a detected pump signal
func (r *Repository) SavePumpSignal(ctx context.Context, signal *strategy.PumpSignal) error {
	query := `
		INSERT INTO pump_signals (symbol, detected_at, price_change_percent, volume_multiplier,
			time_window_seconds, current_price, quality_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		signal.Symbol, signal.DetectedAt, signal.PriceChangePercent, signal.VolumeMultiplier,
		signal.TimeWindowSeconds, signal.CurrentPrice, signal.QualityScore,
	).Scan(&signal.ID)
}

// SaveMoverAnalysis persists a scored top-mover analysis
func (r *Repository) SaveMoverAnalysis(ctx context.Context, analysis *strategy.MoverAnalysis) error {
	query := `
		INSERT INTO top_mover_signals (symbol, detected_at, price_change_percent,
			technical_score, model_score, final_score, technical_signal, model_signal,
			final_signal, volatility, volume_ratio, current_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		analysis.Symbol, analysis.DetectedAt, analysis.PriceChangePercent,
		analysis.TechnicalScore, analysis.ModelScore, analysis.FinalScore,
		analysis.TechnicalSignal, analysis.ModelSignal, analysis.FinalSignal,
		analysis.Volatility, analysis.VolumeRatio, analysis.CurrentPrice,
	).Scan(&analysis.ID)
}

// RecentPumpSignals retrieves the latest pump signals, most recent first
func (r *Repository) RecentPumpSignals(ctx context.Context, limit int) ([]strategy.PumpSignal, error) {
	query := `
		SELECT id, symbol, detected_at, price_change_percent, volume_multiplier,
			time_window_seconds, current_price, quality_score
		FROM pump_signals
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []strategy.PumpSignal
	for rows.Next() {
		var s strategy.PumpSignal
		err := rows.Scan(
			&s.ID, &s.Symbol, &s.DetectedAt, &s.PriceChangePercent, &s.VolumeMultiplier,
			&s.TimeWindowSeconds, &s.CurrentPrice, &s.QualityScore,
		)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// RecentMoverAnalyses retrieves the latest mover analyses, most recent first
func (r *Repository) RecentMoverAnalyses(ctx context.Context, limit int) ([]strategy.MoverAnalysis, error) {
	query := `
		SELECT id, symbol, detected_at, price_change_percent, technical_score, model_score,
			final_score, technical_signal, model_signal, final_signal, volatility,
			volume_ratio, current_price
		FROM top_mover_signals
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []strategy.MoverAnalysis
	for rows.Next() {
		var a strategy.MoverAnalysis
		err := rows.Scan(
			&a.ID, &a.Symbol, &a.DetectedAt, &a.PriceChangePercent, &a.TechnicalScore,
			&a.ModelScore, &a.FinalScore, &a.TechnicalSignal, &a.ModelSignal,
			&a.FinalSignal, &a.Volatility, &a.VolumeRatio, &a.CurrentPrice,
		)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// ============================================================================
// DAILY SUMMARIES
// ============================================================================

// DailySummary is one day's closed performance.
type DailySummary struct {
	Date         time.Time `json:"date"`
	StartBalance float64   `json:"start_balance"`
	EndBalance   float64   `json:"end_balance"`
	DailyPnL     float64   `json:"daily_pnl"`
	Trades       int       `json:"trades"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
}

// SaveDailySummary upserts the summary row for its date
func (r *Repository) SaveDailySummary(ctx context.Context, s *DailySummary) error {
	query := `
		INSERT INTO daily_summaries (summary_date, start_balance, end_balance, daily_pnl, trades, wins, losses)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (summary_date) DO UPDATE
		SET start_balance = EXCLUDED.start_balance, end_balance = EXCLUDED.end_balance,
			daily_pnl = EXCLUDED.daily_pnl, trades = EXCLUDED.trades,
			wins = EXCLUDED.wins, losses = EXCLUDED.losses
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		s.Date, s.StartBalance, s.EndBalance, s.DailyPnL, s.Trades, s.Wins, s.Losses,
	)
	return err
}
