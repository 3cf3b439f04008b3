// Package database holds the PostgreSQL repository for trades and signals
// and the Redis-backed balance snapshot store.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cryptopump-bot/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.WithComponent("database").Info("connected to PostgreSQL database %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.WithComponent("database").Info("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log := logging.WithComponent("database")
	log.Info("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			client_order_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			strategy VARCHAR(16) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8) NOT NULL,
			trailing_stop_percent DECIMAL(10, 4) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'open',
			exit_price DECIMAL(20, 8),
			pnl DECIMAL(20, 8),
			pnl_percent DECIMAL(10, 4),
			close_reason VARCHAR(16),
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,

		`CREATE TABLE IF NOT EXISTS pump_signals (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			price_change_percent DECIMAL(10, 4) NOT NULL,
			volume_multiplier DECIMAL(10, 4) NOT NULL,
			time_window_seconds INT NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			quality_score DECIMAL(6, 2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pump_signals_symbol ON pump_signals(symbol, detected_at)`,

		`CREATE TABLE IF NOT EXISTS top_mover_signals (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL,
			price_change_percent DECIMAL(10, 4) NOT NULL,
			technical_score DECIMAL(6, 2) NOT NULL,
			model_score DECIMAL(6, 2) NOT NULL,
			final_score DECIMAL(6, 2) NOT NULL,
			technical_signal VARCHAR(8) NOT NULL,
			model_signal VARCHAR(8) NOT NULL,
			final_signal VARCHAR(8) NOT NULL,
			volatility DECIMAL(10, 6) NOT NULL,
			volume_ratio DECIMAL(10, 4) NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_top_mover_signals_symbol ON top_mover_signals(symbol, detected_at)`,

		`CREATE TABLE IF NOT EXISTS daily_summaries (
			id BIGSERIAL PRIMARY KEY,
			summary_date DATE NOT NULL UNIQUE,
			start_balance DECIMAL(20, 8) NOT NULL,
			end_balance DECIMAL(20, 8) NOT NULL,
			daily_pnl DECIMAL(20, 8) NOT NULL,
			trades INT NOT NULL,
			wins INT NOT NULL,
			losses INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info("database migrations completed")
	return nil
}
