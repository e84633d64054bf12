package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/alphalab/pkg/config"
)

// ErrDisabled is returned when DATABASE_URL is not configured
var ErrDisabled = errors.New("database disabled: DATABASE_URL not set")

// DB wraps the pgxpool.Pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, ErrDisabled
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// schema is applied idempotently by Migrate
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS market`,
	`CREATE TABLE IF NOT EXISTS market.daily_bars (
		ticker     TEXT        NOT NULL,
		trade_date DATE        NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (ticker, trade_date)
	)`,
	`CREATE TABLE IF NOT EXISTS market.universe (
		position INT  NOT NULL,
		ticker   TEXT PRIMARY KEY
	)`,
	`CREATE SCHEMA IF NOT EXISTS backtest`,
	`CREATE TABLE IF NOT EXISTS backtest.runs (
		run_id      UUID PRIMARY KEY,
		strategy    TEXT        NOT NULL,
		start_date  DATE        NOT NULL,
		end_date    DATE        NOT NULL,
		instruments TEXT[]      NOT NULL,
		config_hash TEXT        NOT NULL DEFAULT '',
		summary     JSONB       NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS backtest.ledger_rows (
		run_id      UUID REFERENCES backtest.runs(run_id) ON DELETE CASCADE,
		row_index   INT  NOT NULL,
		trade_date  DATE NOT NULL,
		capital     DOUBLE PRECISION NOT NULL,
		day_pnl     DOUBLE PRECISION NOT NULL,
		nominal_ret DOUBLE PRECISION NOT NULL,
		capital_ret DOUBLE PRECISION NOT NULL,
		nominal     DOUBLE PRECISION NOT NULL,
		leverage    DOUBLE PRECISION NOT NULL,
		positions   JSONB NOT NULL,
		PRIMARY KEY (run_id, row_index)
	)`,
}

// Migrate creates the tables used by the market data store and run repository
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
