package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/alphalab/internal/contracts"
)

// PriceRepository stores daily bars and the universe in Postgres
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// SaveBars upserts the bars of one ticker
func (r *PriceRepository) SaveBars(ctx context.Context, ticker string, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO market.daily_bars (ticker, trade_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save bars %s: %w", ticker, err)
	}
	return nil
}

// SaveDataset stores every ticker's bars and replaces the stored universe with ds.Tickers
func (r *PriceRepository) SaveDataset(ctx context.Context, ds *Dataset) error {
	for _, ticker := range ds.Tickers {
		if err := r.SaveBars(ctx, ticker, ds.Bars[ticker]); err != nil {
			return err
		}
	}
	return r.SaveUniverse(ctx, ds.Tickers)
}

// GetRange retrieves bars for a ticker within [from, to], ascending
func (r *PriceRepository) GetRange(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume
		FROM market.daily_bars
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = contracts.NormalizeDate(b.Date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SaveUniverse replaces the stored universe, keeping list order
func (r *PriceRepository) SaveUniverse(ctx context.Context, tickers []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM market.universe`); err != nil {
		return fmt.Errorf("clear universe: %w", err)
	}

	rows := make([][]interface{}, len(tickers))
	for i, t := range tickers {
		rows[i] = []interface{}{i, t}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market", "universe"},
		[]string{"position", "ticker"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("insert universe: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadUniverse returns the stored universe in order
func (r *PriceRepository) LoadUniverse(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT ticker FROM market.universe ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// LoadDataset assembles a dataset from stored bars for the stored universe.
// Tickers without bars in the window are left out.
func (r *PriceRepository) LoadDataset(ctx context.Context, start, end time.Time) (*Dataset, error) {
	tickers, err := r.LoadUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	ds := NewDataset(start, end)
	for _, t := range tickers {
		bars, err := r.GetRange(ctx, t, ds.Start, ds.End)
		if err != nil {
			return nil, fmt.Errorf("load bars %s: %w", t, err)
		}
		ds.Add(t, bars)
	}
	return ds, nil
}
