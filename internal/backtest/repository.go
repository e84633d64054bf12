package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned when a run id has no stored run
var ErrRunNotFound = errors.New("backtest run not found")

// RunRecord is the stored header of a completed simulation
type RunRecord struct {
	RunID       uuid.UUID `json:"run_id"`
	Strategy    string    `json:"strategy"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Instruments []string  `json:"instruments"`
	ConfigHash  string    `json:"config_hash"`
	Summary     Summary   `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunRepository persists simulation results
// ⭐ SSOT: 백테스트 결과 저장은 여기서만
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Save stores the run header and every ledger row in one transaction
func (r *RunRepository) Save(ctx context.Context, result *Result, configHash string) (uuid.UUID, error) {
	runID := uuid.New()

	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest.runs (run_id, strategy, start_date, end_date, instruments, config_hash, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, runID, result.Strategy, result.Market.Start, result.Market.End,
		result.Ledger.Instruments, configHash, summary)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range result.Ledger.Rows {
		positions, err := json.Marshal(row.Positions)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal positions row %d: %w", row.Index, err)
		}
		batch.Queue(`
			INSERT INTO backtest.ledger_rows
				(run_id, row_index, trade_date, capital, day_pnl, nominal_ret, capital_ret, nominal, leverage, positions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, runID, row.Index, row.Date, row.Capital, row.DayPnL, row.NominalRet,
			row.CapitalRet, row.Nominal, row.Leverage, positions)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, fmt.Errorf("insert ledger rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// Get loads a stored run header
func (r *RunRepository) Get(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT run_id, strategy, start_date, end_date, instruments, config_hash, summary, created_at
		FROM backtest.runs
		WHERE run_id = $1
	`

	rec, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the most recent runs, newest first
func (r *RunRepository) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `
		SELECT run_id, strategy, start_date, end_date, instruments, config_hash, summary, created_at
		FROM backtest.runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// LedgerRows loads the stored ledger of a run in row order
func (r *RunRepository) LedgerRows(ctx context.Context, runID uuid.UUID) ([]Row, error) {
	query := `
		SELECT row_index, trade_date, capital, day_pnl, nominal_ret, capital_ret, nominal, leverage, positions
		FROM backtest.ledger_rows
		WHERE run_id = $1
		ORDER BY row_index ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var positions []byte
		if err := rows.Scan(&row.Index, &row.Date, &row.Capital, &row.DayPnL, &row.NominalRet,
			&row.CapitalRet, &row.Nominal, &row.Leverage, &positions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(positions, &row.Positions); err != nil {
			return nil, fmt.Errorf("decode positions row %d: %w", row.Index, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var summary []byte
	if err := row.Scan(&rec.RunID, &rec.Strategy, &rec.StartDate, &rec.EndDate,
		&rec.Instruments, &rec.ConfigHash, &summary, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &rec.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &rec, nil
}
