// Package snapshots persists point-in-time captures of portfolio state and
// decides when a new capture is worth writing.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Repository handles portfolio_snapshots and position_snapshots in fintrack.db.
// Snapshots are immutable: the repository inserts and reads, never updates.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

const portfolioColumns = `id, batch_id, captured_at, total_market_value,
	total_cost, total_unrealized_pnl`

// Latest returns the most recent portfolio snapshot, or nil if none exists.
func (r *Repository) Latest() (*domain.PortfolioSnapshot, error) {
	return r.latest(r.db)
}

// LatestTx is Latest inside an open transaction, so the dedup decision and
// the subsequent insert observe the same database state.
func (r *Repository) LatestTx(tx *sql.Tx) (*domain.PortfolioSnapshot, error) {
	return r.latest(tx)
}

func (r *Repository) latest(q querier) (*domain.PortfolioSnapshot, error) {
	row := q.QueryRow("SELECT " + portfolioColumns + ` FROM portfolio_snapshots
		ORDER BY captured_at DESC, id DESC LIMIT 1`)
	snap, err := scanPortfolioSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snap, nil
}

// InsertBatchTx writes one portfolio snapshot and its position snapshots as a
// single batch inside the given transaction. The caller owns commit/rollback,
// so either the whole batch lands or none of it does.
func (r *Repository) InsertBatchTx(tx *sql.Tx, snap domain.PortfolioSnapshot, positions []domain.PositionSnapshot) error {
	_, err := tx.Exec(`
		INSERT INTO portfolio_snapshots
		(id, batch_id, captured_at, total_market_value, total_cost, total_unrealized_pnl)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.BatchID, snap.CapturedAt.Unix(),
		snap.TotalMarketValue.String(), snap.TotalCost.String(), snap.TotalUnrealizedPnL.String())
	if err != nil {
		return fmt.Errorf("failed to insert portfolio snapshot: %w", err)
	}

	for _, pos := range positions {
		_, err := tx.Exec(`
			INSERT INTO position_snapshots
			(id, batch_id, captured_at, asset_id, quantity, cost_basis,
			 market_value, unrealized_pnl, unrealized_pnl_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, pos.ID, pos.BatchID, pos.CapturedAt.Unix(), pos.AssetID,
			pos.Quantity.String(), pos.CostBasis.String(), pos.MarketValue.String(),
			pos.UnrealizedPnL.String(), pos.UnrealizedPnLPct.String())
		if err != nil {
			return fmt.Errorf("failed to insert position snapshot for %s: %w", pos.AssetID, err)
		}
	}

	return nil
}

// History returns portfolio snapshots in reverse chronological order, newest
// first. A limit of 0 returns everything.
func (r *Repository) History(limit int) ([]domain.PortfolioSnapshot, error) {
	query := "SELECT " + portfolioColumns + " FROM portfolio_snapshots ORDER BY captured_at DESC, id DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var snaps []domain.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanPortfolioSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// PositionsByBatch returns the position snapshots belonging to one batch.
func (r *Repository) PositionsByBatch(batchID string) ([]domain.PositionSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, batch_id, captured_at, asset_id, quantity, cost_basis,
		       market_value, unrealized_pnl, unrealized_pnl_pct
		FROM position_snapshots WHERE batch_id = ? ORDER BY asset_id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch %s: %w", batchID, err)
	}
	defer rows.Close()
	return collectPositionSnapshots(rows)
}

// PositionHistory returns the captured history of one asset's position,
// newest first. A limit of 0 returns everything.
func (r *Repository) PositionHistory(assetID string, limit int) ([]domain.PositionSnapshot, error) {
	query := `
		SELECT id, batch_id, captured_at, asset_id, quantity, cost_basis,
		       market_value, unrealized_pnl, unrealized_pnl_pct
		FROM position_snapshots WHERE asset_id = ? ORDER BY captured_at DESC, id DESC`
	args := []interface{}{assetID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position history for %s: %w", assetID, err)
	}
	defer rows.Close()
	return collectPositionSnapshots(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolioSnapshot(row rowScanner) (domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	var capturedAt int64
	var mv, cost, pnl string
	if err := row.Scan(&snap.ID, &snap.BatchID, &capturedAt, &mv, &cost, &pnl); err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	snap.CapturedAt = time.Unix(capturedAt, 0).UTC()

	var err error
	if snap.TotalMarketValue, err = decimal.NewFromString(mv); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("bad total_market_value %q: %w", mv, err)
	}
	if snap.TotalCost, err = decimal.NewFromString(cost); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("bad total_cost %q: %w", cost, err)
	}
	if snap.TotalUnrealizedPnL, err = decimal.NewFromString(pnl); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("bad total_unrealized_pnl %q: %w", pnl, err)
	}
	return snap, nil
}

func collectPositionSnapshots(rows *sql.Rows) ([]domain.PositionSnapshot, error) {
	var positions []domain.PositionSnapshot
	for rows.Next() {
		var pos domain.PositionSnapshot
		var capturedAt int64
		var qty, cost, mv, pnl, pct string
		if err := rows.Scan(&pos.ID, &pos.BatchID, &capturedAt, &pos.AssetID,
			&qty, &cost, &mv, &pnl, &pct); err != nil {
			return nil, fmt.Errorf("failed to scan position snapshot: %w", err)
		}
		pos.CapturedAt = time.Unix(capturedAt, 0).UTC()

		var err error
		if pos.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad quantity %q: %w", qty, err)
		}
		if pos.CostBasis, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("bad cost_basis %q: %w", cost, err)
		}
		if pos.MarketValue, err = decimal.NewFromString(mv); err != nil {
			return nil, fmt.Errorf("bad market_value %q: %w", mv, err)
		}
		if pos.UnrealizedPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("bad unrealized_pnl %q: %w", pnl, err)
		}
		if pos.UnrealizedPnLPct, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("bad unrealized_pnl_pct %q: %w", pct, err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}
