package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/database"
	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the terminal state of one writer run.
type Outcome string

const (
	// OutcomeCommitted means a new snapshot batch was written.
	OutcomeCommitted Outcome = "committed"
	// OutcomeSkipped means the totals were identical to the latest snapshot.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAborted means the valuation failed an integrity guard.
	OutcomeAborted Outcome = "aborted"
)

// Result describes what a writer run did and why.
type Result struct {
	Outcome    Outcome          `json:"outcome"`
	BatchID    string           `json:"batch_id,omitempty"`
	CapturedAt time.Time        `json:"captured_at,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Valuation  domain.Valuation `json:"-"`
}

// Valuator produces the current portfolio valuation. The writer always runs
// inside a transaction, so it uses the transactional variant: on a fresh
// database the settings row exists only inside that transaction until commit.
type Valuator interface {
	ValuateTx(tx *sql.Tx) (domain.Valuation, error)
}

// settingsLocker serializes concurrent writer instances on the settings row.
type settingsLocker interface {
	LockTx(tx *sql.Tx) error
}

// Writer captures portfolio state as immutable snapshot batches. Each run is
// a short pipeline: valuate, check integrity, check for a no-change
// duplicate, then commit one portfolio row plus one row per position in a
// single transaction.
type Writer struct {
	db       *sql.DB
	valuator Valuator
	repo     *Repository
	locker   settingsLocker
	log      zerolog.Logger
}

// NewWriter creates a new snapshot writer.
func NewWriter(db *sql.DB, valuator Valuator, repo *Repository, locker settingsLocker, log zerolog.Logger) *Writer {
	return &Writer{
		db:       db,
		valuator: valuator,
		repo:     repo,
		locker:   locker,
		log:      log.With().Str("service", "snapshot_writer").Logger(),
	}
}

// Run captures a snapshot in its own transaction, taking the coordinator
// lock first. This is the entry point for on-demand captures; the scheduler
// calls RunInTx inside its own critical section instead.
func (w *Writer) Run() (Result, error) {
	var result Result
	err := database.WithTransaction(w.db, func(tx *sql.Tx) error {
		if err := w.locker.LockTx(tx); err != nil {
			return err
		}
		var err error
		result, err = w.RunInTx(tx)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// RunInTx runs the capture pipeline inside an open transaction. The dedup
// check and the batch insert share the transaction, so two concurrent runs
// cannot both observe "no duplicate" and both commit.
func (w *Writer) RunInTx(tx *sql.Tx) (Result, error) {
	valuation, err := w.valuator.ValuateTx(tx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to valuate portfolio: %w", err)
	}

	// Integrity guard: open positions with no market value means the price
	// data is broken, not that the portfolio is worthless. Refuse to record
	// a misleading zero.
	if len(valuation.Positions) > 0 && !valuation.TotalMarketValue.IsPositive() {
		guardErr := fmt.Errorf("%w: %d open positions but total market value %s",
			domain.ErrSnapshotAborted, len(valuation.Positions), valuation.TotalMarketValue.String())
		w.log.Warn().Err(guardErr).Msg("Snapshot aborted by integrity guard")
		return Result{Outcome: OutcomeAborted, Reason: guardErr.Error(), Valuation: valuation}, nil
	}

	// Dedup: identical totals to the latest snapshot add no information.
	latest, err := w.repo.LatestTx(tx)
	if err != nil {
		return Result{}, err
	}
	if latest != nil &&
		latest.TotalMarketValue.Equal(valuation.TotalMarketValue) &&
		latest.TotalCost.Equal(valuation.TotalCost) &&
		latest.TotalUnrealizedPnL.Equal(valuation.TotalUnrealizedPnL) {
		w.log.Debug().Str("batch_id", latest.BatchID).Msg("Snapshot skipped, totals unchanged")
		return Result{
			Outcome:   OutcomeSkipped,
			BatchID:   latest.BatchID,
			Reason:    "totals unchanged since latest snapshot",
			Valuation: valuation,
		}, nil
	}

	batchID := uuid.New().String()
	capturedAt := time.Now().UTC()

	snap := domain.PortfolioSnapshot{
		ID:                 uuid.New().String(),
		BatchID:            batchID,
		CapturedAt:         capturedAt,
		TotalMarketValue:   valuation.TotalMarketValue,
		TotalCost:          valuation.TotalCost,
		TotalUnrealizedPnL: valuation.TotalUnrealizedPnL,
	}

	positions := make([]domain.PositionSnapshot, 0, len(valuation.Positions))
	for _, pos := range valuation.Positions {
		positions = append(positions, domain.PositionSnapshot{
			ID:               uuid.New().String(),
			BatchID:          batchID,
			CapturedAt:       capturedAt,
			AssetID:          pos.AssetID,
			Quantity:         pos.Quantity,
			CostBasis:        pos.Cost,
			MarketValue:      pos.MarketValue,
			UnrealizedPnL:    pos.UnrealizedPnL,
			UnrealizedPnLPct: pos.UnrealizedPnLPct,
		})
	}

	if err := w.repo.InsertBatchTx(tx, snap, positions); err != nil {
		return Result{}, err
	}

	w.log.Info().
		Str("batch_id", batchID).
		Int("positions", len(positions)).
		Str("total_market_value", snap.TotalMarketValue.String()).
		Msg("Snapshot committed")

	return Result{
		Outcome:    OutcomeCommitted,
		BatchID:    batchID,
		CapturedAt: capturedAt,
		Valuation:  valuation,
	}, nil
}
