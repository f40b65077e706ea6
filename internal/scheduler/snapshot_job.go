package scheduler

import (
	"database/sql"
	"time"

	"github.com/Gonzalez8/fintrack/internal/database"
	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// settingsStore is the slice of the settings repository the coordinator needs.
type settingsStore interface {
	LockTx(tx *sql.Tx) error
	LoadTx(tx *sql.Tx) (domain.Settings, error)
}

// latestStore reads the most recent snapshot inside the critical section.
type latestStore interface {
	LatestTx(tx *sql.Tx) (*domain.PortfolioSnapshot, error)
}

// snapshotRunner runs the snapshot pipeline inside an open transaction.
type snapshotRunner interface {
	RunInTx(tx *sql.Tx) (snapshots.Result, error)
}

// SnapshotJob is the snapshot coordinator. It ticks every minute and decides
// whether a capture is due; the whole decision plus the capture run inside a
// single transaction holding a write lock on the settings row, so concurrent
// process instances cannot double-capture.
type SnapshotJob struct {
	db       *sql.DB
	settings settingsStore
	latest   latestStore
	writer   snapshotRunner
	now      func() time.Time
	log      zerolog.Logger
}

// NewSnapshotJob creates the snapshot coordinator job.
func NewSnapshotJob(db *sql.DB, settings settingsStore, latest latestStore, writer snapshotRunner, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		db:       db,
		settings: settings,
		latest:   latest,
		writer:   writer,
		now:      time.Now,
		log:      log.With().Str("job", "snapshot").Logger(),
	}
}

// Name implements Job.
func (j *SnapshotJob) Name() string { return "snapshot" }

// Run implements Job. A run that decides "not due yet" is a normal outcome,
// not an error; a failing run only affects this tick.
func (j *SnapshotJob) Run() error {
	return database.WithTransaction(j.db, func(tx *sql.Tx) error {
		if err := j.settings.LockTx(tx); err != nil {
			return err
		}

		cfg, err := j.settings.LoadTx(tx)
		if err != nil {
			return err
		}
		if cfg.SnapshotFrequency <= 0 {
			// Snapshots disabled.
			return nil
		}

		latest, err := j.latest.LatestTx(tx)
		if err != nil {
			return err
		}
		if latest != nil {
			elapsed := j.now().Sub(latest.CapturedAt)
			if elapsed < time.Duration(cfg.SnapshotFrequency)*time.Minute {
				return nil
			}
		}

		result, err := j.writer.RunInTx(tx)
		if err != nil {
			return err
		}

		j.log.Info().
			Str("outcome", string(result.Outcome)).
			Str("batch_id", result.BatchID).
			Msg("Snapshot tick finished")
		return nil
	})
}
