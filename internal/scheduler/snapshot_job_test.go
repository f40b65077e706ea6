package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/assets"
	"github.com/Gonzalez8/fintrack/internal/modules/settings"
	"github.com/Gonzalez8/fintrack/internal/modules/snapshots"
	testingpkg "github.com/Gonzalez8/fintrack/internal/testing"
)

type countingRunner struct {
	calls int
}

func (c *countingRunner) RunInTx(tx *sql.Tx) (snapshots.Result, error) {
	c.calls++
	return snapshots.Result{Outcome: snapshots.OutcomeCommitted}, nil
}

func newTestJob(t *testing.T) (*SnapshotJob, *countingRunner, *settings.Repository, *snapshots.Repository, func()) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t, "fintrack")
	settingsRepo := settings.NewRepository(db.Conn(), log)
	snapRepo := snapshots.NewRepository(db.Conn(), log)
	runner := &countingRunner{}
	job := NewSnapshotJob(db.Conn(), settingsRepo, snapRepo, runner, log)
	return job, runner, settingsRepo, snapRepo, cleanup
}

func updateFrequency(t *testing.T, repo *settings.Repository, minutes int) {
	t.Helper()
	cfg, err := repo.Load()
	require.NoError(t, err)
	cfg.SnapshotFrequency = minutes
	require.NoError(t, repo.Update(cfg))
}

func seedSnapshot(t *testing.T, db *sql.DB, capturedAt time.Time) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO portfolio_snapshots
		(id, batch_id, captured_at, total_market_value, total_cost, total_unrealized_pnl)
		VALUES ('s1', 'b1', ?, '100', '90', '10')
	`, capturedAt.Unix())
	require.NoError(t, err)
}

func TestSnapshotJob_RunsWhenNoSnapshotExists(t *testing.T) {
	job, runner, _, _, cleanup := newTestJob(t)
	defer cleanup()

	require.NoError(t, job.Run())
	assert.Equal(t, 1, runner.calls)
}

func TestSnapshotJob_DisabledFrequencySkips(t *testing.T) {
	job, runner, settingsRepo, _, cleanup := newTestJob(t)
	defer cleanup()

	updateFrequency(t, settingsRepo, 0)

	require.NoError(t, job.Run())
	assert.Equal(t, 0, runner.calls)
}

func TestSnapshotJob_NotDueYet(t *testing.T) {
	job, runner, settingsRepo, _, cleanup := newTestJob(t)
	defer cleanup()

	updateFrequency(t, settingsRepo, 60)
	seedSnapshot(t, job.db, time.Now().Add(-10*time.Minute))

	require.NoError(t, job.Run())
	assert.Equal(t, 0, runner.calls)
}

func TestSnapshotJob_DueAfterFrequencyElapsed(t *testing.T) {
	job, runner, settingsRepo, _, cleanup := newTestJob(t)
	defer cleanup()

	updateFrequency(t, settingsRepo, 60)
	seedSnapshot(t, job.db, time.Now().Add(-90*time.Minute))

	require.NoError(t, job.Run())
	assert.Equal(t, 1, runner.calls)
}

func TestSnapshotJob_EachRunIsIndependent(t *testing.T) {
	job, runner, settingsRepo, _, cleanup := newTestJob(t)
	defer cleanup()

	// Frequency 1 minute, each run finds the seeded old snapshot still latest
	// (the counting runner writes nothing), so both runs fire the writer.
	updateFrequency(t, settingsRepo, 1)
	seedSnapshot(t, job.db, time.Now().Add(-5*time.Minute))

	require.NoError(t, job.Run())
	require.NoError(t, job.Run())
	assert.Equal(t, 2, runner.calls)
}

type fakeSettingsLoader struct {
	s domain.Settings
}

func (f fakeSettingsLoader) Load() (domain.Settings, error) { return f.s, nil }

type countingRefresher struct {
	calls int
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) (assets.RefreshResult, error) {
	c.calls++
	return assets.RefreshResult{}, c.err
}

func TestPriceRefreshJob_DisabledIntervalSkips(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cfg := domain.DefaultSettings()
	cfg.PriceUpdateInterval = 0

	refresher := &countingRefresher{}
	job := NewPriceRefreshJob(fakeSettingsLoader{s: cfg}, refresher, log)

	require.NoError(t, job.Run())
	assert.Equal(t, 0, refresher.calls)
}

func TestPriceRefreshJob_RunsThenWaitsForInterval(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cfg := domain.DefaultSettings()
	cfg.PriceUpdateInterval = 30

	refresher := &countingRefresher{}
	job := NewPriceRefreshJob(fakeSettingsLoader{s: cfg}, refresher, log)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run())
	assert.Equal(t, 1, refresher.calls)

	// Ten minutes later: not due.
	now = now.Add(10 * time.Minute)
	require.NoError(t, job.Run())
	assert.Equal(t, 1, refresher.calls)

	// Forty minutes after the first run: due again.
	now = now.Add(30 * time.Minute)
	require.NoError(t, job.Run())
	assert.Equal(t, 2, refresher.calls)
}

// A failed cycle must not consume the interval; the next tick retries.
func TestPriceRefreshJob_FailedCycleRetriesNextTick(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	cfg := domain.DefaultSettings()
	cfg.PriceUpdateInterval = 30

	refresher := &countingRefresher{err: errors.New("feed unreachable")}
	job := NewPriceRefreshJob(fakeSettingsLoader{s: cfg}, refresher, log)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.Error(t, job.Run())
	assert.Equal(t, 1, refresher.calls)

	// One minute later, still failing: retried immediately.
	now = now.Add(time.Minute)
	require.Error(t, job.Run())
	assert.Equal(t, 2, refresher.calls)

	// Feed recovers; the successful run starts the interval clock.
	refresher.err = nil
	now = now.Add(time.Minute)
	require.NoError(t, job.Run())
	assert.Equal(t, 3, refresher.calls)

	now = now.Add(10 * time.Minute)
	require.NoError(t, job.Run())
	assert.Equal(t, 3, refresher.calls)
}
