package snapshots

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gonzalez8/fintrack/internal/database"
	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/assets"
	"github.com/Gonzalez8/fintrack/internal/modules/ledger"
	"github.com/Gonzalez8/fintrack/internal/modules/portfolio"
	"github.com/Gonzalez8/fintrack/internal/modules/settings"
	testingpkg "github.com/Gonzalez8/fintrack/internal/testing"
)

func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

type fakeValuator struct {
	v domain.Valuation
}

func (f *fakeValuator) ValuateTx(*sql.Tx) (domain.Valuation, error) { return f.v, nil }

func valuationWith(positions int, mv, cost string) domain.Valuation {
	v := domain.Valuation{
		TotalMarketValue:   d(mv),
		TotalCost:          d(cost),
		TotalUnrealizedPnL: d(mv).Sub(d(cost)),
	}
	for i := 0; i < positions; i++ {
		v.Positions = append(v.Positions, domain.Position{
			AssetID:          string(rune('a' + i)),
			AssetName:        "Asset",
			Quantity:         d("10"),
			Cost:             d(cost),
			MarketValue:      d(mv),
			UnrealizedPnL:    d(mv).Sub(d(cost)),
			UnrealizedPnLPct: decimal.Zero,
		})
	}
	return v
}

func newTestWriter(t *testing.T) (*Writer, *fakeValuator, *Repository, func()) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t, "fintrack")

	// Position snapshots reference assets; seed the ids the fake valuations use.
	for _, id := range []string{"a", "b", "c"} {
		_, err := db.Conn().Exec(
			"INSERT INTO assets (id, name, created_at, updated_at) VALUES (?, ?, 0, 0)",
			id, "Asset "+id,
		)
		require.NoError(t, err)
	}

	repo := NewRepository(db.Conn(), log)
	locker := settings.NewRepository(db.Conn(), log)
	valuator := &fakeValuator{}
	writer := NewWriter(db.Conn(), valuator, repo, locker, log)
	return writer, valuator, repo, cleanup
}

func TestWriter_CommitsBatch(t *testing.T) {
	writer, valuator, repo, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(2, "1100", "1005")

	result, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, result.Outcome)
	require.NotEmpty(t, result.BatchID)

	latest, err := repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, result.BatchID, latest.BatchID)
	assert.True(t, latest.TotalMarketValue.Equal(d("1100")))
	assert.True(t, latest.TotalUnrealizedPnL.Equal(d("95")))

	positions, err := repo.PositionsByBatch(result.BatchID)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

// A second run with identical totals writes nothing.
func TestWriter_SkipsUnchangedTotals(t *testing.T) {
	writer, valuator, repo, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(1, "1100", "1005")

	first, err := writer.Run()
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, first.Outcome)

	second, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, first.BatchID, second.BatchID)

	history, err := repo.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWriter_CommitsWhenTotalsChange(t *testing.T) {
	writer, valuator, repo, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(1, "1100", "1005")
	first, err := writer.Run()
	require.NoError(t, err)

	valuator.v = valuationWith(1, "1200", "1005")
	second, err := writer.Run()
	require.NoError(t, err)

	assert.Equal(t, OutcomeCommitted, second.Outcome)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	history, err := repo.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// Open positions with no market value means broken price data, not a
// worthless portfolio; nothing is written.
func TestWriter_AbortsOnZeroValueWithPositions(t *testing.T) {
	writer, valuator, repo, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(2, "0", "1005")

	result, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.NotEmpty(t, result.Reason)

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

// A genuinely empty portfolio is a valid zero-total snapshot.
func TestWriter_EmptyPortfolioCommits(t *testing.T) {
	writer, valuator, repo, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(0, "0", "0")

	result, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, result.Outcome)

	latest, err := repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.TotalMarketValue.IsZero())

	positions, err := repo.PositionsByBatch(result.BatchID)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

// A rollback after the batch insert leaves no partial rows behind.
func TestWriter_RolledBackCommitLeavesNothing(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testingpkg.NewTestDB(t, "fintrack")
	defer cleanup()

	_, err := db.Conn().Exec(
		"INSERT INTO assets (id, name, created_at, updated_at) VALUES ('a', 'Asset a', 0, 0)")
	require.NoError(t, err)

	repo := NewRepository(db.Conn(), log)
	valuator := &fakeValuator{v: valuationWith(1, "1100", "1005")}
	writer := NewWriter(db.Conn(), valuator, repo, settings.NewRepository(db.Conn(), log), log)

	failAfterCommit := errors.New("induced failure")
	err = database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		result, err := writer.RunInTx(tx)
		require.NoError(t, err)
		require.Equal(t, OutcomeCommitted, result.Outcome)
		return failAfterCommit
	})
	require.ErrorIs(t, err, failAfterCommit)

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	history, err := repo.History(0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWriter_NegativeTotalWithPositionsAborts(t *testing.T) {
	writer, valuator, _, cleanup := newTestWriter(t)
	defer cleanup()

	valuator.v = valuationWith(1, "-5", "100")

	result, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.Contains(t, result.Reason, domain.ErrSnapshotAborted.Error())
}

// On a brand-new database no settings row exists yet; the coordinator lock
// creates it inside its own transaction and the valuation must read it from
// there. A valuation reading settings through a second connection would block
// on the caller's write lock and time out instead of committing.
func TestWriter_FirstRunOnFreshDatabaseCommits(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testingpkg.NewTestDB(t, "fintrack")
	defer cleanup()

	settingsRepo := settings.NewRepository(db.Conn(), log)
	valuator := portfolio.NewService(
		ledger.NewTransactionRepository(db.Conn(), log),
		assets.NewRepository(db.Conn(), log),
		settingsRepo, log,
	)
	repo := NewRepository(db.Conn(), log)
	writer := NewWriter(db.Conn(), valuator, repo, settingsRepo, log)

	start := time.Now()
	result, err := writer.Run()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, result.Outcome)
	assert.Less(t, time.Since(start), 3*time.Second, "first run must not stall on its own lock")

	latest, err := repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.TotalMarketValue.IsZero())
	assert.True(t, latest.TotalCost.IsZero())
	assert.True(t, latest.TotalUnrealizedPnL.IsZero())
}
