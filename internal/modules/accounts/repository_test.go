package accounts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gonzalez8/fintrack/internal/domain"
	testingpkg "github.com/Gonzalez8/fintrack/internal/testing"
)

func newTestRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testingpkg.NewTestDB(t, "fintrack")
	return NewRepository(db.Conn(), log), cleanup
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestCreate_AppliesDefaults(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	created, err := repo.Create(domain.Account{Name: "Broker cash"})
	require.NoError(t, err)

	got, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broker cash", got.Name)
	assert.Equal(t, "EUR", got.Currency)
	assert.True(t, got.Balance.IsZero())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The account balance follows the latest-dated snapshot.
func TestUpsertSnapshot_SyncsBalance(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	acc, err := repo.Create(domain.Account{Name: "Checking"})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 2, 29), Balance: decimal.NewFromInt(1200),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1200)))
}

// Backfilling an older month does not move the balance off the latest value.
func TestUpsertSnapshot_BackfillKeepsLatestBalance(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	acc, err := repo.Create(domain.Account{Name: "Checking"})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 3, 31), Balance: decimal.NewFromInt(900),
	})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(900)))
}

// Re-entering the same date overwrites the earlier entry.
func TestUpsertSnapshot_SameDateOverwrites(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	acc, err := repo.Create(domain.Account{Name: "Checking"})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(100), Note: "draft",
	})
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(domain.AccountSnapshot{
		AccountID: acc.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(150), Note: "final",
	})
	require.NoError(t, err)

	snaps, err := repo.Snapshots(acc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Balance.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "final", snaps[0].Note)

	got, err := repo.GetByID(acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))
}

func TestBulkUpsertSnapshots_AllOrNothing(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	acc, err := repo.Create(domain.Account{Name: "Checking"})
	require.NoError(t, err)

	// Second entry references a missing account, so the whole batch must
	// roll back.
	_, err = repo.BulkUpsertSnapshots([]domain.AccountSnapshot{
		{AccountID: acc.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(100)},
		{AccountID: "missing", Date: date(2024, 1, 31), Balance: decimal.NewFromInt(200)},
	})
	require.Error(t, err)

	snaps, err := repo.Snapshots(acc.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestBulkUpsertSnapshots_CommitsBatch(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	a, err := repo.Create(domain.Account{Name: "Checking"})
	require.NoError(t, err)
	b, err := repo.Create(domain.Account{Name: "Savings"})
	require.NoError(t, err)

	created, err := repo.BulkUpsertSnapshots([]domain.AccountSnapshot{
		{AccountID: a.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(100)},
		{AccountID: b.ID, Date: date(2024, 1, 31), Balance: decimal.NewFromInt(5000)},
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	gotA, err := repo.GetByID(a.ID)
	require.NoError(t, err)
	assert.True(t, gotA.Balance.Equal(decimal.NewFromInt(100)))
	gotB, err := repo.GetByID(b.ID)
	require.NoError(t, err)
	assert.True(t, gotB.Balance.Equal(decimal.NewFromInt(5000)))
}
