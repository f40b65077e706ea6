package ledger

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

func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

func newTestRepo(t *testing.T) (*TransactionRepository, func()) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, cleanup := testingpkg.NewTestDB(t, "fintrack")
	for _, id := range []string{"a1", "a2"} {
		_, err := db.Conn().Exec(
			"INSERT INTO assets (id, name, created_at, updated_at) VALUES (?, ?, 0, 0)",
			id, "Asset "+id,
		)
		require.NoError(t, err)
	}
	return NewTransactionRepository(db.Conn(), log), cleanup
}

func entry(assetID string, date time.Time, txType domain.TransactionType, qty string) domain.Transaction {
	return domain.Transaction{
		Date:     date,
		Type:     txType,
		AssetID:  assetID,
		Quantity: d(qty),
		Price:    d("100"),
	}
}

func TestCreate_AssignsIDAndTimestamp(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	created, err := repo.Create(entry("a1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), domain.TransactionBuy, "10"))
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreate_Roundtrip(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	in := domain.Transaction{
		Date:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:       domain.TransactionBuy,
		AssetID:    "a1",
		Quantity:   d("2.5"),
		Price:      d("101.37"),
		Commission: d("1.95"),
		Tax:        d("0.5"),
		Notes:      "first buy",
	}
	_, err := repo.Create(in)
	require.NoError(t, err)

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, in.AssetID, got.AssetID)
	assert.True(t, got.Quantity.Equal(d("2.5")))
	assert.True(t, got.Price.Equal(d("101.37")))
	assert.True(t, got.Commission.Equal(d("1.95")))
	assert.True(t, got.Tax.Equal(d("0.5")))
	assert.Equal(t, "first buy", got.Notes)
	assert.Equal(t, in.Date, got.Date)
}

// The ledger comes back in processing order: date ascending, then creation
// timestamp ascending for same-day rows.
func TestGetAll_ProcessingOrder(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	later := entry("a1", day2, domain.TransactionSell, "1")
	later.CreatedAt = time.Unix(1000, 0)
	sameDayFirst := entry("a1", day1, domain.TransactionBuy, "5")
	sameDayFirst.CreatedAt = time.Unix(100, 0)
	sameDaySecond := entry("a1", day1, domain.TransactionBuy, "3")
	sameDaySecond.CreatedAt = time.Unix(200, 0)

	// Insert out of order.
	for _, tx := range []domain.Transaction{later, sameDaySecond, sameDayFirst} {
		_, err := repo.Create(tx)
		require.NoError(t, err)
	}

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Quantity.Equal(d("5")))
	assert.True(t, all[1].Quantity.Equal(d("3")))
	assert.True(t, all[2].Quantity.Equal(d("1")))
}

func TestGetByAsset_FiltersAndOrders(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.Create(entry("a1", day, domain.TransactionBuy, "5"))
	require.NoError(t, err)
	_, err = repo.Create(entry("a2", day, domain.TransactionBuy, "7"))
	require.NoError(t, err)

	txs, err := repo.GetByAsset("a2")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Quantity.Equal(d("7")))
}

func TestAssetIDsWithHistory(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.Create(entry("a1", day, domain.TransactionBuy, "5"))
	require.NoError(t, err)
	_, err = repo.Create(entry("a1", day, domain.TransactionBuy, "2"))
	require.NoError(t, err)
	_, err = repo.Create(entry("a2", day, domain.TransactionBuy, "7"))
	require.NoError(t, err)

	ids, err := repo.AssetIDsWithHistory()
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestCreate_Validation(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		tx   domain.Transaction
	}{
		{
			name: "zero quantity",
			tx:   domain.Transaction{Date: day, Type: domain.TransactionBuy, AssetID: "a1", Quantity: d("0"), Price: d("10")},
		},
		{
			name: "negative quantity",
			tx:   domain.Transaction{Date: day, Type: domain.TransactionSell, AssetID: "a1", Quantity: d("-1"), Price: d("10")},
		},
		{
			name: "buy without price",
			tx:   domain.Transaction{Date: day, Type: domain.TransactionBuy, AssetID: "a1", Quantity: d("1")},
		},
		{
			name: "missing asset",
			tx:   domain.Transaction{Date: day, Type: domain.TransactionBuy, Quantity: d("1"), Price: d("10")},
		},
		{
			name: "unknown type",
			tx:   domain.Transaction{Date: day, Type: "SPLIT", AssetID: "a1", Quantity: d("1"), Price: d("10")},
		},
		{
			name: "negative commission",
			tx:   domain.Transaction{Date: day, Type: domain.TransactionBuy, AssetID: "a1", Quantity: d("1"), Price: d("10"), Commission: d("-1")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Create(tc.tx)
			assert.Error(t, err)
		})
	}
}

// GIFT entries may carry a zero price.
func TestCreate_GiftWithoutPrice(t *testing.T) {
	repo, cleanup := newTestRepo(t)
	defer cleanup()

	_, err := repo.Create(domain.Transaction{
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:     domain.TransactionGift,
		AssetID:  "a1",
		Quantity: d("3"),
	})
	assert.NoError(t, err)
}
