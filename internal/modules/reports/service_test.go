package reports

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/portfolio"
)

func d(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return dec
}

type fakeRealized struct {
	sales []domain.RealizedSale
	years []portfolio.YearPnL
}

func (f fakeRealized) RealizedSales(year int) ([]domain.RealizedSale, error) {
	return portfolio.FilterSalesByYear(f.sales, year), nil
}
func (f fakeRealized) RealizedByYear() ([]portfolio.YearPnL, error) { return f.years, nil }

type fakeLedger struct {
	txs []domain.Transaction
}

func (f fakeLedger) GetAll() ([]domain.Transaction, error) { return f.txs, nil }

type fakePrices struct {
	byAsset map[string][]domain.PricePoint
}

func (f fakePrices) PriceHistory(assetID string) ([]domain.PricePoint, error) {
	return f.byAsset[assetID], nil
}

type fakeCash struct {
	snaps []domain.AccountSnapshot
}

func (f fakeCash) AllSnapshots() ([]domain.AccountSnapshot, error) { return f.snaps, nil }

type fakeSettings struct{}

func (fakeSettings) Load() (domain.Settings, error) { return domain.DefaultSettings(), nil }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func newTestService(ledger fakeLedger, prices fakePrices, cash fakeCash) *Service {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewService(fakeRealized{}, ledger, prices, cash, fakeSettings{}, log)
}

func TestEvolution_EmptyDataYieldsNoSeries(t *testing.T) {
	svc := newTestService(fakeLedger{}, fakePrices{}, fakeCash{})

	series, err := svc.Evolution()
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestEvolution_CarriesValuesForward(t *testing.T) {
	ledger := fakeLedger{txs: []domain.Transaction{{
		Date: date(2024, 1, 15), Type: domain.TransactionBuy, AssetID: "a1",
		Quantity: d("10"), Price: d("100"),
	}}}
	prices := fakePrices{byAsset: map[string][]domain.PricePoint{
		"a1": {
			{AssetID: "a1", Date: date(2024, 1, 20), Price: d("100")},
			{AssetID: "a1", Date: date(2024, 2, 15), Price: d("110")},
		},
	}}
	cash := fakeCash{snaps: []domain.AccountSnapshot{
		{AccountID: "acc1", Date: date(2024, 1, 10), Balance: d("500")},
		{AccountID: "acc1", Date: date(2024, 3, 5), Balance: d("600")},
	}}

	svc := newTestService(ledger, prices, cash)
	series, err := svc.Evolution()
	require.NoError(t, err)
	require.NotEmpty(t, series)

	assert.Equal(t, "2024-01", series[0].Month)
	assert.True(t, series[0].Cash.Equal(d("500")))
	assert.True(t, series[0].Investments.Equal(d("1000")))
	assert.True(t, series[0].Total.Equal(d("1500")))

	// February: price moved, cash snapshot carried forward.
	assert.Equal(t, "2024-02", series[1].Month)
	assert.True(t, series[1].Cash.Equal(d("500")))
	assert.True(t, series[1].Investments.Equal(d("1100")))

	// March: new cash snapshot, price carried forward.
	assert.Equal(t, "2024-03", series[2].Month)
	assert.True(t, series[2].Cash.Equal(d("600")))
	assert.True(t, series[2].Investments.Equal(d("1100")))

	// The series runs to the present; the last point still carries the
	// latest known values forward.
	last := series[len(series)-1]
	assert.True(t, last.Cash.Equal(d("600")))
	assert.True(t, last.Investments.Equal(d("1100")))
}

func TestEvolution_AssetWithoutPriceContributesNothing(t *testing.T) {
	ledger := fakeLedger{txs: []domain.Transaction{{
		Date: date(2024, 1, 15), Type: domain.TransactionBuy, AssetID: "a1",
		Quantity: d("10"), Price: d("100"),
	}}}
	svc := newTestService(ledger, fakePrices{}, fakeCash{})

	series, err := svc.Evolution()
	require.NoError(t, err)
	require.NotEmpty(t, series)
	assert.True(t, series[0].Investments.IsZero())
}

func TestEvolution_SellReducesHoldings(t *testing.T) {
	ledger := fakeLedger{txs: []domain.Transaction{
		{Date: date(2024, 1, 15), Type: domain.TransactionBuy, AssetID: "a1",
			Quantity: d("10"), Price: d("100")},
		{Date: date(2024, 2, 10), Type: domain.TransactionSell, AssetID: "a1",
			Quantity: d("4"), Price: d("105")},
	}}
	prices := fakePrices{byAsset: map[string][]domain.PricePoint{
		"a1": {{AssetID: "a1", Date: date(2024, 1, 20), Price: d("100")}},
	}}

	svc := newTestService(ledger, prices, fakeCash{})
	series, err := svc.Evolution()
	require.NoError(t, err)
	require.True(t, len(series) >= 2)

	assert.True(t, series[0].Investments.Equal(d("1000")))
	assert.True(t, series[1].Investments.Equal(d("600")))
}

func TestRealizedReports_Delegate(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	realized := fakeRealized{
		sales: []domain.RealizedSale{
			{Date: date(2024, 5, 1), AssetID: "a1", PnL: d("55")},
			{Date: date(2025, 5, 1), AssetID: "a1", PnL: d("-5")},
		},
		years: []portfolio.YearPnL{{Year: 2024, Sales: 1, PnL: d("55")}},
	}
	svc := NewService(realized, fakeLedger{}, fakePrices{}, fakeCash{}, fakeSettings{}, log)

	years, err := svc.RealizedByYear()
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.Equal(t, 2024, years[0].Year)

	sales, err := svc.RealizedSales(2025)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].PnL.Equal(d("-5")))
}
