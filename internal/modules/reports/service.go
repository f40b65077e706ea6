// Package reports derives aggregate views from the ledger, price history and
// account snapshots. Reports are computed on demand and never persisted.
package reports

import (
	"sort"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RealizedSource supplies realized-sale events from ledger replay.
type RealizedSource interface {
	RealizedSales(year int) ([]domain.RealizedSale, error)
	RealizedByYear() ([]portfolio.YearPnL, error)
}

// LedgerSource supplies the transaction ledger in processing order.
type LedgerSource interface {
	GetAll() ([]domain.Transaction, error)
}

// PriceHistorySource supplies stored daily prices per asset.
type PriceHistorySource interface {
	PriceHistory(assetID string) ([]domain.PricePoint, error)
}

// CashSource supplies account balance snapshots.
type CashSource interface {
	AllSnapshots() ([]domain.AccountSnapshot, error)
}

// SettingsSource supplies the configuration record.
type SettingsSource interface {
	Load() (domain.Settings, error)
}

// MonthlyPoint is one month-end observation of net worth.
type MonthlyPoint struct {
	Month       string          `json:"month"` // YYYY-MM
	Cash        decimal.Decimal `json:"cash"`
	Investments decimal.Decimal `json:"investments"`
	Total       decimal.Decimal `json:"total"`
}

// Service computes reports.
type Service struct {
	realized RealizedSource
	ledger   LedgerSource
	prices   PriceHistorySource
	cash     CashSource
	settings SettingsSource
	log      zerolog.Logger
}

// NewService creates a new reports service.
func NewService(realized RealizedSource, ledger LedgerSource, prices PriceHistorySource,
	cash CashSource, settings SettingsSource, log zerolog.Logger) *Service {
	return &Service{
		realized: realized,
		ledger:   ledger,
		prices:   prices,
		cash:     cash,
		settings: settings,
		log:      log.With().Str("service", "reports").Logger(),
	}
}

// RealizedByYear returns realized P&L grouped by calendar year, oldest first.
func (s *Service) RealizedByYear() ([]portfolio.YearPnL, error) {
	return s.realized.RealizedByYear()
}

// RealizedSales returns the individual realized-sale events, optionally
// filtered to one year.
func (s *Service) RealizedSales(year int) ([]domain.RealizedSale, error) {
	return s.realized.RealizedSales(year)
}

// Evolution computes the month-end net worth series from the first recorded
// activity to now. Cash balances carry forward from the latest account
// snapshot at or before each month end; holdings are valued at the last
// stored price at or before it.
func (s *Service) Evolution() ([]MonthlyPoint, error) {
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}

	txs, err := s.ledger.GetAll()
	if err != nil {
		return nil, err
	}
	cashSnaps, err := s.cash.AllSnapshots()
	if err != nil {
		return nil, err
	}

	start, ok := firstActivity(txs, cashSnaps)
	if !ok {
		return nil, nil
	}

	byAsset := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		byAsset[tx.AssetID] = append(byAsset[tx.AssetID], tx)
	}
	assetIDs := make([]string, 0, len(byAsset))
	for id := range byAsset {
		assetIDs = append(assetIDs, id)
	}
	sort.Strings(assetIDs)

	history := make(map[string][]domain.PricePoint, len(assetIDs))
	for _, id := range assetIDs {
		points, err := s.prices.PriceHistory(id)
		if err != nil {
			return nil, err
		}
		history[id] = points
	}

	var series []MonthlyPoint
	now := time.Now().UTC()
	for month := start; !month.After(now); month = month.AddDate(0, 1, 0) {
		cutoff := endOfMonth(month)

		cash := cashAt(cashSnaps, cutoff)

		investments := decimal.Zero
		for _, id := range assetIDs {
			qty, err := quantityAt(byAsset[id], cutoff, cfg.GiftCostMode)
			if err != nil {
				// An oversold ledger poisons every month from the oversell
				// on; skip the asset and keep the series usable.
				s.log.Warn().Str("asset_id", id).Err(err).Msg("Asset excluded from evolution")
				continue
			}
			if !qty.IsPositive() {
				continue
			}
			price, ok := priceAt(history[id], cutoff)
			if !ok {
				continue
			}
			investments = investments.Add(qty.Mul(price))
		}
		investments = investments.Round(cfg.RoundingMoney)
		cash = cash.Round(cfg.RoundingMoney)

		series = append(series, MonthlyPoint{
			Month:       month.Format("2006-01"),
			Cash:        cash,
			Investments: investments,
			Total:       cash.Add(investments),
		})
	}

	return series, nil
}

// firstActivity returns the first month (first day, UTC) with any recorded
// transaction or cash snapshot.
func firstActivity(txs []domain.Transaction, snaps []domain.AccountSnapshot) (time.Time, bool) {
	var first time.Time
	for _, tx := range txs {
		if first.IsZero() || tx.Date.Before(first) {
			first = tx.Date
		}
	}
	for _, snap := range snaps {
		if first.IsZero() || snap.Date.Before(first) {
			first = snap.Date
		}
	}
	if first.IsZero() {
		return time.Time{}, false
	}
	return time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC), true
}

func endOfMonth(month time.Time) time.Time {
	return time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 1, 0).Add(-time.Second)
}

// cashAt sums, per account, the balance of the latest snapshot at or before
// the cutoff. Accounts with no snapshot yet contribute nothing.
func cashAt(snaps []domain.AccountSnapshot, cutoff time.Time) decimal.Decimal {
	latest := make(map[string]domain.AccountSnapshot)
	for _, snap := range snaps {
		if snap.Date.After(cutoff) {
			continue
		}
		if cur, ok := latest[snap.AccountID]; !ok || snap.Date.After(cur.Date) {
			latest[snap.AccountID] = snap
		}
	}
	total := decimal.Zero
	for _, snap := range latest {
		total = total.Add(snap.Balance)
	}
	return total
}

// quantityAt replays one asset's ledger up to the cutoff and returns the
// remaining quantity.
func quantityAt(txs []domain.Transaction, cutoff time.Time, giftMode domain.GiftCostMode) (decimal.Decimal, error) {
	var upTo []domain.Transaction
	for _, tx := range txs {
		if tx.Date.After(cutoff) {
			break
		}
		upTo = append(upTo, tx)
	}
	res, err := portfolio.Replay(upTo, giftMode)
	if err != nil {
		return decimal.Zero, err
	}
	return res.RemainingQuantity(), nil
}

// priceAt returns the last stored price at or before the cutoff.
func priceAt(points []domain.PricePoint, cutoff time.Time) (decimal.Decimal, bool) {
	var price decimal.Decimal
	found := false
	for _, p := range points {
		if p.Date.After(cutoff) {
			break
		}
		price = p.Price
		found = true
	}
	return price, found
}
