package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionSource supplies the ledger in processing order.
type TransactionSource interface {
	GetAll() ([]domain.Transaction, error)
}

// AssetSource supplies the current asset records (names, prices).
type AssetSource interface {
	GetAll() ([]domain.Asset, error)
}

// SettingsSource supplies the configuration record. LoadTx reads it inside an
// open transaction, so a valuation running in a caller's critical section
// observes the settings row that section created or locked.
type SettingsSource interface {
	Load() (domain.Settings, error)
	LoadTx(tx *sql.Tx) (domain.Settings, error)
}

// Service is the portfolio valuator. It is the single source of truth for
// portfolio totals: interactive valuation requests and the snapshot job both
// run through Valuate and observe identical numbers for identical data.
type Service struct {
	transactions TransactionSource
	assets       AssetSource
	settings     SettingsSource
	log          zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(transactions TransactionSource, assets AssetSource, settings SettingsSource, log zerolog.Logger) *Service {
	return &Service{
		transactions: transactions,
		assets:       assets,
		settings:     settings,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// Valuate replays the full ledger and aggregates open positions into
// portfolio totals. Replay is deterministic: re-running on unchanged data
// yields identical totals to the unit of the configured rounding.
//
// An asset whose ledger oversells (more quantity sold than held) is skipped
// and surfaced as a warning; the rest of the portfolio is still valued.
func (s *Service) Valuate() (domain.Valuation, error) {
	cfg, err := s.settings.Load()
	if err != nil {
		return domain.Valuation{}, err
	}
	return s.valuate(cfg)
}

// ValuateTx valuates with the settings as seen inside the given transaction.
// The snapshot writer runs within the coordinator's critical section; on a
// fresh database the settings row was lazily created inside that transaction
// and is not yet visible to other connections, so a plain Load there would
// block on the caller's own write lock until busy_timeout.
func (s *Service) ValuateTx(tx *sql.Tx) (domain.Valuation, error) {
	cfg, err := s.settings.LoadTx(tx)
	if err != nil {
		return domain.Valuation{}, err
	}
	return s.valuate(cfg)
}

func (s *Service) valuate(cfg domain.Settings) (domain.Valuation, error) {
	byAsset, order, err := s.ledgerByAsset()
	if err != nil {
		return domain.Valuation{}, err
	}

	assets, err := s.assetIndex()
	if err != nil {
		return domain.Valuation{}, err
	}

	valuation := domain.Valuation{
		TotalMarketValue:   decimal.Zero,
		TotalCost:          decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
	}

	for _, assetID := range order {
		asset, known := assets[assetID]
		name := assetID
		if known {
			name = asset.Name
		}

		res, err := Replay(byAsset[assetID], cfg.GiftCostMode)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientLots) {
				s.log.Warn().Str("asset_id", assetID).Err(err).Msg("Ledger oversell, asset skipped")
				valuation.Warnings = append(valuation.Warnings, domain.ValuationWarning{
					AssetID:   assetID,
					AssetName: name,
					Message:   err.Error(),
				})
				continue
			}
			return domain.Valuation{}, fmt.Errorf("failed to replay asset %s: %w", assetID, err)
		}

		quantity := res.RemainingQuantity().Round(cfg.RoundingQty)
		if !quantity.IsPositive() {
			// Fully closed positions vanish; they are not zero-quantity rows.
			continue
		}

		pos := domain.Position{
			AssetID:   assetID,
			AssetName: name,
			Quantity:  quantity,
			Cost:      res.RemainingCost().Round(cfg.RoundingMoney),
		}
		if known {
			pos.Ticker = asset.Ticker
		}

		if known && asset.CurrentPrice != nil {
			pos.MarketValue = quantity.Mul(*asset.CurrentPrice).Round(cfg.RoundingMoney)
		} else {
			// No usable price; market value stays zero so the snapshot
			// writer's integrity guard can catch the broken state.
			valuation.Warnings = append(valuation.Warnings, domain.ValuationWarning{
				AssetID:   assetID,
				AssetName: name,
				Message:   "no current price",
			})
		}

		pos.UnrealizedPnL = pos.MarketValue.Sub(pos.Cost)
		if pos.Cost.IsZero() {
			pos.UnrealizedPnLPct = decimal.Zero
		} else {
			pos.UnrealizedPnLPct = pos.UnrealizedPnL.
				Div(pos.Cost).
				Mul(decimal.NewFromInt(100)).
				Round(cfg.RoundingMoney)
		}

		valuation.Positions = append(valuation.Positions, pos)
		valuation.TotalMarketValue = valuation.TotalMarketValue.Add(pos.MarketValue)
		valuation.TotalCost = valuation.TotalCost.Add(pos.Cost)
	}

	valuation.TotalUnrealizedPnL = valuation.TotalMarketValue.Sub(valuation.TotalCost)

	sort.Slice(valuation.Positions, func(i, j int) bool {
		return valuation.Positions[i].AssetName < valuation.Positions[j].AssetName
	})

	return valuation, nil
}

// RealizedSales returns the realized-sale events for all assets, optionally
// filtered to one calendar year. Oversold assets are skipped, mirroring
// Valuate.
func (s *Service) RealizedSales(year int) ([]domain.RealizedSale, error) {
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}

	byAsset, order, err := s.ledgerByAsset()
	if err != nil {
		return nil, err
	}

	assets, err := s.assetIndex()
	if err != nil {
		return nil, err
	}

	var sales []domain.RealizedSale
	for _, assetID := range order {
		res, err := Replay(byAsset[assetID], cfg.GiftCostMode)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientLots) {
				s.log.Warn().Str("asset_id", assetID).Err(err).Msg("Ledger oversell, realized sales skipped")
				continue
			}
			return nil, fmt.Errorf("failed to replay asset %s: %w", assetID, err)
		}
		for _, sale := range res.Sales {
			if asset, ok := assets[assetID]; ok {
				sale.AssetName = asset.Name
			}
			sale.Proceeds = sale.Proceeds.Round(cfg.RoundingMoney)
			sale.Cost = sale.Cost.Round(cfg.RoundingMoney)
			sale.PnL = sale.PnL.Round(cfg.RoundingMoney)
			sales = append(sales, sale)
		}
	}

	sales = FilterSalesByYear(sales, year)
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].Date.Equal(sales[j].Date) {
			return sales[i].Date.Before(sales[j].Date)
		}
		return sales[i].AssetID < sales[j].AssetID
	})
	return sales, nil
}

// RealizedByYear groups all realized P&L by calendar year.
func (s *Service) RealizedByYear() ([]YearPnL, error) {
	sales, err := s.RealizedSales(0)
	if err != nil {
		return nil, err
	}
	return GroupSalesByYear(sales), nil
}

// ledgerByAsset groups the ledger per asset, preserving processing order
// within each group, and returns the asset ids in deterministic order.
func (s *Service) ledgerByAsset() (map[string][]domain.Transaction, []string, error) {
	txs, err := s.transactions.GetAll()
	if err != nil {
		return nil, nil, err
	}

	byAsset := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		byAsset[tx.AssetID] = append(byAsset[tx.AssetID], tx)
	}

	order := make([]string, 0, len(byAsset))
	for assetID := range byAsset {
		order = append(order, assetID)
	}
	sort.Strings(order)

	return byAsset, order, nil
}

func (s *Service) assetIndex() (map[string]domain.Asset, error) {
	all, err := s.assets.GetAll()
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.Asset, len(all))
	for _, a := range all {
		index[a.ID] = a
	}
	return index, nil
}
