package assets

import (
	"context"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/Gonzalez8/fintrack/internal/prices"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceResolver resolves current prices for a set of tickers.
type PriceResolver interface {
	Resolve(ctx context.Context, tickers []string) (map[string]decimal.Decimal, []prices.Failure)
}

// PriceUpdate reports one successful refresh.
type PriceUpdate struct {
	AssetID string          `json:"asset_id"`
	Ticker  string          `json:"ticker"`
	Price   decimal.Decimal `json:"price"`
}

// RefreshResult summarizes one refresh cycle.
type RefreshResult struct {
	Updated  int              `json:"updated"`
	Prices   []PriceUpdate    `json:"prices"`
	Failures []prices.Failure `json:"failures"`
}

// RefreshService updates current prices for all automatically priced assets.
// Manually priced assets are never touched.
type RefreshService struct {
	repo     *Repository
	resolver PriceResolver
	log      zerolog.Logger
}

// NewRefreshService creates a new price refresh service.
func NewRefreshService(repo *Repository, resolver PriceResolver, log zerolog.Logger) *RefreshService {
	return &RefreshService{
		repo:     repo,
		resolver: resolver,
		log:      log.With().Str("service", "price_refresh").Logger(),
	}
}

// Refresh resolves and stores a current price for every auto-priced asset.
// Failures are per asset: one broken ticker marks that asset ERROR and the
// cycle carries on. A fetch failure keeps the asset's previous price.
func (s *RefreshService) Refresh(ctx context.Context) (RefreshResult, error) {
	assets, err := s.repo.GetAutoPriced()
	if err != nil {
		return RefreshResult{}, err
	}

	var result RefreshResult
	byTicker := make(map[string]domain.Asset, len(assets))
	var tickers []string

	for _, a := range assets {
		if a.Ticker == "" {
			if err := s.repo.MarkNoTicker(a.ID); err != nil {
				s.log.Error().Err(err).Str("asset_id", a.ID).Msg("Failed to flag tickerless asset")
			}
			result.Failures = append(result.Failures, prices.Failure{
				Ticker: a.Name,
				Reason: "auto-priced asset has no ticker",
			})
			continue
		}
		byTicker[a.Ticker] = a
		tickers = append(tickers, a.Ticker)
	}

	resolved, failures := s.resolver.Resolve(ctx, tickers)

	for ticker, price := range resolved {
		a := byTicker[ticker]
		if err := s.repo.UpdatePrice(a.ID, price, domain.PriceSourceYahoo); err != nil {
			s.log.Error().Err(err).Str("asset_id", a.ID).Msg("Failed to store refreshed price")
			result.Failures = append(result.Failures, prices.Failure{Ticker: ticker, Reason: err.Error()})
			continue
		}
		if err := s.repo.UpsertPriceSnapshot(domain.PricePoint{
			AssetID: a.ID,
			Date:    time.Now(),
			Price:   price,
			Source:  domain.PriceSourceYahoo,
		}); err != nil {
			s.log.Error().Err(err).Str("asset_id", a.ID).Msg("Failed to record price snapshot")
		}
		result.Updated++
		result.Prices = append(result.Prices, PriceUpdate{AssetID: a.ID, Ticker: ticker, Price: price})
	}

	for _, f := range failures {
		if a, ok := byTicker[f.Ticker]; ok {
			if err := s.repo.MarkPriceError(a.ID); err != nil {
				s.log.Error().Err(err).Str("asset_id", a.ID).Msg("Failed to flag price error")
			}
		}
		result.Failures = append(result.Failures, f)
	}

	s.log.Info().
		Int("updated", result.Updated).
		Int("failed", len(result.Failures)).
		Msg("Price refresh cycle finished")

	return result, nil
}
