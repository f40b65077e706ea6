// Package prices resolves current prices for quotable tickers through an
// ordered list of fallback strategies.
package prices

import (
	"context"
	"fmt"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// pricePlaces is the precision quotes are normalized to before storage.
const pricePlaces = 6

// Feed supplies raw closing prices for tickers. Each method corresponds to
// one fallback tier; the return value maps ticker to its most recent
// non-missing close. Tickers absent from the map simply had no data.
type Feed interface {
	// RecentCloses returns the latest daily close per ticker over a short
	// window. The cheap bulk path; tried first for every ticker.
	RecentCloses(ctx context.Context, tickers []string) (map[string]float64, error)
	// MonthlyClose returns the latest daily close for one ticker over a
	// wider window, for thinly traded instruments with gaps in recent days.
	MonthlyClose(ctx context.Context, ticker string) (float64, error)
	// IntradayClose returns the latest intraday quote for one ticker, the
	// last resort when daily bars are unavailable.
	IntradayClose(ctx context.Context, ticker string) (float64, error)
}

// Failure records why one ticker could not be priced after all tiers.
type Failure struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// Resolver runs the tiered fallback. A ticker is resolved by the first tier
// that produces a valid price; remaining tiers are only tried for the
// tickers still missing. One ticker failing never stops the others.
type Resolver struct {
	feed Feed
	log  zerolog.Logger
}

// NewResolver creates a new price resolver.
func NewResolver(feed Feed, log zerolog.Logger) *Resolver {
	return &Resolver{
		feed: feed,
		log:  log.With().Str("service", "price_resolver").Logger(),
	}
}

// Resolve prices the given tickers. The returned map holds one price per
// resolved ticker, rounded to six decimal places; failures list the tickers
// that no tier could price.
func (r *Resolver) Resolve(ctx context.Context, tickers []string) (map[string]decimal.Decimal, []Failure) {
	resolved := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return resolved, nil
	}

	reasons := make(map[string]string, len(tickers))

	// Tier 1: one bulk pass over the recent daily closes.
	closes, err := r.feed.RecentCloses(ctx, tickers)
	if err != nil {
		r.log.Warn().Err(err).Msg("Bulk close fetch failed, falling back per ticker")
	}
	for ticker, raw := range closes {
		if err := r.accept(resolved, ticker, raw); err != nil {
			reasons[ticker] = err.Error()
		}
	}

	// Tiers 2 and 3: per-ticker, only for what is still missing.
	for _, ticker := range tickers {
		if _, ok := resolved[ticker]; ok {
			continue
		}
		raw, err := r.feed.MonthlyClose(ctx, ticker)
		if err == nil {
			if err := r.accept(resolved, ticker, raw); err == nil {
				continue
			} else {
				reasons[ticker] = err.Error()
			}
		} else {
			reasons[ticker] = err.Error()
		}

		raw, err = r.feed.IntradayClose(ctx, ticker)
		if err != nil {
			reasons[ticker] = err.Error()
			continue
		}
		if err := r.accept(resolved, ticker, raw); err != nil {
			reasons[ticker] = err.Error()
		}
	}

	var failures []Failure
	for _, ticker := range tickers {
		if _, ok := resolved[ticker]; ok {
			continue
		}
		reason := reasons[ticker]
		if reason == "" {
			reason = domain.ErrNoPriceData.Error()
		}
		r.log.Warn().Str("ticker", ticker).Str("reason", reason).Msg("Ticker could not be priced")
		failures = append(failures, Failure{Ticker: ticker, Reason: reason})
	}

	return resolved, failures
}

// accept validates and normalizes one raw quote into the resolved set.
func (r *Resolver) accept(resolved map[string]decimal.Decimal, ticker string, raw float64) error {
	if raw <= 0 {
		return fmt.Errorf("quote %v for %s: %w", raw, ticker, domain.ErrInvalidPriceValue)
	}
	resolved[ticker] = decimal.NewFromFloat(raw).Round(pricePlaces)
	return nil
}
