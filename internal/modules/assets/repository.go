// Package assets manages the asset catalog, current prices and the daily
// price history.
package assets

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const assetColumns = `id, name, ticker, isin, type, currency, current_price,
	price_mode, price_source, price_status, issuer_country, price_updated_at,
	created_at, updated_at`

// Repository handles asset database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new asset repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "assets").Logger(),
	}
}

// Create inserts a new asset.
func (r *Repository) Create(a domain.Asset) (domain.Asset, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Type == "" {
		a.Type = domain.AssetTypeStock
	}
	if a.Currency == "" {
		a.Currency = "EUR"
	}
	if a.PriceMode == "" {
		a.PriceMode = domain.PriceModeManual
	}
	if a.PriceSource == "" {
		a.PriceSource = domain.PriceSourceYahoo
	}

	var price interface{}
	if a.CurrentPrice != nil {
		price = a.CurrentPrice.String()
	}
	var priceUpdated interface{}
	if a.PriceUpdatedAt != nil {
		priceUpdated = a.PriceUpdatedAt.Unix()
	}

	_, err := r.db.Exec(`
		INSERT INTO assets
		(id, name, ticker, isin, type, currency, current_price, price_mode,
		 price_source, price_status, issuer_country, price_updated_at,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, nullString(a.Ticker), nullString(a.ISIN), string(a.Type),
		a.Currency, price, string(a.PriceMode), string(a.PriceSource),
		nullString(string(a.PriceStatus)), nullString(a.IssuerCountry),
		priceUpdated, a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to create asset: %w", err)
	}

	r.log.Info().Str("asset_id", a.ID).Str("name", a.Name).Msg("Asset created")
	return a, nil
}

// GetAll returns all assets ordered by name.
func (r *Repository) GetAll() ([]domain.Asset, error) {
	return r.query("SELECT " + assetColumns + " FROM assets ORDER BY name ASC")
}

// GetByID returns one asset, or domain.ErrNotFound.
func (r *Repository) GetByID(id string) (domain.Asset, error) {
	assets, err := r.query("SELECT "+assetColumns+" FROM assets WHERE id = ?", id)
	if err != nil {
		return domain.Asset{}, err
	}
	if len(assets) == 0 {
		return domain.Asset{}, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return assets[0], nil
}

// GetAutoPriced returns the assets whose price is maintained automatically.
// Assets without a ticker are included so the refresh cycle can flag them.
func (r *Repository) GetAutoPriced() ([]domain.Asset, error) {
	return r.query(
		"SELECT "+assetColumns+" FROM assets WHERE price_mode = ? ORDER BY name ASC",
		string(domain.PriceModeAuto),
	)
}

// UpdatePrice stores a freshly resolved price and stamps the asset OK.
func (r *Repository) UpdatePrice(id string, price decimal.Decimal, source domain.PriceSource) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE assets SET
			current_price = ?,
			price_source = ?,
			price_status = ?,
			price_updated_at = ?,
			updated_at = ?
		WHERE id = ?
	`, price.String(), string(source), string(domain.PriceStatusOK), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update price for asset %s: %w", id, err)
	}
	return nil
}

// MarkPriceError stamps the last refresh attempt as failed. The previous
// price is kept; a fetch failure does not erase known data.
func (r *Repository) MarkPriceError(id string) error {
	return r.setStatus(id, domain.PriceStatusError)
}

// MarkNoTicker flags an auto-priced asset that has no ticker to quote.
func (r *Repository) MarkNoTicker(id string) error {
	return r.setStatus(id, domain.PriceStatusNoTicker)
}

// setStatus records the outcome of a refresh attempt. The attempt time is
// stamped even on failure so staleness is measured from the last attempt,
// not the last success.
func (r *Repository) setStatus(id string, status domain.PriceStatus) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(
		"UPDATE assets SET price_status = ?, price_updated_at = ?, updated_at = ? WHERE id = ?",
		string(status), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set price status for asset %s: %w", id, err)
	}
	return nil
}

// SetManualPrice sets the current price of a manually priced asset. Assets in
// automatic mode reject manual prices; switch the mode first.
func (r *Repository) SetManualPrice(id string, price decimal.Decimal) error {
	a, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if a.PriceMode != domain.PriceModeManual {
		return fmt.Errorf("asset %s: %w", id, domain.ErrManualPriceMode)
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive: %w", domain.ErrInvalidPriceValue)
	}

	now := time.Now()
	_, err = r.db.Exec(`
		UPDATE assets SET
			current_price = ?,
			price_source = ?,
			price_status = ?,
			price_updated_at = ?,
			updated_at = ?
		WHERE id = ?
	`, price.String(), string(domain.PriceSourceManual), string(domain.PriceStatusOK),
		now.Unix(), now.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set manual price for asset %s: %w", id, err)
	}

	if err := r.UpsertPriceSnapshot(domain.PricePoint{
		AssetID: id,
		Date:    now,
		Price:   price,
		Source:  domain.PriceSourceManual,
	}); err != nil {
		return err
	}

	r.log.Info().Str("asset_id", id).Str("price", price.String()).Msg("Manual price set")
	return nil
}

// UpsertPriceSnapshot records one daily price observation. Re-recording the
// same (asset, day) overwrites, so a day holds at most one observation.
func (r *Repository) UpsertPriceSnapshot(p domain.PricePoint) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO price_snapshots (asset_id, date, price, source, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.AssetID, p.Date.Format("2006-01-02"), p.Price.String(), string(p.Source), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert price snapshot for %s: %w", p.AssetID, err)
	}
	return nil
}

// PriceHistory returns one asset's stored daily prices, oldest first.
func (r *Repository) PriceHistory(assetID string) ([]domain.PricePoint, error) {
	rows, err := r.db.Query(`
		SELECT asset_id, date, price, source FROM price_snapshots
		WHERE asset_id = ? ORDER BY date ASC
	`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", assetID, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var date, price, source string
		if err := rows.Scan(&p.AssetID, &date, &price, &source); err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}
		if p.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad price snapshot date %q: %w", date, err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("bad price %q: %w", price, err)
		}
		p.Source = domain.PriceSource(source)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *Repository) query(query string, args ...interface{}) ([]domain.Asset, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func scanAsset(rows *sql.Rows) (domain.Asset, error) {
	var a domain.Asset
	var ticker, isin, price, status, country sql.NullString
	var priceUpdated sql.NullInt64
	var assetType, mode, source string
	var createdAt, updatedAt int64

	err := rows.Scan(&a.ID, &a.Name, &ticker, &isin, &assetType, &a.Currency,
		&price, &mode, &source, &status, &country, &priceUpdated,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to scan asset: %w", err)
	}

	a.Ticker = ticker.String
	a.ISIN = isin.String
	a.Type = domain.AssetType(assetType)
	a.PriceMode = domain.PriceMode(mode)
	a.PriceSource = domain.PriceSource(source)
	a.PriceStatus = domain.PriceStatus(status.String)
	a.IssuerCountry = country.String
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("bad current_price %q: %w", price.String, err)
		}
		a.CurrentPrice = &p
	}
	if priceUpdated.Valid {
		t := time.Unix(priceUpdated.Int64, 0).UTC()
		a.PriceUpdatedAt = &t
	}
	return a, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
