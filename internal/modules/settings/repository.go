// Package settings manages the single process-wide configuration record.
// The record is stored as one row with id fixed to 1 and is lazily created
// with defaults the first time it is loaded. Every valuation and snapshot
// decision reads it; it is mutated only through Update, never implicitly.
package settings

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/rs/zerolog"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same reads can run
// inside the coordinator's critical section.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Repository handles the settings row in fintrack.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "settings").Logger(),
	}
}

const settingsColumns = `base_currency, cost_basis_method, gift_cost_mode,
	rounding_money, rounding_qty, price_update_interval, default_price_source,
	snapshot_frequency`

// Load returns the settings record, creating it with defaults if it does not
// exist yet.
func (r *Repository) Load() (domain.Settings, error) {
	return r.load(r.db)
}

// LoadTx reads the settings row inside an open transaction. Combined with
// LockTx this gives the caller a consistent view of the configuration for the
// duration of its critical section.
func (r *Repository) LoadTx(tx *sql.Tx) (domain.Settings, error) {
	return r.load(tx)
}

func (r *Repository) load(q querier) (domain.Settings, error) {
	s, err := r.scan(q)
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	// First load: create the row with defaults. INSERT OR IGNORE keeps this
	// safe against a concurrent first load.
	defaults := domain.DefaultSettings()
	now := time.Now().Unix()
	_, err = q.Exec(`
		INSERT OR IGNORE INTO settings
		(id, base_currency, cost_basis_method, gift_cost_mode, rounding_money,
		 rounding_qty, price_update_interval, default_price_source,
		 snapshot_frequency, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, defaults.BaseCurrency, string(defaults.CostBasisMethod), string(defaults.GiftCostMode),
		defaults.RoundingMoney, defaults.RoundingQty, defaults.PriceUpdateInterval,
		string(defaults.DefaultPriceSource), defaults.SnapshotFrequency, now)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to create default settings: %w", err)
	}

	r.log.Info().Msg("Settings record created with defaults")

	s, err = r.scan(q)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings after create: %w", err)
	}
	return s, nil
}

func (r *Repository) scan(q querier) (domain.Settings, error) {
	var s domain.Settings
	var method, giftMode, source string
	err := q.QueryRow("SELECT "+settingsColumns+" FROM settings WHERE id = 1").Scan(
		&s.BaseCurrency,
		&method,
		&giftMode,
		&s.RoundingMoney,
		&s.RoundingQty,
		&s.PriceUpdateInterval,
		&source,
		&s.SnapshotFrequency,
	)
	if err != nil {
		return domain.Settings{}, err
	}
	s.CostBasisMethod = domain.CostBasisMethod(method)
	s.GiftCostMode = domain.GiftCostMode(giftMode)
	s.DefaultPriceSource = domain.PriceSource(source)
	return s, nil
}

// Update overwrites the settings record. This is the only mutation path.
func (r *Repository) Update(s domain.Settings) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE settings SET
			base_currency = ?,
			cost_basis_method = ?,
			gift_cost_mode = ?,
			rounding_money = ?,
			rounding_qty = ?,
			price_update_interval = ?,
			default_price_source = ?,
			snapshot_frequency = ?,
			updated_at = ?
		WHERE id = 1
	`, s.BaseCurrency, string(s.CostBasisMethod), string(s.GiftCostMode),
		s.RoundingMoney, s.RoundingQty, s.PriceUpdateInterval,
		string(s.DefaultPriceSource), s.SnapshotFrequency, now)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	r.log.Info().
		Str("gift_cost_mode", string(s.GiftCostMode)).
		Int("snapshot_frequency", s.SnapshotFrequency).
		Int("price_update_interval", s.PriceUpdateInterval).
		Msg("Settings updated")
	return nil
}

// LockTx takes a write lock on the settings row inside the given transaction.
// SQLite escalates this to the database write lock, so concurrent coordinator
// instances serialize here: the second one blocks (bounded by busy_timeout)
// until the first commits, then observes the just-updated state.
func (r *Repository) LockTx(tx *sql.Tx) error {
	now := time.Now().Unix()
	res, err := tx.Exec("UPDATE settings SET lock_acquired_at = ? WHERE id = 1", now)
	if err != nil {
		return fmt.Errorf("failed to lock settings row: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		// Row not created yet; create it so the lock has something to scope to.
		if _, err := r.load(tx); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE settings SET lock_acquired_at = ? WHERE id = 1", now); err != nil {
			return fmt.Errorf("failed to lock settings row: %w", err)
		}
	}
	return nil
}
