// Package accounts manages manually maintained cash accounts and their
// balance snapshots.
package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/database"
	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, type, currency, balance, created_at, updated_at`

// Repository handles account database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new account repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "accounts").Logger(),
	}
}

// Create inserts a new account.
func (r *Repository) Create(a domain.Account) (domain.Account, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Type == "" {
		a.Type = "OPERATIVA"
	}
	if a.Currency == "" {
		a.Currency = "EUR"
	}

	_, err := r.db.Exec(`
		INSERT INTO accounts (id, name, type, currency, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Type, a.Currency, a.Balance.String(), a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	r.log.Info().Str("account_id", a.ID).Str("name", a.Name).Msg("Account created")
	return a, nil
}

// GetAll returns all accounts ordered by name.
func (r *Repository) GetAll() ([]domain.Account, error) {
	rows, err := r.db.Query("SELECT " + accountColumns + " FROM accounts ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetByID returns one account, or domain.ErrNotFound.
func (r *Repository) GetByID(id string) (domain.Account, error) {
	rows, err := r.db.Query("SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return scanAccount(rows)
}

// UpsertSnapshot records a cash balance at a date. Re-entering the same
// (account, date) overwrites the earlier entry, and the account's running
// balance is re-synced to its latest-dated snapshot.
func (r *Repository) UpsertSnapshot(snap domain.AccountSnapshot) (domain.AccountSnapshot, error) {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return r.upsertSnapshotTx(tx, &snap)
	})
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return snap, nil
}

// BulkUpsertSnapshots records many balance entries atomically; either all
// land, with balances re-synced, or none do.
func (r *Repository) BulkUpsertSnapshots(snaps []domain.AccountSnapshot) ([]domain.AccountSnapshot, error) {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for i := range snaps {
			if err := r.upsertSnapshotTx(tx, &snaps[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Info().Int("count", len(snaps)).Msg("Account snapshots bulk recorded")
	return snaps, nil
}

func (r *Repository) upsertSnapshotTx(tx *sql.Tx, snap *domain.AccountSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	_, err := tx.Exec(`
		INSERT INTO account_snapshots (id, account_id, date, balance, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, date) DO UPDATE SET
			balance = excluded.balance,
			note = excluded.note
	`, snap.ID, snap.AccountID, snap.Date.Format("2006-01-02"),
		snap.Balance.String(), snap.Note, snap.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert account snapshot: %w", err)
	}

	return r.syncBalanceTx(tx, snap.AccountID)
}

// syncBalanceTx sets the account's balance to its latest-dated snapshot.
func (r *Repository) syncBalanceTx(tx *sql.Tx, accountID string) error {
	var balance string
	err := tx.QueryRow(`
		SELECT balance FROM account_snapshots
		WHERE account_id = ? ORDER BY date DESC LIMIT 1
	`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read latest snapshot for account %s: %w", accountID, err)
	}

	_, err = tx.Exec(
		"UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?",
		balance, time.Now().Unix(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to sync balance for account %s: %w", accountID, err)
	}
	return nil
}

// Snapshots returns one account's balance history, oldest first.
func (r *Repository) Snapshots(accountID string) ([]domain.AccountSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, account_id, date, balance, note, created_at
		FROM account_snapshots WHERE account_id = ? ORDER BY date ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query account snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.AccountSnapshot
	for rows.Next() {
		var s domain.AccountSnapshot
		var date, balance string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.AccountID, &date, &balance, &s.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account snapshot: %w", err)
		}
		if s.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad snapshot date %q: %w", date, err)
		}
		if s.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("bad balance %q: %w", balance, err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// AllSnapshots returns every account snapshot, oldest first, for reporting.
func (r *Repository) AllSnapshots() ([]domain.AccountSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, account_id, date, balance, note, created_at
		FROM account_snapshots ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query account snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.AccountSnapshot
	for rows.Next() {
		var s domain.AccountSnapshot
		var date, balance string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.AccountID, &date, &balance, &s.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account snapshot: %w", err)
		}
		if s.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("bad snapshot date %q: %w", date, err)
		}
		if s.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("bad balance %q: %w", balance, err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func scanAccount(rows *sql.Rows) (domain.Account, error) {
	var a domain.Account
	var balance string
	var createdAt, updatedAt int64
	if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &balance, &createdAt, &updatedAt); err != nil {
		return domain.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return domain.Account{}, fmt.Errorf("bad balance %q: %w", balance, err)
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return a, nil
}
