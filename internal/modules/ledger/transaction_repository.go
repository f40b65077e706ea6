// Package ledger provides access to the append-only transaction ledger.
// The engine only ever reads the ledger; rows are inserted by the CRUD
// surface and never mutated afterwards. Corrections are new rows.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Gonzalez8/fintrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// transactionColumns is the column list for the transactions table.
// Order must match scanTransaction.
const transactionColumns = `id, date, type, asset_id, account_id, quantity, price, commission, tax, notes, created_at`

// TransactionRepository handles transaction ledger database operations.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// Create appends a transaction to the ledger.
func (r *TransactionRepository) Create(tx domain.Transaction) (domain.Transaction, error) {
	if err := validate(tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO transactions
		(id, date, type, asset_id, account_id, quantity, price, commission, tax, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.Date.Format("2006-01-02"),
		string(tx.Type),
		tx.AssetID,
		nullString(tx.AccountID),
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Commission.String(),
		tx.Tax.String(),
		tx.Notes,
		tx.CreatedAt.Unix(),
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	r.log.Info().
		Str("type", string(tx.Type)).
		Str("asset_id", tx.AssetID).
		Str("quantity", tx.Quantity.String()).
		Msg("Transaction recorded")

	return tx, nil
}

// GetAll returns the full ledger in processing order:
// (date ascending, creation timestamp ascending). This ordering defines FIFO
// consumption and must be stable for replay to be deterministic.
func (r *TransactionRepository) GetAll() ([]domain.Transaction, error) {
	return r.query("SELECT " + transactionColumns + " FROM transactions ORDER BY date ASC, created_at ASC")
}

// GetByAsset returns one asset's history in processing order.
func (r *TransactionRepository) GetByAsset(assetID string) ([]domain.Transaction, error) {
	return r.query(
		"SELECT "+transactionColumns+" FROM transactions WHERE asset_id = ? ORDER BY date ASC, created_at ASC",
		assetID,
	)
}

// AssetIDsWithHistory returns the distinct asset ids that appear in the ledger.
func (r *TransactionRepository) AssetIDsWithHistory() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT asset_id FROM transactions ORDER BY asset_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query asset ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset ids: %w", err)
	}
	return ids, nil
}

func (r *TransactionRepository) query(query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var tx domain.Transaction
	var date, txType, quantity, price, commission, tax string
	var accountID sql.NullString
	var createdAt int64

	err := rows.Scan(
		&tx.ID,
		&date,
		&txType,
		&tx.AssetID,
		&accountID,
		&quantity,
		&price,
		&commission,
		&tax,
		&tx.Notes,
		&createdAt,
	)
	if err != nil {
		return tx, err
	}

	tx.Type = domain.TransactionType(txType)
	if accountID.Valid {
		tx.AccountID = accountID.String
	}
	tx.CreatedAt = time.Unix(createdAt, 0).UTC()

	if tx.Date, err = time.Parse("2006-01-02", date); err != nil {
		return tx, fmt.Errorf("invalid transaction date %q: %w", date, err)
	}
	if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return tx, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return tx, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if tx.Commission, err = decimal.NewFromString(commission); err != nil {
		return tx, fmt.Errorf("invalid commission %q: %w", commission, err)
	}
	if tx.Tax, err = decimal.NewFromString(tax); err != nil {
		return tx, fmt.Errorf("invalid tax %q: %w", tax, err)
	}

	return tx, nil
}

func validate(tx domain.Transaction) error {
	switch tx.Type {
	case domain.TransactionBuy, domain.TransactionSell, domain.TransactionGift:
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	if tx.AssetID == "" {
		return fmt.Errorf("asset id is required")
	}
	if !tx.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	// Unit price is required for BUY/SELL; GIFT may carry a zero price
	// depending on the gift cost mode.
	if tx.Type != domain.TransactionGift && !tx.Price.IsPositive() {
		return fmt.Errorf("price must be positive for %s", tx.Type)
	}
	if tx.Commission.IsNegative() || tx.Tax.IsNegative() {
		return fmt.Errorf("commission and tax must not be negative")
	}
	return nil
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}
