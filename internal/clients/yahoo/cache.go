package yahoo

import (
	"database/sql"
	"fmt"
	"time"
)

// CacheRepository stores raw chart responses in cache.db with an expiration.
// Responses are kept verbatim so stale data can be re-parsed as a fallback
// when the feed is unreachable.
type CacheRepository struct {
	db *sql.DB
}

// NewCacheRepository creates a new chart response cache.
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Store saves a response with expiration = now + ttl.
func (r *CacheRepository) Store(key string, data []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO yahoo_chart (key, data, expires_at) VALUES (?, ?, ?)",
		key, string(data), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to cache chart response: %w", err)
	}
	return nil
}

// GetIfFresh returns the cached response if it has not expired, nil otherwise.
func (r *CacheRepository) GetIfFresh(key string) ([]byte, error) {
	return r.get(key, true)
}

// GetStale returns the cached response regardless of expiration.
// Stale data is better than no data when the feed is down.
func (r *CacheRepository) GetStale(key string) ([]byte, error) {
	return r.get(key, false)
}

func (r *CacheRepository) get(key string, freshOnly bool) ([]byte, error) {
	query := "SELECT data FROM yahoo_chart WHERE key = ?"
	args := []interface{}{key}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var data string
	err := r.db.QueryRow(query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chart cache: %w", err)
	}
	return []byte(data), nil
}

// Cleanup deletes expired entries.
func (r *CacheRepository) Cleanup() (int64, error) {
	res, err := r.db.Exec("DELETE FROM yahoo_chart WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean chart cache: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}
