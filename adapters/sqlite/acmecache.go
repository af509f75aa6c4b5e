package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/inventorius/inventorius-web/ports"
)

// CertCacheStore implements ports.CertCacheStore using SQLite.
type CertCacheStore struct {
	db *DB
}

// NewCertCacheStore creates a new SQLite ACME cache store.
func NewCertCacheStore(db *DB) *CertCacheStore {
	return &CertCacheStore{db: db}
}

// GetCacheEntry retrieves cached ACME data by key.
func (s *CertCacheStore) GetCacheEntry(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM acme_cache WHERE key = ?
	`, key)

	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PutCacheEntry stores ACME data with the given key.
func (s *CertCacheStore) PutCacheEntry(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acme_cache (key, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, key, data)
	return err
}

// DeleteCacheEntry removes cached ACME data by key.
func (s *CertCacheStore) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM acme_cache WHERE key = ?`, key)
	return err
}

// Ensure interface compliance.
var _ ports.CertCacheStore = (*CertCacheStore)(nil)
