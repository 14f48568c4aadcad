package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/halisaha/teammatch/internal/infrastructure/persistence/kv"
)

// KVStore is a kv.Store over the kv_entries table.
// Expired rows are invisible to Get and removed by PurgeExpired.
type KVStore struct {
	db  Querier
	now func() time.Time
}

var _ kv.Store = (*KVStore)(nil)

// NewKVStore creates a KVStore. Run the migrations first.
func NewKVStore(db Querier) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

const (
	queryGet = `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	queryUpsert = `
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`

	queryDelete = `DELETE FROM kv_entries WHERE key = $1`

	queryPurge = `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// Get returns the value for key. Missing and expired keys are kv.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, kv.ErrEmptyKey
	}

	var value []byte
	if err := s.db.QueryRow(ctx, queryGet, key, s.now().UTC()).Scan(&value); err != nil {
		if IsNoRows(err) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value. ttl == 0 stores the row without expiry.
func (s *KVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return kv.ErrEmptyKey
	}

	now := s.now().UTC()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	if _, err := s.db.Exec(ctx, queryUpsert, key, value, expiresAt, now); err != nil {
		return fmt.Errorf("postgres set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, queryDelete, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, queryPurge, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
