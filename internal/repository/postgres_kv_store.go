package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresKVStore persists values in the portal_kv table.
type PostgresKVStore struct {
	db        *sqlx.DB
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

// NewPostgresKVStore constructs the store for one namespace.
func NewPostgresKVStore(db *sqlx.DB, namespace string, ttl time.Duration) *PostgresKVStore {
	if namespace == "" {
		namespace = "drafts"
	}
	return &PostgresKVStore{db: db, namespace: namespace, ttl: ttl, now: time.Now}
}

func (r *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM portal_kv WHERE namespace = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > $3)`
	var value []byte
	if err := r.db.GetContext(ctx, &value, query, r.namespace, key, r.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, nil
}

func (r *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO portal_kv (namespace, key, value, expires_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	now := r.now().UTC()
	var expires *time.Time
	if r.ttl > 0 {
		at := now.Add(r.ttl)
		expires = &at
	}
	if _, err := r.db.ExecContext(ctx, query, r.namespace, key, value, expires, now); err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

func (r *PostgresKVStore) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM portal_kv WHERE namespace = $1 AND key = $2`
	if _, err := r.db.ExecContext(ctx, query, r.namespace, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and returns how many went.
func (r *PostgresKVStore) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM portal_kv WHERE namespace = $1 AND expires_at IS NOT NULL AND expires_at <= $2`
	res, err := r.db.ExecContext(ctx, query, r.namespace, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge kv: %w", err)
	}
	return res.RowsAffected()
}
