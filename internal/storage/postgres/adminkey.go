package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/schoolshop/internal/domain/auth"
)

const (
	getAdminKeyByHashSQL = `SELECT id, key_hash, name
	FROM admin_keys WHERE key_hash = $1 AND active = TRUE`

	upsertAdminKeySQL = `INSERT INTO admin_keys (id, key_hash, name)
	VALUES ($1, $2, $3)
	ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, active = TRUE`
)

var _ auth.Repository = (*AdminKeyRepository)(nil)

// AdminKeyRepository provides admin key lookups backed by PostgreSQL.
type AdminKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAdminKeyRepository returns an AdminKeyRepository that uses the given pool.
func NewAdminKeyRepository(pool *pgxpool.Pool) *AdminKeyRepository {
	return &AdminKeyRepository{pool: pool}
}

// FindByHash looks up an active admin key by its HMAC-SHA256 hash.
func (r *AdminKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.AdminKey, error) {
	rows, err := r.pool.Query(ctx, getAdminKeyByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding admin key by hash: %w", err)
	}
	key, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[auth.AdminKey])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding admin key by hash: %w", err)
	}
	return &key, nil
}

// Upsert stores an admin key, reactivating it when the hash already exists.
func (r *AdminKeyRepository) Upsert(ctx context.Context, key auth.AdminKey) error {
	if _, err := r.pool.Exec(ctx, upsertAdminKeySQL, key.ID, key.KeyHash, key.Name); err != nil {
		return fmt.Errorf("upserting admin key %q: %w", key.Name, err)
	}
	return nil
}
