// Package cache implements the analysis response cache on PostgreSQL.
package cache

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// Repo provides cache entry persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new cache repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// lookupSQL increments the hit counter and returns the entry in one statement,
// so concurrent lookups never lose counts. Expired rows are left untouched and
// reported as a miss.
const lookupSQL = `
UPDATE cache_entries
SET hits = hits + 1
WHERE hash = $1 AND expires_at > now()
RETURNING hash, response, model, tokens_used, hits, created_at, expires_at`

// Lookup returns the entry for a hash and records the hit. Expired or missing
// entries yield domain.ErrNotFound.
func (r *Repo) Lookup(ctx context.Context, hash string) (*domain.CacheEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out domain.CacheEntry
	if err := pgxscan.Get(ctx, q, &out, lookupSQL, hash); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("cache lookup %s: %w", hash, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("cache lookup %s: %w", hash, err)
	}
	return &out, nil
}

// storeSQL upserts by hash. The payload is overwritten but the hit counter of
// an existing row survives.
const storeSQL = `
INSERT INTO cache_entries (hash, response, model, tokens_used, hits, created_at, expires_at)
VALUES ($1, $2, $3, $4, 0, $5, $6)
ON CONFLICT (hash) DO UPDATE SET
	response = EXCLUDED.response,
	model = EXCLUDED.model,
	tokens_used = EXCLUDED.tokens_used,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at`

// Store inserts or refreshes an entry.
func (r *Repo) Store(ctx context.Context, entry *domain.CacheEntry) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx, storeSQL,
		entry.Hash, entry.Response, entry.Model, entry.TokensUsed,
		entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("cache store %s: %w", entry.Hash, err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (r *Repo) Purge(ctx context.Context) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, "DELETE FROM cache_entries WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats summarizes the current cache contents.
func (r *Repo) Stats(ctx context.Context) (domain.CacheStats, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var stats domain.CacheStats
	err := q.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE expires_at <= now()),
		       COALESCE(SUM(hits), 0),
		       COALESCE(SUM(tokens_used), 0)
		FROM cache_entries`).
		Scan(&stats.Entries, &stats.Expired, &stats.TotalHits, &stats.TokensUsed)
	if err != nil {
		return domain.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}
