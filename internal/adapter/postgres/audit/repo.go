// Package audit implements the append-only audit log on PostgreSQL.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const table = "audit_log"

var columns = []string{
	"id", "actor_id", "entity_type", "entity_id", "action", "before", "after", "created_at",
}

// Repo provides audit log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new audit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type row struct {
	ID         uuid.UUID  `db:"id"`
	ActorID    uuid.UUID  `db:"actor_id"`
	EntityType string     `db:"entity_type"`
	EntityID   *uuid.UUID `db:"entity_id"`
	Action     string     `db:"action"`
	Before     []byte     `db:"before"`
	After      []byte     `db:"after"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Create appends one audit record. Records are never updated or deleted.
func (r *Repo) Create(ctx context.Context, rec *domain.AuditRecord) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	before, err := marshalSnapshot(rec.Before)
	if err != nil {
		return fmt.Errorf("audit marshal before: %w", err)
	}
	after, err := marshalSnapshot(rec.After)
	if err != nil {
		return fmt.Errorf("audit marshal after: %w", err)
	}

	sql, args, err := psql.Insert(table).
		Columns(columns...).
		Values(rec.ID, rec.ActorID, string(rec.EntityType), rec.EntityID,
			string(rec.Action), before, after, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit record: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "audit record", rec.ID)
	}
	return nil
}

// GetByEntity returns the records for one entity, newest first.
func (r *Repo) GetByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]*domain.AuditRecord, error) {
	b := psql.Select(columns...).From(table).
		Where(sq.Eq{"entity_type": string(entityType), "entity_id": entityID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.list(ctx, b)
}

// GetByActor returns the records produced by one actor, newest first.
func (r *Repo) GetByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*domain.AuditRecord, error) {
	b := psql.Select(columns...).From(table).
		Where(sq.Eq{"actor_id": actorID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.list(ctx, b)
}

func (r *Repo) list(ctx context.Context, b sq.SelectBuilder) ([]*domain.AuditRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit records: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}

	out := make([]*domain.AuditRecord, len(rows))
	for i := range rows {
		rec, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

func marshalSnapshot(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalSnapshot(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toDomain(in *row) (*domain.AuditRecord, error) {
	before, err := unmarshalSnapshot(in.Before)
	if err != nil {
		return nil, fmt.Errorf("audit record %s unmarshal before: %w", in.ID, err)
	}
	after, err := unmarshalSnapshot(in.After)
	if err != nil {
		return nil, fmt.Errorf("audit record %s unmarshal after: %w", in.ID, err)
	}
	return &domain.AuditRecord{
		ID:         in.ID,
		ActorID:    in.ActorID,
		EntityType: domain.EntityType(in.EntityType),
		EntityID:   in.EntityID,
		Action:     domain.AuditAction(in.Action),
		Before:     before,
		After:      after,
		CreatedAt:  in.CreatedAt,
	}, nil
}
