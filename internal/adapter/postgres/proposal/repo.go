// Package proposal implements the EditProposal repository using PostgreSQL.
// Review transitions rewrite only the review columns; the diff itself is
// immutable once submitted.
package proposal

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

const table = "edit_proposals"

var columns = []string{
	"id", "resource_id", "kind", "changes", "justification", "status",
	"submitter_id", "reviewer_id", "reviewed_at", "feedback", "applied_at", "created_at",
}

// Repo provides edit-proposal persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new proposal repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type row struct {
	ID            uuid.UUID  `db:"id"`
	ResourceID    uuid.UUID  `db:"resource_id"`
	Kind          string     `db:"kind"`
	Changes       []byte     `db:"changes"`
	Justification string     `db:"justification"`
	Status        string     `db:"status"`
	SubmitterID   uuid.UUID  `db:"submitter_id"`
	ReviewerID    *uuid.UUID `db:"reviewer_id"`
	ReviewedAt    *time.Time `db:"reviewed_at"`
	Feedback      *string    `db:"feedback"`
	AppliedAt     *time.Time `db:"applied_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Create inserts a new proposal and returns the persisted domain.EditProposal.
func (r *Repo) Create(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	changes, err := json.Marshal(p.Changes)
	if err != nil {
		return nil, fmt.Errorf("proposal marshal changes: %w", err)
	}

	sql, args, err := psql.Insert(table).
		Columns(columns...).
		Values(p.ID, p.ResourceID, string(p.Kind), changes, p.Justification, string(p.Status),
			p.SubmitterID, p.ReviewerID, p.ReviewedAt, p.Feedback, p.AppliedAt, p.CreatedAt).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert proposal: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "proposal", p.ID)
	}
	return toDomain(&out)
}

// GetByID returns a proposal by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select proposal: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "proposal", id)
	}
	return toDomain(&out)
}

// GetByIDForUpdate loads a proposal with a row lock. Callers must be inside
// a transaction; the lock serializes concurrent reviews of the same proposal.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select proposal for update: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "proposal", id)
	}
	return toDomain(&out)
}

// UpdateReview persists a review transition: status, reviewer, feedback,
// and (for applied approvals) the applied timestamp.
func (r *Repo) UpdateReview(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(table).
		Set("status", string(p.Status)).
		Set("reviewer_id", p.ReviewerID).
		Set("reviewed_at", p.ReviewedAt).
		Set("feedback", p.Feedback).
		Set("applied_at", p.AppliedAt).
		Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update proposal review: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "proposal", p.ID)
	}
	return toDomain(&out)
}

// List returns proposals filtered by status (empty = all), newest first.
func (r *Repo) List(ctx context.Context, status domain.ProposalStatus, limit, offset int) ([]*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Select(columns...).From(table).OrderBy("created_at DESC")
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list proposals: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	out := make([]*domain.EditProposal, len(rows))
	for i := range rows {
		p, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// ListByResource returns all proposals targeting one resource, newest first.
func (r *Repo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).
		Where(sq.Eq{"resource_id": resourceID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list proposals by resource: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list proposals by resource: %w", err)
	}

	out := make([]*domain.EditProposal, len(rows))
	for i := range rows {
		p, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func columnList() string {
	out := columns[0]
	for _, c := range columns[1:] {
		out += ", " + c
	}
	return out
}

func toDomain(in *row) (*domain.EditProposal, error) {
	p := &domain.EditProposal{
		ID:            in.ID,
		ResourceID:    in.ResourceID,
		Kind:          domain.ProposalKind(in.Kind),
		Justification: in.Justification,
		Status:        domain.ProposalStatus(in.Status),
		SubmitterID:   in.SubmitterID,
		ReviewerID:    in.ReviewerID,
		ReviewedAt:    in.ReviewedAt,
		Feedback:      in.Feedback,
		AppliedAt:     in.AppliedAt,
		CreatedAt:     in.CreatedAt,
	}
	if len(in.Changes) > 0 {
		if err := json.Unmarshal(in.Changes, &p.Changes); err != nil {
			return nil, fmt.Errorf("proposal %s unmarshal changes: %w", in.ID, err)
		}
	}
	return p, nil
}
