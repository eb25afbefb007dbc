// Package resource implements the Resource repository using PostgreSQL.
// Resources are the canonical catalog entries; mutation happens only through
// the review service's approved diffs.
package resource

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

const table = "resources"

var columns = []string{
	"id", "title", "url", "description",
	"category", "subcategory", "sub_subcategory",
	"tags", "status", "metadata", "created_at", "updated_at",
}

// Repo provides resource persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new resource repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status   domain.ResourceStatus
	Category string
	Limit    int
	Offset   int
}

type row struct {
	ID             uuid.UUID  `db:"id"`
	Title          string     `db:"title"`
	URL            string     `db:"url"`
	Description    string     `db:"description"`
	Category       *string    `db:"category"`
	Subcategory    *string    `db:"subcategory"`
	SubSubcategory *string    `db:"sub_subcategory"`
	Tags           []string   `db:"tags"`
	Status         string     `db:"status"`
	Metadata       []byte     `db:"metadata"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new resource and returns the persisted domain.Resource.
func (r *Repo) Create(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	metadata, err := marshalMetadata(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("resource marshal metadata: %w", err)
	}

	sql, args, err := psql.Insert(table).
		Columns(columns...).
		Values(res.ID, res.Title, res.URL, res.Description,
			res.Category, res.Subcategory, res.SubSubcategory,
			res.Tags, string(res.Status), metadata, res.CreatedAt, res.UpdatedAt).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert resource: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "resource", res.ID)
	}
	return toDomain(&out)
}

// Update writes every mutable field of the resource. The caller is expected
// to have gone through Diff.Apply; this is a plain full-row write.
func (r *Repo) Update(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	metadata, err := marshalMetadata(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("resource marshal metadata: %w", err)
	}

	sql, args, err := psql.Update(table).
		Set("title", res.Title).
		Set("url", res.URL).
		Set("description", res.Description).
		Set("category", res.Category).
		Set("subcategory", res.Subcategory).
		Set("sub_subcategory", res.SubSubcategory).
		Set("tags", res.Tags).
		Set("status", string(res.Status)).
		Set("metadata", metadata).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": res.ID}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update resource: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "resource", res.ID)
	}
	return toDomain(&out)
}

// Delete removes a resource. Only explicit admin flows call this.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete resource: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "resource", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a resource by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select resource: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "resource", id)
	}
	return toDomain(&out)
}

// FindActiveByURL returns the non-rejected resource with the given URL.
// URL uniqueness is enforced among non-rejected resources only.
func (r *Repo) FindActiveByURL(ctx context.Context, url string) (*domain.Resource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).
		Where(sq.Eq{"url": url}).
		Where(sq.NotEq{"status": string(domain.ResourceStatusRejected)}).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select resource by url: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "resource", url)
	}
	return toDomain(&out)
}

// List returns resources matching the filter, newest first.
func (r *Repo) List(ctx context.Context, filter Filter) ([]*domain.Resource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Select(columns...).From(table).OrderBy("created_at DESC")
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Category != "" {
		b = b.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list resources: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return toDomainSlice(rows)
}

// ListByIDs returns the resources with the given ids, in no particular order.
func (r *Repo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(columns...).From(table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list resources by ids: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list resources by ids: %w", err)
	}
	return toDomainSlice(rows)
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func columnList() string {
	out := columns[0]
	for _, c := range columns[1:] {
		out += ", " + c
	}
	return out
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func toDomain(in *row) (*domain.Resource, error) {
	res := &domain.Resource{
		ID:             in.ID,
		Title:          in.Title,
		URL:            in.URL,
		Description:    in.Description,
		Category:       in.Category,
		Subcategory:    in.Subcategory,
		SubSubcategory: in.SubSubcategory,
		Tags:           in.Tags,
		Status:         domain.ResourceStatus(in.Status),
		CreatedAt:      in.CreatedAt,
		UpdatedAt:      in.UpdatedAt,
	}
	if len(in.Metadata) > 0 {
		meta := make(map[string]any)
		if err := json.Unmarshal(in.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("resource %s unmarshal metadata: %w", in.ID, err)
		}
		if len(meta) > 0 {
			res.Metadata = meta
		}
	}
	return res, nil
}

func toDomainSlice(rows []row) ([]*domain.Resource, error) {
	out := make([]*domain.Resource, len(rows))
	for i := range rows {
		res, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}
