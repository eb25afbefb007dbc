// Package linkreport persists link health reports. Only the latest report is
// kept; replacing it is a delete-then-insert inside one transaction owned by
// the caller.
package linkreport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// Repo provides link report persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new link report repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type row struct {
	ID           uuid.UUID `db:"id"`
	TotalChecked int       `db:"total_checked"`
	Healthy      int       `db:"healthy"`
	Broken       int       `db:"broken"`
	Timeout      int       `db:"timeout"`
	Results      []byte    `db:"results"`
	StartedAt    time.Time `db:"started_at"`
	CompletedAt  time.Time `db:"completed_at"`
}

const replaceSQL = `
INSERT INTO link_reports (id, total_checked, healthy, broken, timeout, results, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Replace stores a report as the new latest one, discarding any previous
// report. Run it inside a transaction so readers never observe an empty table.
func (r *Repo) Replace(ctx context.Context, report *domain.LinkReport) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("link report marshal results: %w", err)
	}

	if _, err := q.Exec(ctx, "DELETE FROM link_reports"); err != nil {
		return fmt.Errorf("link report delete previous: %w", err)
	}
	_, err = q.Exec(ctx, replaceSQL,
		report.ID, report.TotalChecked, report.Healthy, report.Broken, report.Timeout,
		results, report.StartedAt, report.CompletedAt)
	if err != nil {
		return postgres.MapError(err, "link report", report.ID)
	}
	return nil
}

// Latest returns the current report, or domain.ErrNotFound when no check has
// completed yet.
func (r *Repo) Latest(ctx context.Context) (*domain.LinkReport, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out row
	err := pgxscan.Get(ctx, q, &out, `
		SELECT id, total_checked, healthy, broken, timeout, results, started_at, completed_at
		FROM link_reports
		ORDER BY completed_at DESC
		LIMIT 1`)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("latest link report: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("latest link report: %w", err)
	}

	report := &domain.LinkReport{
		ID:           out.ID,
		TotalChecked: out.TotalChecked,
		Healthy:      out.Healthy,
		Broken:       out.Broken,
		Timeout:      out.Timeout,
		StartedAt:    out.StartedAt,
		CompletedAt:  out.CompletedAt,
	}
	if len(out.Results) > 0 {
		if err := json.Unmarshal(out.Results, &report.Results); err != nil {
			return nil, fmt.Errorf("link report %s unmarshal results: %w", out.ID, err)
		}
	}
	return report, nil
}
