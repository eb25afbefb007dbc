// Package job implements persistence for background jobs, their per-resource
// queue items, and research findings using PostgreSQL.
package job

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

const (
	jobsTable     = "jobs"
	itemsTable    = "queue_items"
	findingsTable = "findings"
)

var jobColumns = []string{
	"id", "type", "config", "status", "tokens_used", "cost_usd", "error",
	"requested_by", "created_at", "started_at", "ended_at",
}

// Repo provides job persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new job repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type jobRow struct {
	ID          uuid.UUID  `db:"id"`
	Type        string     `db:"type"`
	Config      []byte     `db:"config"`
	Status      string     `db:"status"`
	TokensUsed  int        `db:"tokens_used"`
	CostUSD     float64    `db:"cost_usd"`
	Error       *string    `db:"error"`
	RequestedBy uuid.UUID  `db:"requested_by"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	EndedAt     *time.Time `db:"ended_at"`
}

type itemRow struct {
	ID          uuid.UUID  `db:"id"`
	JobID       uuid.UUID  `db:"job_id"`
	ResourceID  uuid.UUID  `db:"resource_id"`
	Status      string     `db:"status"`
	TokensUsed  int        `db:"tokens_used"`
	CostUSD     float64    `db:"cost_usd"`
	Error       *string    `db:"error"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

type findingRow struct {
	ID        uuid.UUID `db:"id"`
	JobID     uuid.UUID `db:"job_id"`
	Kind      string    `db:"kind"`
	Payload   []byte    `db:"payload"`
	Dismissed bool      `db:"dismissed"`
	CreatedAt time.Time `db:"created_at"`
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// CreateJob inserts a job in its initial state.
func (r *Repo) CreateJob(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	config, err := marshalJSON(j.Config)
	if err != nil {
		return nil, fmt.Errorf("job marshal config: %w", err)
	}

	sql, args, err := psql.Insert(jobsTable).
		Columns(jobColumns...).
		Values(j.ID, string(j.Type), config, string(j.Status), j.TokensUsed, j.CostUSD,
			j.Error, j.RequestedBy, j.CreatedAt, j.StartedAt, j.EndedAt).
		Suffix("RETURNING " + jobColumnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert job: %w", err)
	}

	var out jobRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "job", j.ID)
	}
	return jobToDomain(&out)
}

// GetJob returns a job by id.
func (r *Repo) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(jobColumns...).From(jobsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select job: %w", err)
	}

	var out jobRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "job", id)
	}
	return jobToDomain(&out)
}

// claimJobSQL claims the oldest queued job. SKIP LOCKED keeps concurrent
// workers from blocking on the same candidate.
const claimJobSQL = `
UPDATE jobs
SET status = 'running', started_at = now()
WHERE id = (
	SELECT id FROM jobs
	WHERE status = 'queued'
	ORDER BY created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, type, config, status, tokens_used, cost_usd, error, requested_by, created_at, started_at, ended_at`

// ClaimNextJob atomically moves one queued job to running and returns it.
// Returns domain.ErrNotFound when the queue is empty.
func (r *Repo) ClaimNextJob(ctx context.Context) (*domain.Job, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out jobRow
	if err := pgxscan.Get(ctx, q, &out, claimJobSQL); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("claim job: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return jobToDomain(&out)
}

// FinishJob moves a running job to a terminal completed/failed state.
// A job already cancelled keeps its cancelled status.
func (r *Repo) FinishJob(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(jobsTable).
		Set("status", string(status)).
		Set("error", errMsg).
		Set("ended_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": string(domain.JobStatusRunning)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish job: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "job", id)
	}
	return nil
}

// CancelJob flags a queued or running job as cancelled. The worker observes
// the flag between units of work; in-flight calls are allowed to finish.
func (r *Repo) CancelJob(ctx context.Context, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(jobsTable).
		Set("status", string(domain.JobStatusCancelled)).
		Set("ended_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []string{string(domain.JobStatusQueued), string(domain.JobStatusRunning)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cancel job: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "job", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// GetJobStatus returns only the current status. The worker polls this
// between units of work for cooperative cancellation.
func (r *Repo) GetJobStatus(ctx context.Context, id uuid.UUID) (domain.JobStatus, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var status string
	err := q.QueryRow(ctx, "SELECT status FROM jobs WHERE id = $1", id).Scan(&status)
	if err != nil {
		return "", postgres.MapError(err, "job", id)
	}
	return domain.JobStatus(status), nil
}

// AddJobCost accumulates token and dollar spend onto a job.
func (r *Repo) AddJobCost(ctx context.Context, id uuid.UUID, tokens int, cost float64) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		"UPDATE jobs SET tokens_used = tokens_used + $1, cost_usd = cost_usd + $2 WHERE id = $3",
		tokens, cost, id)
	if err != nil {
		return postgres.MapError(err, "job", id)
	}
	return nil
}

// ResetStuck recovers state orphaned by a crashed worker: running jobs go
// back to queued, processing items back to pending.
func (r *Repo) ResetStuck(ctx context.Context) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	itemsTag, err := q.Exec(ctx,
		"UPDATE queue_items SET status = 'pending' WHERE status = 'processing'")
	if err != nil {
		return 0, fmt.Errorf("reset processing items: %w", err)
	}

	jobsTag, err := q.Exec(ctx,
		"UPDATE jobs SET status = 'queued', started_at = NULL WHERE status = 'running'")
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}

	return int(itemsTag.RowsAffected() + jobsTag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Queue items
// ---------------------------------------------------------------------------

// CreateItem inserts a queue item for one resource.
func (r *Repo) CreateItem(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Insert(itemsTable).
		Columns("id", "job_id", "resource_id", "status", "tokens_used", "cost_usd", "error", "created_at", "processed_at").
		Values(item.ID, item.JobID, item.ResourceID, string(item.Status),
			item.TokensUsed, item.CostUSD, item.Error, item.CreatedAt, item.ProcessedAt).
		Suffix("RETURNING id, job_id, resource_id, status, tokens_used, cost_usd, error, created_at, processed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert queue item: %w", err)
	}

	var out itemRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "queue_item", item.ID)
	}
	return itemToDomain(&out), nil
}

// claimItemSQL claims the oldest pending item of a job.
const claimItemSQL = `
UPDATE queue_items
SET status = 'processing'
WHERE id = (
	SELECT id FROM queue_items
	WHERE job_id = $1 AND status = 'pending'
	ORDER BY created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, job_id, resource_id, status, tokens_used, cost_usd, error, created_at, processed_at`

// ClaimNextItem atomically moves one pending item of the job to processing.
// Returns domain.ErrNotFound when the job has no pending items left.
func (r *Repo) ClaimNextItem(ctx context.Context, jobID uuid.UUID) (*domain.QueueItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out itemRow
	if err := pgxscan.Get(ctx, q, &out, claimItemSQL, jobID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("claim queue item: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("claim queue item: %w", err)
	}
	return itemToDomain(&out), nil
}

// FinishItem records the outcome of one unit of work.
func (r *Repo) FinishItem(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, tokens int, cost float64, errMsg *string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(itemsTable).
		Set("status", string(status)).
		Set("tokens_used", tokens).
		Set("cost_usd", cost).
		Set("error", errMsg).
		Set("processed_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish queue item: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "queue_item", id)
	}
	return nil
}

// GetProgress returns per-status item counts for a job.
func (r *Repo) GetProgress(ctx context.Context, jobID uuid.UUID) (domain.JobProgress, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx,
		"SELECT status, COUNT(*) FROM queue_items WHERE job_id = $1 GROUP BY status", jobID)
	if err != nil {
		return domain.JobProgress{}, fmt.Errorf("get job progress: %w", err)
	}
	defer rows.Close()

	var progress domain.JobProgress
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.JobProgress{}, fmt.Errorf("scan job progress: %w", err)
		}
		progress.Total += count
		switch domain.QueueItemStatus(status) {
		case domain.QueueItemStatusPending:
			progress.Pending = count
		case domain.QueueItemStatusProcessing:
			progress.Processing = count
		case domain.QueueItemStatusDone:
			progress.Done = count
		case domain.QueueItemStatusFailed:
			progress.Failed = count
		}
	}
	return progress, rows.Err()
}

// CostBreakdown aggregates item spend per UTC day since the given time.
func (r *Repo) CostBreakdown(ctx context.Context, since time.Time) ([]domain.CostBucket, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT date_trunc('day', processed_at AT TIME ZONE 'UTC') AS day,
		       COALESCE(SUM(tokens_used), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COUNT(*)
		FROM queue_items
		WHERE processed_at >= $1
		GROUP BY day
		ORDER BY day ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	defer rows.Close()

	var buckets []domain.CostBucket
	for rows.Next() {
		var b domain.CostBucket
		if err := rows.Scan(&b.Day, &b.TokensUsed, &b.CostUSD, &b.Items); err != nil {
			return nil, fmt.Errorf("scan cost bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// ---------------------------------------------------------------------------
// Findings
// ---------------------------------------------------------------------------

// CreateFinding inserts a research finding.
func (r *Repo) CreateFinding(ctx context.Context, f *domain.Finding) (*domain.Finding, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	payload, err := marshalJSON(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("finding marshal payload: %w", err)
	}

	sql, args, err := psql.Insert(findingsTable).
		Columns("id", "job_id", "kind", "payload", "dismissed", "created_at").
		Values(f.ID, f.JobID, string(f.Kind), payload, f.Dismissed, f.CreatedAt).
		Suffix("RETURNING id, job_id, kind, payload, dismissed, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert finding: %w", err)
	}

	var out findingRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "finding", f.ID)
	}
	return findingToDomain(&out)
}

// ListFindings returns a job's findings, optionally excluding dismissed ones.
func (r *Repo) ListFindings(ctx context.Context, jobID uuid.UUID, includeDismissed bool) ([]*domain.Finding, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Select("id", "job_id", "kind", "payload", "dismissed", "created_at").
		From(findingsTable).
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("created_at ASC")
	if !includeDismissed {
		b = b.Where(sq.Eq{"dismissed": false})
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list findings: %w", err)
	}

	var rows []findingRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}

	out := make([]*domain.Finding, len(rows))
	for i := range rows {
		f, err := findingToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// DismissFinding flags a finding as dismissed.
func (r *Repo) DismissFinding(ctx context.Context, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, "UPDATE findings SET dismissed = TRUE WHERE id = $1", id)
	if err != nil {
		return postgres.MapError(err, "finding", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finding %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func jobColumnList() string {
	out := jobColumns[0]
	for _, c := range jobColumns[1:] {
		out += ", " + c
	}
	return out
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func jobToDomain(in *jobRow) (*domain.Job, error) {
	j := &domain.Job{
		ID:          in.ID,
		Type:        domain.JobType(in.Type),
		Status:      domain.JobStatus(in.Status),
		TokensUsed:  in.TokensUsed,
		CostUSD:     in.CostUSD,
		Error:       in.Error,
		RequestedBy: in.RequestedBy,
		CreatedAt:   in.CreatedAt,
		StartedAt:   in.StartedAt,
		EndedAt:     in.EndedAt,
	}
	if len(in.Config) > 0 {
		config := make(map[string]any)
		if err := json.Unmarshal(in.Config, &config); err != nil {
			return nil, fmt.Errorf("job %s unmarshal config: %w", in.ID, err)
		}
		if len(config) > 0 {
			j.Config = config
		}
	}
	return j, nil
}

func itemToDomain(in *itemRow) *domain.QueueItem {
	return &domain.QueueItem{
		ID:          in.ID,
		JobID:       in.JobID,
		ResourceID:  in.ResourceID,
		Status:      domain.QueueItemStatus(in.Status),
		TokensUsed:  in.TokensUsed,
		CostUSD:     in.CostUSD,
		Error:       in.Error,
		CreatedAt:   in.CreatedAt,
		ProcessedAt: in.ProcessedAt,
	}
}

func findingToDomain(in *findingRow) (*domain.Finding, error) {
	f := &domain.Finding{
		ID:        in.ID,
		JobID:     in.JobID,
		Kind:      domain.FindingKind(in.Kind),
		Dismissed: in.Dismissed,
		CreatedAt: in.CreatedAt,
	}
	if len(in.Payload) > 0 {
		payload := make(map[string]any)
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return nil, fmt.Errorf("finding %s unmarshal payload: %w", in.ID, err)
		}
		if len(payload) > 0 {
			f.Payload = payload
		}
	}
	return f, nil
}
