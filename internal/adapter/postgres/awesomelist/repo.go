// Package awesomelist implements persistence for sync targets, their queued
// tasks, and the immutable sync history using PostgreSQL.
//
// The task claim query is the serialization point for the whole sync engine:
// it hands out at most one task per target, oldest first, so imports and
// exports for the same list never race.
package awesomelist

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
	targetsTable = "sync_targets"
	tasksTable   = "sync_tasks"
	recordsTable = "sync_records"
)

var taskColumns = []string{
	"id", "target_id", "action", "status", "payload", "error",
	"created_at", "started_at", "ended_at",
}

// Repo provides sync target/task/record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new awesomelist repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type targetRow struct {
	ID          uuid.UUID `db:"id"`
	Owner       string    `db:"owner"`
	Repo        string    `db:"repo"`
	Branch      string    `db:"branch"`
	FilePath    string    `db:"file_path"`
	SyncEnabled bool      `db:"sync_enabled"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type taskRow struct {
	ID        uuid.UUID  `db:"id"`
	TargetID  uuid.UUID  `db:"target_id"`
	Action    string     `db:"action"`
	Status    string     `db:"status"`
	Payload   []byte     `db:"payload"`
	Error     *string    `db:"error"`
	CreatedAt time.Time  `db:"created_at"`
	StartedAt *time.Time `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
}

type recordRow struct {
	ID         uuid.UUID `db:"id"`
	TargetID   uuid.UUID `db:"target_id"`
	TaskID     uuid.UUID `db:"task_id"`
	Action     string    `db:"action"`
	Created    int       `db:"created"`
	Updated    int       `db:"updated"`
	Skipped    int       `db:"skipped"`
	Conflicted int       `db:"conflicted"`
	Error      *string   `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// CreateTarget inserts a new sync target.
func (r *Repo) CreateTarget(ctx context.Context, t *domain.SyncTarget) (*domain.SyncTarget, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Insert(targetsTable).
		Columns("id", "owner", "repo", "branch", "file_path", "sync_enabled", "created_at", "updated_at").
		Values(t.ID, t.Owner, t.Repo, t.Branch, t.FilePath, t.SyncEnabled, t.CreatedAt, t.UpdatedAt).
		Suffix("RETURNING id, owner, repo, branch, file_path, sync_enabled, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert sync target: %w", err)
	}

	var out targetRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sync_target", t.ID)
	}
	return targetToDomain(&out), nil
}

// GetTarget returns a sync target by id.
func (r *Repo) GetTarget(ctx context.Context, id uuid.UUID) (*domain.SyncTarget, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select("id", "owner", "repo", "branch", "file_path", "sync_enabled", "created_at", "updated_at").
		From(targetsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select sync target: %w", err)
	}

	var out targetRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sync_target", id)
	}
	return targetToDomain(&out), nil
}

// ListTargets returns all targets, optionally only sync-enabled ones.
func (r *Repo) ListTargets(ctx context.Context, enabledOnly bool) ([]*domain.SyncTarget, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Select("id", "owner", "repo", "branch", "file_path", "sync_enabled", "created_at", "updated_at").
		From(targetsTable).OrderBy("created_at ASC")
	if enabledOnly {
		b = b.Where(sq.Eq{"sync_enabled": true})
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sync targets: %w", err)
	}

	var rows []targetRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list sync targets: %w", err)
	}

	out := make([]*domain.SyncTarget, len(rows))
	for i := range rows {
		out[i] = targetToDomain(&rows[i])
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// EnqueueTask inserts a pending sync task.
func (r *Repo) EnqueueTask(ctx context.Context, t *domain.SyncTask) (*domain.SyncTask, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	payload, err := marshalPayload(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("sync_task marshal payload: %w", err)
	}

	sql, args, err := psql.Insert(tasksTable).
		Columns(taskColumns...).
		Values(t.ID, t.TargetID, string(t.Action), string(t.Status), payload, t.Error,
			t.CreatedAt, t.StartedAt, t.EndedAt).
		Suffix("RETURNING " + taskColumnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert sync task: %w", err)
	}

	var out taskRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sync_task", t.ID)
	}
	return taskToDomain(&out)
}

// claimTaskSQL claims the oldest pending task whose target has nothing
// processing. The candidate row lock alone is not enough under READ
// COMMITTED: while one claim is in flight its processing row is not yet
// visible, so a second worker could pass the NOT EXISTS check and take
// another task of the same target. Locking the target row closes that
// window; SKIP LOCKED then makes the second worker skip every task of a
// target whose claim has not committed yet.
const claimTaskSQL = `
UPDATE sync_tasks
SET status = 'processing', started_at = now()
WHERE id = (
	SELECT t.id
	FROM sync_tasks t
	JOIN sync_targets tg ON tg.id = t.target_id
	WHERE t.status = 'pending'
	  AND NOT EXISTS (
		SELECT 1 FROM sync_tasks p
		WHERE p.target_id = t.target_id AND p.status = 'processing'
	  )
	ORDER BY t.created_at ASC
	LIMIT 1
	FOR UPDATE OF t, tg SKIP LOCKED
)
RETURNING id, target_id, action, status, payload, error, created_at, started_at, ended_at`

// ClaimNextTask atomically moves one claimable task to processing and returns
// it. Returns domain.ErrNotFound when nothing is claimable.
func (r *Repo) ClaimNextTask(ctx context.Context) (*domain.SyncTask, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out taskRow
	if err := pgxscan.Get(ctx, q, &out, claimTaskSQL); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("claim sync task: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("claim sync task: %w", err)
	}
	return taskToDomain(&out)
}

// FinishTask marks a processing task completed or failed.
func (r *Repo) FinishTask(ctx context.Context, id uuid.UUID, status domain.SyncTaskStatus, errMsg *string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(tasksTable).
		Set("status", string(status)).
		Set("error", errMsg).
		Set("ended_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": string(domain.SyncTaskStatusProcessing)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish sync task: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "sync_task", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync_task %s not processing: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// LatestTask returns the most recent task for a target, or ErrNotFound.
func (r *Repo) LatestTask(ctx context.Context, targetID uuid.UUID) (*domain.SyncTask, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Select(taskColumns...).From(tasksTable).
		Where(sq.Eq{"target_id": targetID}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select latest sync task: %w", err)
	}

	var out taskRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sync_task", targetID)
	}
	return taskToDomain(&out)
}

// ResetProcessingTasks moves processing tasks back to pending. Called on
// worker startup to recover tasks orphaned by a crash.
func (r *Repo) ResetProcessingTasks(ctx context.Context) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Update(tasksTable).
		Set("status", string(domain.SyncTaskStatusPending)).
		Set("started_at", nil).
		Where(sq.Eq{"status": string(domain.SyncTaskStatusProcessing)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset processing tasks: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("reset processing tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// CreateRecord appends an immutable sync history entry.
func (r *Repo) CreateRecord(ctx context.Context, rec *domain.SyncRecord) (*domain.SyncRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := psql.Insert(recordsTable).
		Columns("id", "target_id", "task_id", "action", "created", "updated", "skipped", "conflicted", "error", "created_at").
		Values(rec.ID, rec.TargetID, rec.TaskID, string(rec.Action),
			rec.Created, rec.Updated, rec.Skipped, rec.Conflicted, rec.Error, rec.CreatedAt).
		Suffix("RETURNING id, target_id, task_id, action, created, updated, skipped, conflicted, error, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert sync record: %w", err)
	}

	var out recordRow
	if err := pgxscan.Get(ctx, q, &out, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sync_record", rec.ID)
	}
	return recordToDomain(&out), nil
}

// ListRecords returns the sync history for a target, newest first.
func (r *Repo) ListRecords(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.SyncRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	b := psql.Select("id", "target_id", "task_id", "action", "created", "updated", "skipped", "conflicted", "error", "created_at").
		From(recordsTable).
		Where(sq.Eq{"target_id": targetID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sync records: %w", err)
	}

	var rows []recordRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}

	out := make([]*domain.SyncRecord, len(rows))
	for i := range rows {
		out[i] = recordToDomain(&rows[i])
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func taskColumnList() string {
	out := taskColumns[0]
	for _, c := range taskColumns[1:] {
		out += ", " + c
	}
	return out
}

func marshalPayload(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func targetToDomain(in *targetRow) *domain.SyncTarget {
	return &domain.SyncTarget{
		ID:          in.ID,
		Owner:       in.Owner,
		Repo:        in.Repo,
		Branch:      in.Branch,
		FilePath:    in.FilePath,
		SyncEnabled: in.SyncEnabled,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

func taskToDomain(in *taskRow) (*domain.SyncTask, error) {
	t := &domain.SyncTask{
		ID:        in.ID,
		TargetID:  in.TargetID,
		Action:    domain.SyncAction(in.Action),
		Status:    domain.SyncTaskStatus(in.Status),
		Error:     in.Error,
		CreatedAt: in.CreatedAt,
		StartedAt: in.StartedAt,
		EndedAt:   in.EndedAt,
	}
	if len(in.Payload) > 0 {
		payload := make(map[string]any)
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return nil, fmt.Errorf("sync_task %s unmarshal payload: %w", in.ID, err)
		}
		if len(payload) > 0 {
			t.Payload = payload
		}
	}
	return t, nil
}

func recordToDomain(in *recordRow) *domain.SyncRecord {
	return &domain.SyncRecord{
		ID:         in.ID,
		TargetID:   in.TargetID,
		TaskID:     in.TaskID,
		Action:     domain.SyncAction(in.Action),
		Created:    in.Created,
		Updated:    in.Updated,
		Skipped:    in.Skipped,
		Conflicted: in.Conflicted,
		Error:      in.Error,
		CreatedAt:  in.CreatedAt,
	}
}
