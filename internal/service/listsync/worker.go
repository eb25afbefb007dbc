package listsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// Worker drains the sync task queue. Multiple workers may run concurrently;
// the claim query guarantees a target never has two tasks processing at once.
type Worker struct {
	svc *Service
	cfg config.SyncConfig
	log *slog.Logger
}

// NewWorker creates a sync queue worker.
func NewWorker(log *slog.Logger, svc *Service, cfg config.SyncConfig) *Worker {
	return &Worker{
		svc: svc,
		cfg: cfg,
		log: log.With("worker", "sync"),
	}
}

// Run processes tasks until the context is cancelled. Tasks left in
// processing state by a crashed worker are requeued on startup.
func (w *Worker) Run(ctx context.Context) error {
	reset, err := w.svc.targets.ResetProcessingTasks(ctx)
	if err != nil {
		return fmt.Errorf("reset processing tasks: %w", err)
	}
	if reset > 0 {
		w.log.InfoContext(ctx, "requeued orphaned sync tasks", slog.Int("count", reset))
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		task, err := w.svc.targets.ClaimNextTask(ctx)
		switch {
		case err == nil:
			w.process(ctx, task)
			continue
		case errors.Is(err, domain.ErrNotFound):
			// Queue empty, wait for the next tick.
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			w.log.ErrorContext(ctx, "claim sync task failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) process(ctx context.Context, task *domain.SyncTask) {
	log := w.log.With(
		slog.String("task_id", task.ID.String()),
		slog.String("target_id", task.TargetID.String()),
		slog.String("action", task.Action.String()),
	)
	log.InfoContext(ctx, "sync task started")

	record, err := w.run(ctx, task)
	if err != nil {
		msg := err.Error()
		if ferr := w.svc.targets.FinishTask(ctx, task.ID, domain.SyncTaskStatusFailed, &msg); ferr != nil {
			log.ErrorContext(ctx, "finish sync task failed", slog.Any("error", ferr))
		}
		record = &domain.SyncRecord{Error: &msg}
		log.ErrorContext(ctx, "sync task failed", slog.Any("error", err))
	} else {
		if ferr := w.svc.targets.FinishTask(ctx, task.ID, domain.SyncTaskStatusCompleted, nil); ferr != nil {
			log.ErrorContext(ctx, "finish sync task failed", slog.Any("error", ferr))
		}
		log.InfoContext(ctx, "sync task completed")
	}

	record.ID = uuid.New()
	record.TargetID = task.TargetID
	record.TaskID = task.ID
	record.Action = task.Action
	record.CreatedAt = time.Now().UTC()
	if _, err := w.svc.targets.CreateRecord(ctx, record); err != nil {
		log.ErrorContext(ctx, "create sync record failed", slog.Any("error", err))
	}
}

// run dispatches one claimed task and maps its outcome to a history record.
func (w *Worker) run(ctx context.Context, task *domain.SyncTask) (*domain.SyncRecord, error) {
	target, err := w.svc.targets.GetTarget(ctx, task.TargetID)
	if err != nil {
		return nil, fmt.Errorf("get sync target: %w", err)
	}

	switch task.Action {
	case domain.SyncActionImport:
		autoApprove, _ := task.Payload["auto_approve"].(bool)
		strategy, _ := task.Payload["strategy"].(string)
		result, err := w.svc.Import(ctx, target, domain.SyncStrategy(strategy), autoApprove)
		if err != nil {
			return nil, err
		}
		return &domain.SyncRecord{
			Created:    result.Created,
			Updated:    result.Updated,
			Skipped:    result.Skipped,
			Conflicted: result.Conflicted,
		}, nil
	case domain.SyncActionExport:
		result, err := w.svc.Export(ctx, target, ExportFilter{})
		if err != nil {
			return nil, err
		}
		record := &domain.SyncRecord{Updated: result.Exported}
		if result.Unchanged {
			record.Updated = 0
			record.Skipped = result.Exported
		}
		return record, nil
	default:
		return nil, fmt.Errorf("unknown sync action %q", task.Action)
	}
}
