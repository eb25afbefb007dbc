package listsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// CreateTargetInput holds the parameters for registering a sync target.
type CreateTargetInput struct {
	Owner    string
	Repo     string
	Branch   string
	FilePath string
}

// Validate checks all fields and collects all errors.
func (i CreateTargetInput) Validate() error {
	var errs []domain.FieldError
	if strings.TrimSpace(i.Owner) == "" {
		errs = append(errs, domain.FieldError{Field: "owner", Message: "required"})
	}
	if strings.TrimSpace(i.Repo) == "" {
		errs = append(errs, domain.FieldError{Field: "repo", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// CreateTarget registers an awesome-list file as a sync target.
func (s *Service) CreateTarget(ctx context.Context, input CreateTargetInput) (*domain.SyncTarget, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	branch := strings.TrimSpace(input.Branch)
	if branch == "" {
		branch = "main"
	}
	filePath := strings.TrimSpace(input.FilePath)
	if filePath == "" {
		filePath = "README.md"
	}

	now := time.Now().UTC()
	created, err := s.targets.CreateTarget(ctx, &domain.SyncTarget{
		ID:          uuid.New(),
		Owner:       strings.TrimSpace(input.Owner),
		Repo:        strings.TrimSpace(input.Repo),
		Branch:      branch,
		FilePath:    filePath,
		SyncEnabled: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create sync target: %w", err)
	}

	s.log.InfoContext(ctx, "sync target created",
		slog.String("target_id", created.ID.String()),
		slog.String("repo", created.Owner+"/"+created.Repo),
		slog.String("file", created.FilePath),
	)

	return created, nil
}

// EnqueueSync queues an import or export for a target. Tasks for the same
// target run one at a time in queue order. The strategy applies to imports
// only; empty means update.
func (s *Service) EnqueueSync(ctx context.Context, targetID uuid.UUID, action domain.SyncAction, strategy domain.SyncStrategy, autoApprove bool) (*domain.SyncTask, error) {
	if targetID == uuid.Nil {
		return nil, domain.NewValidationError("target_id", "required")
	}
	if !action.IsValid() {
		return nil, domain.NewValidationError("action", "unknown action")
	}
	if strategy == "" {
		strategy = domain.SyncStrategyUpdate
	}
	if !strategy.IsValid() {
		return nil, domain.NewValidationError("strategy", "unknown strategy")
	}

	target, err := s.targets.GetTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("get sync target: %w", err)
	}
	if !target.SyncEnabled {
		return nil, domain.NewValidationError("target_id", "sync disabled for target")
	}

	task, err := s.targets.EnqueueTask(ctx, &domain.SyncTask{
		ID:        uuid.New(),
		TargetID:  targetID,
		Action:    action,
		Status:    domain.SyncTaskStatusPending,
		Payload:   map[string]any{"strategy": strategy.String(), "auto_approve": autoApprove},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue sync task: %w", err)
	}

	s.log.InfoContext(ctx, "sync task enqueued",
		slog.String("task_id", task.ID.String()),
		slog.String("target_id", targetID.String()),
		slog.String("action", action.String()),
	)

	return task, nil
}

// GetStatus derives the user-facing sync status of a target from its most
// recent task.
func (s *Service) GetStatus(ctx context.Context, targetID uuid.UUID) (domain.SyncStatus, error) {
	if targetID == uuid.Nil {
		return "", domain.NewValidationError("target_id", "required")
	}

	latest, err := s.targets.LatestTask(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DeriveSyncStatus(nil), nil
		}
		return "", fmt.Errorf("latest sync task: %w", err)
	}
	return domain.DeriveSyncStatus(latest), nil
}

// History returns the most recent sync records for a target.
func (s *Service) History(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.SyncRecord, error) {
	if targetID == uuid.Nil {
		return nil, domain.NewValidationError("target_id", "required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records, err := s.targets.ListRecords(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}
	return records, nil
}

// ListTargets returns registered sync targets.
func (s *Service) ListTargets(ctx context.Context, enabledOnly bool) ([]*domain.SyncTarget, error) {
	targets, err := s.targets.ListTargets(ctx, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list sync targets: %w", err)
	}
	return targets, nil
}
