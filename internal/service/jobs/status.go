package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// JobStatus combines a job with its per-item progress counts.
type JobStatus struct {
	Job      *domain.Job
	Progress domain.JobProgress
}

// GetStatus returns a job and its progress.
func (s *Service) GetStatus(ctx context.Context, jobID uuid.UUID) (*JobStatus, error) {
	if jobID == uuid.Nil {
		return nil, domain.NewValidationError("job_id", "required")
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	progress, err := s.jobs.GetProgress(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job progress: %w", err)
	}

	return &JobStatus{Job: job, Progress: progress}, nil
}

// Cancel flags a queued or running job as cancelled. The worker observes the
// flag between units of work, so the item in flight may still complete.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return domain.NewValidationError("job_id", "required")
	}

	if err := s.jobs.CancelJob(ctx, jobID); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	s.log.InfoContext(ctx, "job cancelled", slog.String("job_id", jobID.String()))
	return nil
}

// CostBreakdown aggregates spend per UTC day over the trailing window.
func (s *Service) CostBreakdown(ctx context.Context, days int) ([]domain.CostBucket, error) {
	if days <= 0 {
		days = 30
	}

	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
	buckets, err := s.jobs.CostBreakdown(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	return buckets, nil
}

// ListFindings returns a research job's findings.
func (s *Service) ListFindings(ctx context.Context, jobID uuid.UUID, includeDismissed bool) ([]*domain.Finding, error) {
	if jobID == uuid.Nil {
		return nil, domain.NewValidationError("job_id", "required")
	}

	findings, err := s.jobs.ListFindings(ctx, jobID, includeDismissed)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return findings, nil
}

// DismissFinding marks a finding as reviewed and irrelevant.
func (s *Service) DismissFinding(ctx context.Context, findingID uuid.UUID) error {
	if findingID == uuid.Nil {
		return domain.NewValidationError("finding_id", "required")
	}

	if err := s.jobs.DismissFinding(ctx, findingID); err != nil {
		return fmt.Errorf("dismiss finding: %w", err)
	}
	return nil
}
