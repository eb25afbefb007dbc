package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// MaxBatchSize caps how many resources one job may process.
const MaxBatchSize = 500

// EnqueueJobInput holds the parameters for queueing a background job.
type EnqueueJobInput struct {
	Type     domain.JobType
	Category *string
	Status   *domain.ResourceStatus
	Limit    int
	Config   map[string]any
}

// Validate checks all fields and collects all errors.
func (i EnqueueJobInput) Validate() error {
	var errs []domain.FieldError
	if !i.Type.IsValid() {
		errs = append(errs, domain.FieldError{Field: "type", Message: "unknown job type"})
	}
	if i.Status != nil && !i.Status.IsValid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "unknown status"})
	}
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be non-negative"})
	}
	if i.Limit > MaxBatchSize {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "max 500"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// EnqueueJob creates a queued job plus one queue item per matching resource.
// A job with no matching resources is rejected: there is nothing to run.
func (s *Service) EnqueueJob(ctx context.Context, input EnqueueJobInput) (*domain.Job, error) {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = MaxBatchSize
	}

	filter := resource.Filter{Limit: limit}
	if input.Category != nil {
		filter.Category = *input.Category
	}
	if input.Status != nil {
		filter.Status = *input.Status
	} else {
		filter.Status = domain.ResourceStatusApproved
	}

	targets, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list target resources: %w", err)
	}
	if len(targets) == 0 {
		return nil, domain.NewValidationError("filter", "no resources match")
	}

	// The job and its items land together or not at all; a partial item set
	// would run as a truncated job.
	now := time.Now().UTC()
	var job *domain.Job
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		created, err := s.jobs.CreateJob(ctx, &domain.Job{
			ID:          uuid.New(),
			Type:        input.Type,
			Config:      input.Config,
			Status:      domain.JobStatusQueued,
			RequestedBy: actorID,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		job = created

		for _, res := range targets {
			_, err := s.jobs.CreateItem(ctx, &domain.QueueItem{
				ID:         uuid.New(),
				JobID:      job.ID,
				ResourceID: res.ID,
				Status:     domain.QueueItemStatusPending,
				CreatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("create queue item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("type", job.Type.String()),
		slog.Int("items", len(targets)),
		slog.String("actor_id", actorID.String()),
	)

	return job, nil
}
