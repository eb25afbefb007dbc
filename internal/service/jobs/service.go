// Package jobs implements background enrichment and research jobs: queueing,
// cooperative cancellation, cost accounting, and the worker loop that drains
// the queue one unit of work at a time.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/service/analysis"
)

type jobRepo interface {
	CreateJob(ctx context.Context, j *domain.Job) (*domain.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ClaimNextJob(ctx context.Context) (*domain.Job, error)
	FinishJob(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg *string) error
	CancelJob(ctx context.Context, id uuid.UUID) error
	GetJobStatus(ctx context.Context, id uuid.UUID) (domain.JobStatus, error)
	AddJobCost(ctx context.Context, id uuid.UUID, tokens int, cost float64) error
	ResetStuck(ctx context.Context) (int, error)

	CreateItem(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error)
	ClaimNextItem(ctx context.Context, jobID uuid.UUID) (*domain.QueueItem, error)
	FinishItem(ctx context.Context, id uuid.UUID, status domain.QueueItemStatus, tokens int, cost float64, errMsg *string) error
	GetProgress(ctx context.Context, jobID uuid.UUID) (domain.JobProgress, error)
	CostBreakdown(ctx context.Context, since time.Time) ([]domain.CostBucket, error)

	CreateFinding(ctx context.Context, f *domain.Finding) (*domain.Finding, error)
	ListFindings(ctx context.Context, jobID uuid.UUID, includeDismissed bool) ([]*domain.Finding, error)
	DismissFinding(ctx context.Context, id uuid.UUID) error
}

type resourceRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	List(ctx context.Context, filter resource.Filter) ([]*domain.Resource, error)
}

type proposalRepo interface {
	Create(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
}

type auditRepo interface {
	Create(ctx context.Context, rec *domain.AuditRecord) error
}

type analyzer interface {
	Analyze(ctx context.Context, content string) (*analysis.Analysis, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service provides background job operations.
type Service struct {
	jobs      jobRepo
	resources resourceRepo
	proposals proposalRepo
	audit     auditRepo
	analyzer  analyzer
	tx        txManager
	log       *slog.Logger
}

// NewService creates a new Jobs service.
func NewService(
	log *slog.Logger,
	jobs jobRepo,
	resources resourceRepo,
	proposals proposalRepo,
	audit auditRepo,
	analyzer analyzer,
	tx txManager,
) *Service {
	return &Service{
		jobs:      jobs,
		resources: resources,
		proposals: proposals,
		audit:     audit,
		analyzer:  analyzer,
		tx:        tx,
		log:       log.With("service", "jobs"),
	}
}

// recordAudit writes an audit entry. Failures are logged, never propagated:
// audit writes must not fail the operation they describe.
func (s *Service) recordAudit(ctx context.Context, rec *domain.AuditRecord) {
	if err := s.audit.Create(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "audit record write failed",
			slog.String("entity_type", rec.EntityType.String()),
			slog.String("action", rec.Action.String()),
			slog.Any("error", err),
		)
	}
}
