// Package listsync synchronizes the catalog with external awesome-list
// markdown files: imports merge list entries into the catalog, exports render
// the approved catalog back to the list. Tasks queue per target and run
// strictly one at a time per target.
package listsync

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

const DefaultHistoryLimit = 20

type targetRepo interface {
	CreateTarget(ctx context.Context, t *domain.SyncTarget) (*domain.SyncTarget, error)
	GetTarget(ctx context.Context, id uuid.UUID) (*domain.SyncTarget, error)
	ListTargets(ctx context.Context, enabledOnly bool) ([]*domain.SyncTarget, error)
	EnqueueTask(ctx context.Context, t *domain.SyncTask) (*domain.SyncTask, error)
	ClaimNextTask(ctx context.Context) (*domain.SyncTask, error)
	FinishTask(ctx context.Context, id uuid.UUID, status domain.SyncTaskStatus, errMsg *string) error
	LatestTask(ctx context.Context, targetID uuid.UUID) (*domain.SyncTask, error)
	ResetProcessingTasks(ctx context.Context) (int, error)
	CreateRecord(ctx context.Context, rec *domain.SyncRecord) (*domain.SyncRecord, error)
	ListRecords(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.SyncRecord, error)
}

type resourceRepo interface {
	Create(ctx context.Context, res *domain.Resource) (*domain.Resource, error)
	Update(ctx context.Context, res *domain.Resource) (*domain.Resource, error)
	FindActiveByURL(ctx context.Context, url string) (*domain.Resource, error)
	List(ctx context.Context, filter resource.Filter) ([]*domain.Resource, error)
}

type proposalRepo interface {
	Create(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error)
}

type auditRepo interface {
	Create(ctx context.Context, rec *domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service provides awesome-list synchronization operations.
type Service struct {
	targets   targetRepo
	resources resourceRepo
	proposals proposalRepo
	audit     auditRepo
	host      provider.RepoHost
	tx        txManager
	log       *slog.Logger
}

// NewService creates a new ListSync service.
func NewService(
	log *slog.Logger,
	targets targetRepo,
	resources resourceRepo,
	proposals proposalRepo,
	audit auditRepo,
	host provider.RepoHost,
	tx txManager,
) *Service {
	return &Service{
		targets:   targets,
		resources: resources,
		proposals: proposals,
		audit:     audit,
		host:      host,
		tx:        tx,
		log:       log.With("service", "listsync"),
	}
}

// recordAudit writes an audit entry. Failures are logged, never propagated:
// audit writes must not fail the import they describe.
func (s *Service) recordAudit(ctx context.Context, rec *domain.AuditRecord) {
	if err := s.audit.Create(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "audit record write failed",
			slog.String("entity_type", rec.EntityType.String()),
			slog.String("action", rec.Action.String()),
			slog.Any("error", err),
		)
	}
}
