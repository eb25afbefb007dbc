// Package review implements the edit proposal workflow: submission, approval
// with diff application, and rejection.
package review

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type proposalRepo interface {
	Create(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error)
	UpdateReview(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
	List(ctx context.Context, status domain.ProposalStatus, limit, offset int) ([]*domain.EditProposal, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error)
}

type resourceRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	Update(ctx context.Context, res *domain.Resource) (*domain.Resource, error)
}

type auditRepo interface {
	Create(ctx context.Context, rec *domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service provides edit proposal review operations.
type Service struct {
	proposals proposalRepo
	resources resourceRepo
	audit     auditRepo
	tx        txManager
	log       *slog.Logger
}

// NewService creates a new Review service.
func NewService(
	log *slog.Logger,
	proposals proposalRepo,
	resources resourceRepo,
	audit auditRepo,
	tx txManager,
) *Service {
	return &Service{
		proposals: proposals,
		resources: resources,
		audit:     audit,
		tx:        tx,
		log:       log.With("service", "review"),
	}
}

// recordAudit writes an audit entry. Failures are logged, never propagated.
func (s *Service) recordAudit(ctx context.Context, rec *domain.AuditRecord) {
	if err := s.audit.Create(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "audit record write failed",
			slog.String("entity_type", rec.EntityType.String()),
			slog.String("action", rec.Action.String()),
			slog.Any("error", err),
		)
	}
}
