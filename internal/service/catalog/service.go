// Package catalog implements resource intake and lookup operations.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type resourceRepo interface {
	Create(ctx context.Context, res *domain.Resource) (*domain.Resource, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	FindActiveByURL(ctx context.Context, url string) (*domain.Resource, error)
	List(ctx context.Context, filter resource.Filter) ([]*domain.Resource, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type auditRepo interface {
	Create(ctx context.Context, rec *domain.AuditRecord) error
}

// Service provides catalog management operations.
type Service struct {
	resources resourceRepo
	audit     auditRepo
	log       *slog.Logger
}

// NewService creates a new Catalog service.
func NewService(
	log *slog.Logger,
	resources resourceRepo,
	audit auditRepo,
) *Service {
	return &Service{
		resources: resources,
		audit:     audit,
		log:       log.With("service", "catalog"),
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

// trimOrNil trims whitespace. Returns nil if result is empty.
func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
