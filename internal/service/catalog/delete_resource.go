package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// DeleteResource removes a resource outright. This is an administrative
// escape hatch; normal lifecycle changes go through edit proposals.
func (s *Service) DeleteResource(ctx context.Context, input DeleteResourceInput) error {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return err
	}

	existing, err := s.resources.GetByID(ctx, input.ResourceID)
	if err != nil {
		return fmt.Errorf("get resource: %w", err)
	}

	if err := s.resources.Delete(ctx, input.ResourceID); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityType: domain.EntityTypeResource,
		EntityID:   &input.ResourceID,
		Action:     domain.AuditActionDelete,
		Before:     resourceSnapshot(existing),
		CreatedAt:  time.Now().UTC(),
	})

	s.log.InfoContext(ctx, "resource deleted",
		slog.String("resource_id", input.ResourceID.String()),
		slog.String("actor_id", actorID.String()),
	)

	return nil
}
