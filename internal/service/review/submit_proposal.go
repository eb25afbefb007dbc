package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// SubmitProposal creates a pending edit proposal against an existing resource.
// The diff's old values are captured at submission time; staleness is detected
// at approval, not here.
func (s *Service) SubmitProposal(ctx context.Context, input SubmitProposalInput) (*domain.EditProposal, error) {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	// The resource must exist; a proposal against a missing resource is noise.
	if _, err := s.resources.GetByID(ctx, input.ResourceID); err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.proposals.Create(ctx, &domain.EditProposal{
		ID:            uuid.New(),
		ResourceID:    input.ResourceID,
		Kind:          input.Kind,
		Changes:       input.Changes,
		Justification: strings.TrimSpace(input.Justification),
		Status:        domain.ProposalStatusPending,
		SubmitterID:   actorID,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityType: domain.EntityTypeProposal,
		EntityID:   &created.ID,
		Action:     domain.AuditActionCreate,
		After: map[string]any{
			"resource_id": created.ResourceID.String(),
			"kind":        created.Kind.String(),
			"changes":     created.Changes.Summary(),
		},
		CreatedAt: now,
	})

	s.log.InfoContext(ctx, "proposal submitted",
		slog.String("proposal_id", created.ID.String()),
		slog.String("resource_id", created.ResourceID.String()),
		slog.String("kind", created.Kind.String()),
		slog.String("actor_id", actorID.String()),
	)

	return created, nil
}
