package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// GetProposal returns one proposal by id.
func (s *Service) GetProposal(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("proposal_id", "required")
	}

	proposal, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return proposal, nil
}

// ListProposals returns proposals filtered by status, newest first.
func (s *Service) ListProposals(ctx context.Context, input ListProposalsInput) ([]*domain.EditProposal, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	out, err := s.proposals.List(ctx, input.Status, limit, input.Offset)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return out, nil
}

// ListResourceProposals returns the full proposal history for one resource.
func (s *Service) ListResourceProposals(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error) {
	if resourceID == uuid.Nil {
		return nil, domain.NewValidationError("resource_id", "required")
	}

	out, err := s.proposals.ListByResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list resource proposals: %w", err)
	}
	return out, nil
}
