package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// RejectProposal marks a pending proposal rejected with reviewer feedback.
// The resource is not touched.
func (s *Service) RejectProposal(ctx context.Context, input RejectProposalInput) (*domain.EditProposal, error) {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	var result *domain.EditProposal

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		proposal, err := s.proposals.GetByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return fmt.Errorf("get proposal: %w", err)
		}

		if !proposal.Status.CanTransitionTo(domain.ProposalStatusRejected) {
			return &domain.InvalidTransitionError{
				Entity: "proposal",
				From:   proposal.Status.String(),
				To:     domain.ProposalStatusRejected.String(),
			}
		}

		result, err = s.reject(ctx, proposal, actorID, strings.TrimSpace(input.Feedback), time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "proposal rejected",
		slog.String("proposal_id", result.ID.String()),
		slog.String("resource_id", result.ResourceID.String()),
		slog.String("actor_id", actorID.String()),
	)

	return result, nil
}
