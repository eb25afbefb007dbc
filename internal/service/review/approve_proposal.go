package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// ApproveProposal applies a pending proposal's diff to its resource and marks
// the proposal approved, all in one transaction. The diff is optimistic: when
// any recorded old value no longer matches the live resource, no change is
// applied, the proposal is auto-rejected with feedback naming the conflicting
// field, and the conflict is returned to the caller.
func (s *Service) ApproveProposal(ctx context.Context, input ApproveProposalInput) (*domain.EditProposal, error) {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	var (
		result      *domain.EditProposal
		conflictErr error
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		proposal, err := s.proposals.GetByIDForUpdate(ctx, input.ProposalID)
		if err != nil {
			return fmt.Errorf("get proposal: %w", err)
		}

		if !proposal.Status.CanTransitionTo(domain.ProposalStatusApproved) {
			return &domain.InvalidTransitionError{
				Entity: "proposal",
				From:   proposal.Status.String(),
				To:     domain.ProposalStatusApproved.String(),
			}
		}

		res, err := s.resources.GetByID(ctx, proposal.ResourceID)
		if err != nil {
			return fmt.Errorf("get resource: %w", err)
		}

		now := time.Now().UTC()

		applied, err := proposal.Changes.Apply(res)
		if err != nil {
			var cerr *domain.ConflictError
			if !errors.As(err, &cerr) {
				return fmt.Errorf("apply diff: %w", err)
			}
			// Stale diff. Reject inside the same transaction so the
			// decision survives, and surface the conflict to the caller.
			feedback := fmt.Sprintf(
				"auto-rejected: field %q changed since the proposal was made (expected %q, found %q)",
				cerr.Field, cerr.Expected, cerr.Actual)
			result, err = s.reject(ctx, proposal, actorID, feedback, now)
			if err != nil {
				return err
			}
			conflictErr = cerr
			return nil
		}

		applied.UpdatedAt = now
		if _, err := s.resources.Update(ctx, applied); err != nil {
			return fmt.Errorf("update resource: %w", err)
		}

		proposal.Status = domain.ProposalStatusApproved
		proposal.ReviewerID = &actorID
		proposal.ReviewedAt = &now
		proposal.AppliedAt = &now

		result, err = s.proposals.UpdateReview(ctx, proposal)
		if err != nil {
			return fmt.Errorf("update proposal review: %w", err)
		}

		s.recordAudit(ctx, &domain.AuditRecord{
			ID:         uuid.New(),
			ActorID:    actorID,
			EntityType: domain.EntityTypeProposal,
			EntityID:   &proposal.ID,
			Action:     domain.AuditActionApprove,
			Before:     map[string]any{"status": domain.ProposalStatusPending.String()},
			After: map[string]any{
				"status":      domain.ProposalStatusApproved.String(),
				"resource_id": proposal.ResourceID.String(),
				"changes":     proposal.Changes.Summary(),
			},
			CreatedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if conflictErr != nil {
		s.log.WarnContext(ctx, "proposal auto-rejected on conflict",
			slog.String("proposal_id", input.ProposalID.String()),
			slog.Any("error", conflictErr),
		)
		return result, conflictErr
	}

	s.log.InfoContext(ctx, "proposal approved",
		slog.String("proposal_id", result.ID.String()),
		slog.String("resource_id", result.ResourceID.String()),
		slog.String("actor_id", actorID.String()),
	)

	return result, nil
}

// reject flips a pending proposal to rejected. Callers hold the row lock.
func (s *Service) reject(ctx context.Context, proposal *domain.EditProposal, actorID uuid.UUID, feedback string, now time.Time) (*domain.EditProposal, error) {
	proposal.Status = domain.ProposalStatusRejected
	proposal.ReviewerID = &actorID
	proposal.ReviewedAt = &now
	proposal.Feedback = &feedback

	updated, err := s.proposals.UpdateReview(ctx, proposal)
	if err != nil {
		return nil, fmt.Errorf("update proposal review: %w", err)
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityType: domain.EntityTypeProposal,
		EntityID:   &proposal.ID,
		Action:     domain.AuditActionReject,
		Before:     map[string]any{"status": domain.ProposalStatusPending.String()},
		After: map[string]any{
			"status":   domain.ProposalStatusRejected.String(),
			"feedback": feedback,
		},
		CreatedAt: now,
	})
	return updated, nil
}
