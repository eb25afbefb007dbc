package listsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// SystemActorID identifies catalog changes made by the sync engine itself.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// ImportResult aggregates the per-entry outcomes of one import run.
type ImportResult struct {
	Created    int
	Updated    int
	Skipped    int
	Conflicted int
}

// Import fetches a target's list file, parses it, and merges every entry into
// the catalog in one transaction. What happens to an entry whose URL already
// exists depends on the strategy:
//
//   - skip: the existing resource is left untouched, even when the entry
//     differs
//   - update: field differences are applied directly when autoApprove,
//     otherwise exactly one pending edit proposal is created; an entry whose
//     resource already has a pending proposal counts as conflicted and is
//     left alone
//   - create: the entry becomes a new pending resource flagged as a
//     duplicate of the existing one
//
// An unknown URL always creates a new resource (approved when autoApprove,
// otherwise pending review). An empty strategy means update. A document with
// malformed entries fails the whole import; partial imports of broken files
// are worse than no import.
func (s *Service) Import(ctx context.Context, target *domain.SyncTarget, strategy domain.SyncStrategy, autoApprove bool) (*ImportResult, error) {
	if strategy == "" {
		strategy = domain.SyncStrategyUpdate
	}
	if !strategy.IsValid() {
		return nil, domain.NewValidationError("strategy", "unknown strategy")
	}

	content, err := s.host.FetchFile(ctx, target.Owner, target.Repo, target.Branch, target.FilePath)
	if err != nil {
		return nil, fmt.Errorf("fetch list file: %w", err)
	}

	items, parseErrs := ParseDocument(content)
	if len(parseErrs) > 0 {
		return nil, &domain.ValidationError{Errors: parseErrs}
	}

	result := &ImportResult{}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			// First occurrence wins when a URL repeats within the file.
			if seen[item.URL] {
				result.Skipped++
				continue
			}
			seen[item.URL] = true

			if err := s.importItem(ctx, item, strategy, autoApprove, result); err != nil {
				return fmt.Errorf("import %q: %w", item.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "import finished",
		slog.String("target_id", target.ID.String()),
		slog.String("strategy", strategy.String()),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
		slog.Int("conflicted", result.Conflicted),
	)

	return result, nil
}

func (s *Service) importItem(ctx context.Context, item ListItem, strategy domain.SyncStrategy, autoApprove bool, result *ImportResult) error {
	existing, err := s.resources.FindActiveByURL(ctx, item.URL)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return s.createImported(ctx, item, autoApprove, nil, result)
	}

	switch strategy {
	case domain.SyncStrategySkip:
		result.Skipped++
		return nil
	case domain.SyncStrategyCreate:
		return s.createImported(ctx, item, autoApprove, existing, result)
	}

	// Imports carry no tags or metadata; diff only the fields the list owns.
	desired := *existing
	desired.Title = item.Title
	desired.Description = item.Description
	desired.Category = item.Category
	desired.Subcategory = item.Subcategory
	desired.SubSubcategory = item.SubSubcategory

	diff := domain.DiffResources(existing, &desired)
	if len(diff) == 0 {
		result.Skipped++
		return nil
	}

	if autoApprove {
		before := *existing
		applied, err := diff.Apply(existing)
		if err != nil {
			return err
		}
		applied.UpdatedAt = time.Now().UTC()
		updated, err := s.resources.Update(ctx, applied)
		if err != nil {
			return err
		}
		s.recordAudit(ctx, &domain.AuditRecord{
			ID:         uuid.New(),
			ActorID:    SystemActorID,
			EntityType: domain.EntityTypeResource,
			EntityID:   &updated.ID,
			Action:     domain.AuditActionUpdate,
			Before:     resourceSnapshot(&before),
			After:      resourceSnapshot(updated),
			CreatedAt:  time.Now().UTC(),
		})
		result.Updated++
		return nil
	}

	pending, err := s.hasPendingProposal(ctx, existing.ID)
	if err != nil {
		return err
	}
	if pending {
		result.Conflicted++
		return nil
	}

	proposal, err := s.proposals.Create(ctx, &domain.EditProposal{
		ID:            uuid.New(),
		ResourceID:    existing.ID,
		Kind:          domain.ProposalKindCorrection,
		Changes:       diff,
		Justification: "imported from upstream list",
		Status:        domain.ProposalStatusPending,
		SubmitterID:   SystemActorID,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    SystemActorID,
		EntityType: domain.EntityTypeProposal,
		EntityID:   &proposal.ID,
		Action:     domain.AuditActionCreate,
		After: map[string]any{
			"resource_id": existing.ID.String(),
			"kind":        proposal.Kind.String(),
			"status":      proposal.Status.String(),
		},
		CreatedAt: time.Now().UTC(),
	})
	result.Updated++
	return nil
}

// createImported inserts a list entry as a new resource. A non-nil duplicateOf
// marks the new record as a flagged duplicate of an existing one; duplicates
// always start pending so a reviewer decides which record survives.
func (s *Service) createImported(ctx context.Context, item ListItem, autoApprove bool, duplicateOf *domain.Resource, result *ImportResult) error {
	status := domain.ResourceStatusPending
	if autoApprove && duplicateOf == nil {
		status = domain.ResourceStatusApproved
	}

	var metadata map[string]any
	if duplicateOf != nil {
		metadata = map[string]any{"duplicate_of": duplicateOf.ID.String()}
	}

	now := time.Now().UTC()
	created, err := s.resources.Create(ctx, &domain.Resource{
		ID:             uuid.New(),
		Title:          item.Title,
		URL:            item.URL,
		Description:    item.Description,
		Category:       item.Category,
		Subcategory:    item.Subcategory,
		SubSubcategory: item.SubSubcategory,
		Status:         status,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    SystemActorID,
		EntityType: domain.EntityTypeResource,
		EntityID:   &created.ID,
		Action:     domain.AuditActionCreate,
		After:      resourceSnapshot(created),
		CreatedAt:  now,
	})
	result.Created++
	return nil
}

func (s *Service) hasPendingProposal(ctx context.Context, resourceID uuid.UUID) (bool, error) {
	proposals, err := s.proposals.ListByResource(ctx, resourceID)
	if err != nil {
		return false, err
	}
	for _, p := range proposals {
		if p.Status == domain.ProposalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

// resourceSnapshot flattens a resource into an audit snapshot.
func resourceSnapshot(r *domain.Resource) map[string]any {
	snap := map[string]any{
		"title":       r.Title,
		"url":         r.URL,
		"description": r.Description,
		"status":      r.Status.String(),
	}
	if r.Category != nil {
		snap["category"] = *r.Category
	}
	if r.Subcategory != nil {
		snap["subcategory"] = *r.Subcategory
	}
	if r.SubSubcategory != nil {
		snap["sub_subcategory"] = *r.SubSubcategory
	}
	if v, ok := r.Metadata["duplicate_of"]; ok {
		snap["duplicate_of"] = fmt.Sprint(v)
	}
	if len(r.Tags) > 0 {
		snap["tags"] = strings.Join(r.Tags, ",")
	}
	return snap
}
