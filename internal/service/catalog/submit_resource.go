package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// SubmitResource registers a new resource in pending state. The normalized URL
// must not collide with any existing non-rejected resource; a rejected entry
// with the same URL does not block resubmission.
func (s *Service) SubmitResource(ctx context.Context, input SubmitResourceInput) (*domain.Resource, error) {
	actorID, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	normalized := domain.NormalizeURL(input.URL)

	existing, err := s.resources.FindActiveByURL(ctx, normalized)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check url uniqueness: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("resource with url %q: %w", normalized, domain.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	created, err := s.resources.Create(ctx, &domain.Resource{
		ID:             uuid.New(),
		Title:          strings.TrimSpace(input.Title),
		URL:            normalized,
		Description:    strings.TrimSpace(input.Description),
		Category:       trimOrNil(input.Category),
		Subcategory:    trimOrNil(input.Subcategory),
		SubSubcategory: trimOrNil(input.SubSubcategory),
		Tags:           normalizeTags(input.Tags),
		Status:         domain.ResourceStatusPending,
		Metadata:       input.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	s.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    actorID,
		EntityType: domain.EntityTypeResource,
		EntityID:   &created.ID,
		Action:     domain.AuditActionCreate,
		After:      resourceSnapshot(created),
		CreatedAt:  now,
	})

	s.log.InfoContext(ctx, "resource submitted",
		slog.String("resource_id", created.ID.String()),
		slog.String("url", created.URL),
		slog.String("actor_id", actorID.String()),
	)

	return created, nil
}

// normalizeTags trims tags and drops duplicates, preserving first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
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
	if len(r.Tags) > 0 {
		snap["tags"] = strings.Join(r.Tags, ",")
	}
	return snap
}
