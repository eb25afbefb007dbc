package catalog

import (
	"context"
	"fmt"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// ListResources returns resources matching the filter, newest first.
func (s *Service) ListResources(ctx context.Context, input ListResourcesInput) ([]*domain.Resource, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	filter := resource.Filter{Limit: limit, Offset: input.Offset}
	if input.Status != nil {
		filter.Status = *input.Status
	}
	if input.Category != nil {
		filter.Category = *input.Category
	}

	out, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return out, nil
}
