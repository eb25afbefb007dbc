package catalog

import (
	"context"
	"fmt"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// GetResource returns one resource by id.
func (s *Service) GetResource(ctx context.Context, input GetResourceInput) (*domain.Resource, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res, err := s.resources.GetByID(ctx, input.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return res, nil
}
