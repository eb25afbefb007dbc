// Package analysis implements cached content analysis: a content-addressed
// cache sits in front of the external analyzer so identical inputs are only
// ever paid for once per TTL window.
package analysis

import (
	"context"
	"log/slog"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

type cacheRepo interface {
	Lookup(ctx context.Context, hash string) (*domain.CacheEntry, error)
	Store(ctx context.Context, entry *domain.CacheEntry) error
	Purge(ctx context.Context) (int, error)
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// Service provides cached analysis operations.
type Service struct {
	cache    cacheRepo
	analyzer provider.Analyzer
	cfg      config.CacheConfig
	log      *slog.Logger
}

// NewService creates a new Analysis service.
func NewService(
	log *slog.Logger,
	cache cacheRepo,
	analyzer provider.Analyzer,
	cfg config.CacheConfig,
) *Service {
	return &Service{
		cache:    cache,
		analyzer: analyzer,
		cfg:      cfg,
		log:      log.With("service", "analysis"),
	}
}
