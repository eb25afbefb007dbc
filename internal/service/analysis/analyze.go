package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// Analysis is the outcome of one Analyze call, flagged with its origin.
type Analysis struct {
	Hash       string
	Response   string
	Model      string
	TokensUsed int
	FromCache  bool
}

// Analyze returns the analysis for the given content, serving from the cache
// when a live entry exists and calling the external analyzer otherwise. Fresh
// results are stored with the configured TTL. A cache write failure does not
// fail the call; the result was already paid for.
func (s *Service) Analyze(ctx context.Context, content string) (*Analysis, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("content", "required")
	}

	hash := domain.ContentHash(content)

	entry, err := s.cache.Lookup(ctx, hash)
	if err == nil {
		s.log.DebugContext(ctx, "analysis cache hit",
			slog.String("hash", hash),
			slog.Int("hits", entry.Hits),
		)
		return &Analysis{
			Hash:       hash,
			Response:   entry.Response,
			Model:      entry.Model,
			TokensUsed: entry.TokensUsed,
			FromCache:  true,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	result, err := s.analyzer.Analyze(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("analyze content: %w", err)
	}

	now := time.Now().UTC()
	storeErr := s.cache.Store(ctx, &domain.CacheEntry{
		Hash:       hash,
		Response:   result.Analysis,
		Model:      result.Model,
		TokensUsed: result.TokensUsed,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.DefaultTTL),
	})
	if storeErr != nil {
		s.log.WarnContext(ctx, "analysis cache store failed",
			slog.String("hash", hash),
			slog.Any("error", storeErr),
		)
	}

	s.log.InfoContext(ctx, "content analyzed",
		slog.String("hash", hash),
		slog.String("model", result.Model),
		slog.Int("tokens_used", result.TokensUsed),
	)

	return &Analysis{
		Hash:       hash,
		Response:   result.Analysis,
		Model:      result.Model,
		TokensUsed: result.TokensUsed,
	}, nil
}

// PurgeExpired removes expired cache entries.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.cache.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	if removed > 0 {
		s.log.InfoContext(ctx, "expired cache entries purged", slog.Int("removed", removed))
	}
	return removed, nil
}

// CacheStats reports the state of the analysis cache.
func (s *Service) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return domain.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}
