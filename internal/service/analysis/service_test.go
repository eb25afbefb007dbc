package analysis

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

type cacheRepoMock struct {
	LookupFunc func(ctx context.Context, hash string) (*domain.CacheEntry, error)
	StoreFunc  func(ctx context.Context, entry *domain.CacheEntry) error
	PurgeFunc  func(ctx context.Context) (int, error)
	StatsFunc  func(ctx context.Context) (domain.CacheStats, error)

	storeCalls int
}

func (m *cacheRepoMock) Lookup(ctx context.Context, hash string) (*domain.CacheEntry, error) {
	return m.LookupFunc(ctx, hash)
}

func (m *cacheRepoMock) Store(ctx context.Context, entry *domain.CacheEntry) error {
	m.storeCalls++
	return m.StoreFunc(ctx, entry)
}

func (m *cacheRepoMock) Purge(ctx context.Context) (int, error) {
	return m.PurgeFunc(ctx)
}

func (m *cacheRepoMock) Stats(ctx context.Context) (domain.CacheStats, error) {
	return m.StatsFunc(ctx)
}

type analyzerMock struct {
	AnalyzeFunc  func(ctx context.Context, content string) (*provider.AnalysisResult, error)
	analyzeCalls int
}

func (m *analyzerMock) Analyze(ctx context.Context, content string) (*provider.AnalysisResult, error) {
	m.analyzeCalls++
	return m.AnalyzeFunc(ctx, content)
}

func newTestService(cache *cacheRepoMock, analyzer *analyzerMock) *Service {
	return &Service{
		cache:    cache,
		analyzer: analyzer,
		cfg:      config.CacheConfig{DefaultTTL: 720 * time.Hour},
		log:      slog.Default(),
	}
}

func TestAnalyze_CacheHit(t *testing.T) {
	t.Parallel()

	cache := &cacheRepoMock{
		LookupFunc: func(ctx context.Context, hash string) (*domain.CacheEntry, error) {
			return &domain.CacheEntry{
				Hash:       hash,
				Response:   "cached analysis",
				Model:      "analyzer-v1",
				TokensUsed: 200,
				Hits:       3,
			}, nil
		},
	}
	analyzer := &analyzerMock{
		AnalyzeFunc: func(ctx context.Context, content string) (*provider.AnalysisResult, error) {
			t.Error("analyzer must not be called on a cache hit")
			return nil, nil
		},
	}

	svc := newTestService(cache, analyzer)

	result, err := svc.Analyze(context.Background(), "https://example.com/tool")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.FromCache {
		t.Error("result should be flagged as cached")
	}
	if result.Response != "cached analysis" {
		t.Errorf("response = %q", result.Response)
	}
	if analyzer.analyzeCalls != 0 {
		t.Errorf("analyzer calls = %d, want 0", analyzer.analyzeCalls)
	}
}

func TestAnalyze_CacheMissStoresResult(t *testing.T) {
	t.Parallel()

	var stored *domain.CacheEntry
	cache := &cacheRepoMock{
		LookupFunc: func(ctx context.Context, hash string) (*domain.CacheEntry, error) {
			return nil, domain.ErrNotFound
		},
		StoreFunc: func(ctx context.Context, entry *domain.CacheEntry) error {
			stored = entry
			return nil
		},
	}
	analyzer := &analyzerMock{
		AnalyzeFunc: func(ctx context.Context, content string) (*provider.AnalysisResult, error) {
			return &provider.AnalysisResult{
				Analysis:   "fresh analysis",
				Model:      "analyzer-v1",
				TokensUsed: 512,
			}, nil
		},
	}

	svc := newTestService(cache, analyzer)

	result, err := svc.Analyze(context.Background(), "Some Content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FromCache {
		t.Error("fresh result should not be flagged as cached")
	}
	if result.Hash != domain.ContentHash("Some Content") {
		t.Errorf("hash = %q, want content hash", result.Hash)
	}
	if stored == nil {
		t.Fatal("result was not stored")
	}
	if stored.Response != "fresh analysis" || stored.TokensUsed != 512 {
		t.Errorf("stored entry = %+v", stored)
	}
	if got, want := stored.ExpiresAt.Sub(stored.CreatedAt), 720*time.Hour; got != want {
		t.Errorf("TTL = %v, want %v", got, want)
	}
}

func TestAnalyze_StoreFailureDoesNotFailCall(t *testing.T) {
	t.Parallel()

	cache := &cacheRepoMock{
		LookupFunc: func(ctx context.Context, hash string) (*domain.CacheEntry, error) {
			return nil, domain.ErrNotFound
		},
		StoreFunc: func(ctx context.Context, entry *domain.CacheEntry) error {
			return errors.New("disk full")
		},
	}
	analyzer := &analyzerMock{
		AnalyzeFunc: func(ctx context.Context, content string) (*provider.AnalysisResult, error) {
			return &provider.AnalysisResult{Analysis: "ok", Model: "m", TokensUsed: 1}, nil
		},
	}

	svc := newTestService(cache, analyzer)

	result, err := svc.Analyze(context.Background(), "content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response != "ok" {
		t.Errorf("response = %q, want ok", result.Response)
	}
}

func TestAnalyze_AnalyzerFailure(t *testing.T) {
	t.Parallel()

	cache := &cacheRepoMock{
		LookupFunc: func(ctx context.Context, hash string) (*domain.CacheEntry, error) {
			return nil, domain.ErrNotFound
		},
	}
	analyzer := &analyzerMock{
		AnalyzeFunc: func(ctx context.Context, content string) (*provider.AnalysisResult, error) {
			return nil, &domain.ExternalError{Capability: "analyzer", Err: errors.New("upstream 503")}
		},
	}

	svc := newTestService(cache, analyzer)

	_, err := svc.Analyze(context.Background(), "content")
	if !errors.Is(err, domain.ErrExternal) {
		t.Fatalf("error = %v, want ErrExternal", err)
	}
	if cache.storeCalls != 0 {
		t.Errorf("store calls = %d, want 0", cache.storeCalls)
	}
}

func TestAnalyze_EmptyContent(t *testing.T) {
	t.Parallel()

	svc := newTestService(&cacheRepoMock{}, &analyzerMock{})

	_, err := svc.Analyze(context.Background(), "   ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
