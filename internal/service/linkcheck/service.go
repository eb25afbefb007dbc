// Package linkcheck probes resource URLs concurrently, every approved
// resource by default, and keeps a single point-in-time health report. A new
// run replaces the previous report atomically.
package linkcheck

import (
	"context"
	"log/slog"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

type resourceRepo interface {
	List(ctx context.Context, filter resource.Filter) ([]*domain.Resource, error)
}

type reportRepo interface {
	Replace(ctx context.Context, report *domain.LinkReport) error
	Latest(ctx context.Context) (*domain.LinkReport, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service provides link health checking operations.
type Service struct {
	resources resourceRepo
	reports   reportRepo
	tx        txManager
	prober    provider.Prober
	cfg       config.LinkCheckConfig
	log       *slog.Logger
}

// NewService creates a new LinkCheck service.
func NewService(
	log *slog.Logger,
	resources resourceRepo,
	reports reportRepo,
	tx txManager,
	prober provider.Prober,
	cfg config.LinkCheckConfig,
) *Service {
	return &Service{
		resources: resources,
		reports:   reports,
		tx:        tx,
		prober:    prober,
		cfg:       cfg,
		log:       log.With("service", "linkcheck"),
	}
}
