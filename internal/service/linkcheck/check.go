package linkcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

const checkBatchSize = 500

// Scope restricts a check run to part of the catalog. The zero value checks
// every approved resource.
type Scope struct {
	Category string
	Status   domain.ResourceStatus
}

// CheckAll probes every resource URL in scope and stores the outcome as the
// new latest report. Probes run concurrently, bounded by the configured
// concurrency; a probe failure is a result, not an error, so one dead host
// never aborts the run.
func (s *Service) CheckAll(ctx context.Context, scope Scope) (*domain.LinkReport, error) {
	startedAt := time.Now().UTC()

	if scope.Status == "" {
		scope.Status = domain.ResourceStatusApproved
	}
	if !scope.Status.IsValid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}

	targets, err := s.listInScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	results := make([]domain.LinkResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, res := range targets {
		g.Go(func() error {
			results[i] = s.probe(gctx, res)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe resources: %w", err)
	}

	report := &domain.LinkReport{
		ID:          uuid.New(),
		Results:     results,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}
	for _, res := range results {
		report.TotalChecked++
		switch res.State {
		case domain.LinkStateHealthy:
			report.Healthy++
		case domain.LinkStateBroken:
			report.Broken++
		case domain.LinkStateTimeout:
			report.Timeout++
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.reports.Replace(ctx, report)
	})
	if err != nil {
		return nil, fmt.Errorf("store link report: %w", err)
	}

	s.log.InfoContext(ctx, "link check completed",
		slog.Int("checked", report.TotalChecked),
		slog.Int("healthy", report.Healthy),
		slog.Int("broken", report.Broken),
		slog.Int("timeout", report.Timeout),
	)
	return report, nil
}

// LatestReport returns the most recent report, with results restricted to
// one state when filter names one ("" and "all" keep everything).
func (s *Service) LatestReport(ctx context.Context, filter string) (*domain.LinkReport, error) {
	if filter != "" && filter != "all" && !domain.LinkState(filter).IsValid() {
		return nil, domain.NewValidationError("filter", "unknown link state")
	}

	report, err := s.reports.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest link report: %w", err)
	}

	report.Results = report.FilterResults(filter)
	return report, nil
}

func (s *Service) listInScope(ctx context.Context, scope Scope) ([]*domain.Resource, error) {
	var out []*domain.Resource
	for offset := 0; ; offset += checkBatchSize {
		batch, err := s.resources.List(ctx, resource.Filter{
			Status:   scope.Status,
			Category: scope.Category,
			Limit:    checkBatchSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		out = append(out, batch...)
		if len(batch) < checkBatchSize {
			return out, nil
		}
	}
}

// probe classifies one URL. 2xx and 3xx answers count as healthy, anything
// else as broken; deadline overruns are reported separately so a slow host
// is distinguishable from a dead one.
func (s *Service) probe(ctx context.Context, res *domain.Resource) domain.LinkResult {
	result := domain.LinkResult{
		ResourceID: res.ID,
		URL:        res.URL,
		CheckedAt:  time.Now().UTC(),
	}

	outcome := s.prober.Fetch(ctx, res.URL, s.cfg.RequestTimeout)
	switch {
	case outcome.TimedOut:
		result.State = domain.LinkStateTimeout
		msg := fmt.Sprintf("no response within %s", s.cfg.RequestTimeout)
		result.Error = &msg
	case outcome.Err != nil:
		result.State = domain.LinkStateBroken
		msg := outcome.Err.Error()
		result.Error = &msg
	case outcome.StatusCode >= http.StatusBadRequest:
		result.State = domain.LinkStateBroken
		result.StatusCode = outcome.StatusCode
		msg := fmt.Sprintf("HTTP %d", outcome.StatusCode)
		result.Error = &msg
	default:
		result.State = domain.LinkStateHealthy
		result.StatusCode = outcome.StatusCode
	}
	return result
}
