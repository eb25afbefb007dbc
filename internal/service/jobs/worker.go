package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// costPerToken converts analyzer token usage into dollars.
const costPerToken = 0.000002

// Worker drains the job queue. A single worker processes one job at a time;
// several workers may run side by side, each claiming its own job.
type Worker struct {
	svc *Service
	cfg config.JobsConfig
	log *slog.Logger
}

// NewWorker creates a job queue worker.
func NewWorker(log *slog.Logger, svc *Service, cfg config.JobsConfig) *Worker {
	return &Worker{
		svc: svc,
		cfg: cfg,
		log: log.With("worker", "jobs"),
	}
}

// Run processes jobs until the context is cancelled. Jobs and items orphaned
// by a crashed worker are requeued on startup.
func (w *Worker) Run(ctx context.Context) error {
	reset, err := w.svc.jobs.ResetStuck(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		w.log.InfoContext(ctx, "requeued orphaned job state", slog.Int("count", reset))
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := w.svc.jobs.ClaimNextJob(ctx)
		switch {
		case err == nil:
			w.processJob(ctx, job)
			continue
		case errors.Is(err, domain.ErrNotFound):
			// Queue empty, wait for the next tick.
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			w.log.ErrorContext(ctx, "claim job failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processJob runs one job to completion, item by item. Cancellation is
// cooperative: the job status is re-read between items, so a cancel lands
// after the in-flight item finishes.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) {
	log := w.log.With(
		slog.String("job_id", job.ID.String()),
		slog.String("type", job.Type.String()),
	)
	log.InfoContext(ctx, "job started")

	var failures int
	for {
		status, err := w.svc.jobs.GetJobStatus(ctx, job.ID)
		if err != nil {
			log.ErrorContext(ctx, "read job status failed", slog.Any("error", err))
			return
		}
		if status == domain.JobStatusCancelled {
			log.InfoContext(ctx, "job cancelled, stopping")
			return
		}

		item, err := w.svc.jobs.ClaimNextItem(ctx, job.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				break
			}
			log.ErrorContext(ctx, "claim queue item failed", slog.Any("error", err))
			return
		}

		tokens, cost, err := w.processItem(ctx, job, item)
		if err != nil {
			failures++
			msg := err.Error()
			if ferr := w.svc.jobs.FinishItem(ctx, item.ID, domain.QueueItemStatusFailed, 0, 0, &msg); ferr != nil {
				log.ErrorContext(ctx, "finish queue item failed", slog.Any("error", ferr))
			}
			log.WarnContext(ctx, "queue item failed",
				slog.String("item_id", item.ID.String()),
				slog.Any("error", err),
			)
			if failures >= w.cfg.MaxItemFailures {
				msg := fmt.Sprintf("aborted after %d item failures", failures)
				if ferr := w.svc.jobs.FinishJob(ctx, job.ID, domain.JobStatusFailed, &msg); ferr != nil {
					log.ErrorContext(ctx, "finish job failed", slog.Any("error", ferr))
				}
				log.ErrorContext(ctx, "job failed", slog.Int("failures", failures))
				return
			}
			continue
		}

		if err := w.svc.jobs.FinishItem(ctx, item.ID, domain.QueueItemStatusDone, tokens, cost, nil); err != nil {
			log.ErrorContext(ctx, "finish queue item failed", slog.Any("error", err))
		}
		if tokens > 0 {
			if err := w.svc.jobs.AddJobCost(ctx, job.ID, tokens, cost); err != nil {
				log.ErrorContext(ctx, "accumulate job cost failed", slog.Any("error", err))
			}
		}
	}

	if err := w.svc.jobs.FinishJob(ctx, job.ID, domain.JobStatusCompleted, nil); err != nil {
		log.ErrorContext(ctx, "finish job failed", slog.Any("error", err))
		return
	}
	log.InfoContext(ctx, "job completed")
}

// processItem analyzes one resource and produces the job's output for it:
// an edit proposal for enrichment jobs, a finding for research jobs.
// Cached analyses cost nothing.
func (w *Worker) processItem(ctx context.Context, job *domain.Job, item *domain.QueueItem) (int, float64, error) {
	res, err := w.svc.resources.GetByID(ctx, item.ResourceID)
	if err != nil {
		return 0, 0, fmt.Errorf("get resource: %w", err)
	}

	content := fmt.Sprintf("%s\n%s\n%s", res.URL, res.Title, res.Description)
	result, err := w.svc.analyzer.Analyze(ctx, content)
	if err != nil {
		return 0, 0, fmt.Errorf("analyze resource: %w", err)
	}

	tokens := result.TokensUsed
	if result.FromCache {
		tokens = 0
	}
	cost := float64(tokens) * costPerToken

	switch job.Type {
	case domain.JobTypeEnrichment:
		err = w.enrich(ctx, job, res, result.Response)
	case domain.JobTypeResearch:
		err = w.record(ctx, job, res, result.Response)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		return 0, 0, err
	}
	return tokens, cost, nil
}

// enrich proposes the analyzer's description for the resource. An analysis
// matching the current description produces nothing.
func (w *Worker) enrich(ctx context.Context, job *domain.Job, res *domain.Resource, analysis string) error {
	if analysis == "" || analysis == res.Description {
		return nil
	}

	proposal, err := w.svc.proposals.Create(ctx, &domain.EditProposal{
		ID:         uuid.New(),
		ResourceID: res.ID,
		Kind:       domain.ProposalKindEnhancement,
		Changes: domain.Diff{
			{Field: "description", Old: res.Description, New: analysis},
		},
		Justification: "generated by enrichment job",
		Status:        domain.ProposalStatusPending,
		SubmitterID:   job.RequestedBy,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create enrichment proposal: %w", err)
	}
	w.svc.recordAudit(ctx, &domain.AuditRecord{
		ID:         uuid.New(),
		ActorID:    job.RequestedBy,
		EntityType: domain.EntityTypeProposal,
		EntityID:   &proposal.ID,
		Action:     domain.AuditActionCreate,
		After: map[string]any{
			"resource_id": res.ID.String(),
			"job_id":      job.ID.String(),
			"kind":        proposal.Kind.String(),
			"status":      proposal.Status.String(),
		},
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// record stores the analyzer's output as a research finding.
func (w *Worker) record(ctx context.Context, job *domain.Job, res *domain.Resource, analysis string) error {
	kind := domain.FindingKindOther
	if k, ok := job.Config["kind"].(string); ok && domain.FindingKind(k).IsValid() {
		kind = domain.FindingKind(k)
	}

	_, err := w.svc.jobs.CreateFinding(ctx, &domain.Finding{
		ID:    uuid.New(),
		JobID: job.ID,
		Kind:  kind,
		Payload: map[string]any{
			"resource_id": res.ID.String(),
			"url":         res.URL,
			"analysis":    analysis,
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create finding: %w", err)
	}
	return nil
}
