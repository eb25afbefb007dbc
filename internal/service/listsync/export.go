package listsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

const exportBatchSize = 500

// ExportResult describes the outcome of one export run.
type ExportResult struct {
	Exported  int
	CommitSHA string
	Unchanged bool
}

// ExportFilter narrows which resources an export renders. The zero value
// exports every approved resource.
type ExportFilter struct {
	Category string
	Status   domain.ResourceStatus
}

// Export renders the selected resources to the canonical list format,
// validates the result, and commits it to the target file. When the rendered
// document is byte-identical to the file already in the repository, no commit
// is made.
func (s *Service) Export(ctx context.Context, target *domain.SyncTarget, filter ExportFilter) (*ExportResult, error) {
	status := filter.Status
	if status == "" {
		status = domain.ResourceStatusApproved
	}
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "unknown status")
	}

	var selected []*domain.Resource
	for offset := 0; ; offset += exportBatchSize {
		batch, err := s.resources.List(ctx, resource.Filter{
			Status:   status,
			Category: filter.Category,
			Limit:    exportBatchSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		selected = append(selected, batch...)
		if len(batch) < exportBatchSize {
			break
		}
	}

	rendered := RenderDocument(target.Repo, selected)
	if err := ValidateDocument(rendered); err != nil {
		return nil, fmt.Errorf("rendered document invalid: %w", err)
	}

	current, err := s.host.FetchFile(ctx, target.Owner, target.Repo, target.Branch, target.FilePath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("fetch current list file: %w", err)
	}
	if current == rendered {
		s.log.InfoContext(ctx, "export skipped, file already current",
			slog.String("target_id", target.ID.String()),
		)
		return &ExportResult{Exported: len(selected), Unchanged: true}, nil
	}

	message := fmt.Sprintf("sync: export %d catalog entries", len(selected))
	sha, err := s.host.CommitFile(ctx, target.Owner, target.Repo, target.Branch, target.FilePath, rendered, message)
	if err != nil {
		return nil, fmt.Errorf("commit list file: %w", err)
	}

	s.log.InfoContext(ctx, "export committed",
		slog.String("target_id", target.ID.String()),
		slog.Int("exported", len(selected)),
		slog.String("commit_sha", sha),
	)

	return &ExportResult{Exported: len(selected), CommitSHA: sha}, nil
}
