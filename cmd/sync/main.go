// Command sync runs one import or export against an awesome-list target and
// prints the outcome. The target is named as owner/repo; an unknown target is
// registered first.
//
// Usage:
//
//	sync -list owner/repo [-branch main] [-path README.md] -action import [-strategy skip|update|create] [-auto-approve]
//	sync -list owner/repo -action export
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	auditrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/audit"
	listrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/awesomelist"
	proposalrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/proposal"
	resourcerepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/adapter/provider/github"
	"github.com/krzemienski/awesome-site-sub002/internal/app"
	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	listsyncsvc "github.com/krzemienski/awesome-site-sub002/internal/service/listsync"
)

func main() {
	list := flag.String("list", "", "target list as owner/repo")
	branch := flag.String("branch", "", "branch (default main)")
	path := flag.String("path", "", "list file path (default README.md)")
	action := flag.String("action", "", "import or export")
	strategy := flag.String("strategy", "update", "conflict strategy for imports: skip, update, or create")
	autoApprove := flag.Bool("auto-approve", false, "apply imported changes directly instead of proposing them")
	category := flag.String("category", "", "restrict exports to one category")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	if err := run(*list, *branch, *path, *action, *strategy, *category, *autoApprove, *timeout); err != nil {
		slog.Error("sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(list, branch, path, action, strategy, category string, autoApprove bool, timeout time.Duration) error {
	owner, repo, ok := strings.Cut(list, "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("invalid -list %q, want owner/repo", list)
	}
	syncAction := domain.SyncAction(action)
	if !syncAction.IsValid() {
		return fmt.Errorf("invalid -action %q, want import or export", action)
	}
	syncStrategy := domain.SyncStrategy(strategy)
	if !syncStrategy.IsValid() {
		return fmt.Errorf("invalid -strategy %q, want skip, update, or create", strategy)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	targets := listrepo.New(pool)
	svc := listsyncsvc.NewService(
		logger,
		targets,
		resourcerepo.New(pool),
		proposalrepo.New(pool),
		auditrepo.New(pool),
		github.New(cfg.GitHub, logger),
		postgres.NewTxManager(pool),
	)

	target, err := findOrCreateTarget(ctx, svc, targets, owner, repo, branch, path)
	if err != nil {
		return err
	}

	switch syncAction {
	case domain.SyncActionImport:
		result, err := svc.Import(ctx, target, syncStrategy, autoApprove)
		if err != nil {
			return err
		}
		fmt.Printf("import %s/%s: created=%d updated=%d skipped=%d conflicted=%d\n",
			target.Owner, target.Repo,
			result.Created, result.Updated, result.Skipped, result.Conflicted)
	case domain.SyncActionExport:
		result, err := svc.Export(ctx, target, listsyncsvc.ExportFilter{Category: category})
		if err != nil {
			return err
		}
		if result.Unchanged {
			fmt.Printf("export %s/%s: %d entries, file already up to date\n",
				target.Owner, target.Repo, result.Exported)
		} else {
			fmt.Printf("export %s/%s: %d entries, commit %s\n",
				target.Owner, target.Repo, result.Exported, result.CommitSHA)
		}
	}
	return nil
}

// findOrCreateTarget resolves owner/repo against the registered targets,
// registering a new one when no match exists. Branch and path narrow the
// match when given.
func findOrCreateTarget(
	ctx context.Context,
	svc *listsyncsvc.Service,
	targets *listrepo.Repo,
	owner, repo, branch, path string,
) (*domain.SyncTarget, error) {
	existing, err := targets.ListTargets(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t.Owner != owner || t.Repo != repo {
			continue
		}
		if branch != "" && t.Branch != branch {
			continue
		}
		if path != "" && t.FilePath != path {
			continue
		}
		return t, nil
	}

	return svc.CreateTarget(ctx, listsyncsvc.CreateTargetInput{
		Owner:    owner,
		Repo:     repo,
		Branch:   branch,
		FilePath: path,
	})
}
