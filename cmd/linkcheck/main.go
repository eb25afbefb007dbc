// Command linkcheck probes every approved resource URL once, optionally
// restricted to one category, stores the result as the latest health report,
// and prints a summary.
//
// Exit codes: 0 = success, 1 = error. With -fail-on-broken, a report
// containing broken or timed-out links also exits 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	linkreportrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/linkreport"
	resourcerepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/adapter/provider/httpprobe"
	"github.com/krzemienski/awesome-site-sub002/internal/app"
	"github.com/krzemienski/awesome-site-sub002/internal/config"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	linkchecksvc "github.com/krzemienski/awesome-site-sub002/internal/service/linkcheck"
)

func main() {
	failOnBroken := flag.Bool("fail-on-broken", false, "exit 1 when any link is broken or timed out")
	category := flag.String("category", "", "restrict the run to one category")
	verbose := flag.Bool("v", false, "print every unhealthy link")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	report, err := run(*timeout, *category, *verbose)
	if err != nil {
		slog.Error("link check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *failOnBroken && report.Broken+report.Timeout > 0 {
		os.Exit(1)
	}
}

func run(timeout time.Duration, category string, verbose bool) (*domain.LinkReport, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	svc := linkchecksvc.NewService(
		logger,
		resourcerepo.New(pool),
		linkreportrepo.New(pool),
		postgres.NewTxManager(pool),
		httpprobe.New(logger),
		cfg.LinkCheck,
	)

	report, err := svc.CheckAll(ctx, linkchecksvc.Scope{Category: category})
	if err != nil {
		return nil, err
	}

	fmt.Printf("checked %d links in %s: %d healthy, %d broken, %d timed out\n",
		report.TotalChecked,
		report.CompletedAt.Sub(report.StartedAt).Round(time.Second),
		report.Healthy, report.Broken, report.Timeout)

	if verbose {
		for _, res := range report.Results {
			if res.State == domain.LinkStateHealthy {
				continue
			}
			detail := ""
			if res.Error != nil {
				detail = *res.Error
			}
			fmt.Printf("  %-7s %s  %s\n", res.State, res.URL, detail)
		}
	}
	return report, nil
}
