package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	auditrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/audit"
	listrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/awesomelist"
	cacherepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/cache"
	jobrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/job"
	proposalrepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/proposal"
	resourcerepo "github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	analyzerprovider "github.com/krzemienski/awesome-site-sub002/internal/adapter/provider/analyzer"
	"github.com/krzemienski/awesome-site-sub002/internal/adapter/provider/github"
	"github.com/krzemienski/awesome-site-sub002/internal/config"
	analysissvc "github.com/krzemienski/awesome-site-sub002/internal/service/analysis"
	jobssvc "github.com/krzemienski/awesome-site-sub002/internal/service/jobs"
	listsyncsvc "github.com/krzemienski/awesome-site-sub002/internal/service/listsync"
)

// deps wires repositories, providers, and services for the worker daemons.
type deps struct {
	analysisSvc *analysissvc.Service
	jobWorker   *jobssvc.Worker
	syncWorker  *listsyncsvc.Worker
}

func buildDeps(pool *pgxpool.Pool, logger *slog.Logger, cfg *config.Config) *deps {
	tx := postgres.NewTxManager(pool)

	resources := resourcerepo.New(pool)
	proposals := proposalrepo.New(pool)
	jobs := jobrepo.New(pool)
	targets := listrepo.New(pool)
	cache := cacherepo.New(pool)
	audit := auditrepo.New(pool)

	analyzer := analyzerprovider.New(cfg.Analyzer, logger)
	host := github.New(cfg.GitHub, logger)

	analysisSvc := analysissvc.NewService(logger, cache, analyzer, cfg.Cache)

	jobsSvc := jobssvc.NewService(logger, jobs, resources, proposals, audit, analysisSvc, tx)
	jobWorker := jobssvc.NewWorker(logger, jobsSvc, cfg.Jobs)

	syncSvc := listsyncsvc.NewService(logger, targets, resources, proposals, audit, host, tx)
	syncWorker := listsyncsvc.NewWorker(logger, syncSvc, cfg.Sync)

	return &deps{
		analysisSvc: analysisSvc,
		jobWorker:   jobWorker,
		syncWorker:  syncWorker,
	}
}
