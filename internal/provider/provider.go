// Package provider defines the abstract capability contracts the curation core
// consumes: content analysis, repository hosting, and URL probing. Adapters
// under internal/adapter/provider implement them; services depend only on
// these interfaces so tests can substitute in-memory fakes.
package provider

import (
	"context"
	"time"
)

// AnalysisResult is the structured result of one external content analysis.
type AnalysisResult struct {
	Analysis   string
	Model      string
	TokensUsed int
}

// Analyzer is the external AI analysis capability. Calls may fail transiently;
// retry policy belongs to the adapter, not the caller.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*AnalysisResult, error)
}

// RepositoryRef identifies one repository returned by a search.
type RepositoryRef struct {
	Owner       string
	Name        string
	Description string
	Stars       int
	URL         string
}

// RepoHost is the external version-control hosting capability.
type RepoHost interface {
	// FetchFile returns the decoded content of a file at the given ref.
	FetchFile(ctx context.Context, owner, repo, branch, path string) (string, error)
	// CommitFile creates or updates a file and returns the commit SHA.
	CommitFile(ctx context.Context, owner, repo, branch, path, content, message string) (string, error)
	// SearchRepositories runs a repository search query.
	SearchRepositories(ctx context.Context, query string) ([]RepositoryRef, error)
}

// ProbeResult is the outcome of one HTTP liveness probe.
type ProbeResult struct {
	StatusCode int
	TimedOut   bool
	Err        error
}

// Prober is the generic HTTP probe used by the link health checker.
type Prober interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ProbeResult
}
