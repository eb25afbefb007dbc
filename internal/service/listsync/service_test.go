package listsync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/internal/provider"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type resourceRepoMock struct {
	byURL     map[string]*domain.Resource
	created   []*domain.Resource
	updated   []*domain.Resource
	approved  []*domain.Resource
	listCalls int
}

func (m *resourceRepoMock) Create(_ context.Context, res *domain.Resource) (*domain.Resource, error) {
	m.created = append(m.created, res)
	return res, nil
}

func (m *resourceRepoMock) Update(_ context.Context, res *domain.Resource) (*domain.Resource, error) {
	m.updated = append(m.updated, res)
	return res, nil
}

func (m *resourceRepoMock) FindActiveByURL(_ context.Context, url string) (*domain.Resource, error) {
	if r, ok := m.byURL[url]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *resourceRepoMock) List(_ context.Context, filter resource.Filter) ([]*domain.Resource, error) {
	m.listCalls++
	var out []*domain.Resource
	for _, r := range m.approved {
		if filter.Category != "" && (r.Category == nil || *r.Category != filter.Category) {
			continue
		}
		out = append(out, r)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	return out[filter.Offset:], nil
}

type proposalRepoMock struct {
	byResource map[uuid.UUID][]*domain.EditProposal
	created    []*domain.EditProposal
}

func (m *proposalRepoMock) Create(_ context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
	m.created = append(m.created, p)
	return p, nil
}

func (m *proposalRepoMock) ListByResource(_ context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error) {
	return m.byResource[resourceID], nil
}

type repoHostMock struct {
	files   map[string]string
	commits []string
}

func (m *repoHostMock) FetchFile(_ context.Context, owner, repo, branch, path string) (string, error) {
	content, ok := m.files[path]
	if !ok {
		return "", domain.ErrNotFound
	}
	return content, nil
}

func (m *repoHostMock) CommitFile(_ context.Context, owner, repo, branch, path, content, message string) (string, error) {
	m.files[path] = content
	m.commits = append(m.commits, message)
	return "abc123", nil
}

func (m *repoHostMock) SearchRepositories(_ context.Context, query string) ([]provider.RepositoryRef, error) {
	return nil, nil
}

type auditRepoMock struct {
	records []*domain.AuditRecord
}

func (m *auditRepoMock) Create(_ context.Context, rec *domain.AuditRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(resources *resourceRepoMock, proposals *proposalRepoMock, host *repoHostMock) *Service {
	return &Service{
		resources: resources,
		proposals: proposals,
		audit:     &auditRepoMock{},
		host:      host,
		tx:        txManagerMock{},
		log:       slog.Default(),
	}
}

func testTarget() *domain.SyncTarget {
	return &domain.SyncTarget{
		ID:       uuid.New(),
		Owner:    "krzemienski",
		Repo:     "awesome-streaming",
		Branch:   "main",
		FilePath: "README.md",
	}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

func TestImport_CreatesNewResources(t *testing.T) {
	t.Parallel()

	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - Video toolkit.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Created != 1 || result.Updated != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, want 1 created", result)
	}
	if len(resources.created) != 1 {
		t.Fatalf("created %d resources, want 1", len(resources.created))
	}
	got := resources.created[0]
	if got.Status != domain.ResourceStatusPending {
		t.Errorf("status = %s, want pending without autoApprove", got.Status)
	}
	if got.URL != "https://ffmpeg.org" || got.Title != "ffmpeg" {
		t.Errorf("created resource = %+v", got)
	}
}

func TestImport_AutoApproveCreatesApproved(t *testing.T) {
	t.Parallel()

	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - Video toolkit.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{}}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	if _, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resources.created[0].Status != domain.ResourceStatusApproved {
		t.Errorf("status = %s, want approved with autoApprove", resources.created[0].Status)
	}
}

func TestImport_IdenticalEntrySkipped(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Video toolkit.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - Video toolkit.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Skipped != 1 || result.Created != 0 || result.Updated != 0 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
	if len(proposals.created) != 0 {
		t.Errorf("created %d proposals, want 0", len(proposals.created))
	}
}

func TestImport_ChangedEntryCreatesOneProposal(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Updated != 1 {
		t.Errorf("result = %+v, want 1 updated", result)
	}
	if len(proposals.created) != 1 {
		t.Fatalf("created %d proposals, want exactly 1", len(proposals.created))
	}
	p := proposals.created[0]
	if p.ResourceID != existing.ID || p.Status != domain.ProposalStatusPending {
		t.Errorf("proposal = %+v", p)
	}
	if p.SubmitterID != SystemActorID {
		t.Errorf("submitter = %v, want system actor", p.SubmitterID)
	}
	if len(p.Changes) != 1 || p.Changes[0].Field != "description" {
		t.Errorf("changes = %+v, want one description change", p.Changes)
	}
	if len(resources.updated) != 0 {
		t.Error("resource must not be updated directly without autoApprove")
	}
}

func TestImport_ChangedEntryAutoApproveUpdatesDirectly(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Updated != 1 {
		t.Errorf("result = %+v, want 1 updated", result)
	}
	if len(resources.updated) != 1 || resources.updated[0].Description != "New description." {
		t.Errorf("updated resources = %+v", resources.updated)
	}
	if len(proposals.created) != 0 {
		t.Errorf("created %d proposals, want 0 with autoApprove", len(proposals.created))
	}
}

func TestImport_PendingProposalCountsConflicted(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{byResource: map[uuid.UUID][]*domain.EditProposal{
		existing.ID: {{ID: uuid.New(), Status: domain.ProposalStatusPending}},
	}}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Conflicted != 1 || result.Updated != 0 {
		t.Errorf("result = %+v, want 1 conflicted", result)
	}
	if len(proposals.created) != 0 {
		t.Errorf("created %d proposals, want 0", len(proposals.created))
	}
}

func TestImport_MalformedDocumentFails(t *testing.T) {
	t.Parallel()

	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [broken](https://example.com\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{}}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	_, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, false)
	if err == nil {
		t.Fatal("import of a malformed document must fail")
	}
	if len(resources.created) != 0 {
		t.Errorf("created %d resources from a broken document", len(resources.created))
	}
}

// ---------------------------------------------------------------------------
// Export / round trip
// ---------------------------------------------------------------------------

func TestExport_CommitsRenderedDocument(t *testing.T) {
	t.Parallel()

	approved := []*domain.Resource{
		{
			ID:          uuid.New(),
			Title:       "ffmpeg",
			URL:         "https://ffmpeg.org",
			Description: "Video toolkit.",
			Category:    strPtr("Tools"),
			Status:      domain.ResourceStatusApproved,
		},
	}
	host := &repoHostMock{files: map[string]string{}}
	resources := &resourceRepoMock{approved: approved}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	result, err := svc.Export(context.Background(), testTarget(), ExportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Exported != 1 || result.Unchanged {
		t.Errorf("result = %+v", result)
	}
	if len(host.commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(host.commits))
	}
	if err := ValidateDocument(host.files["README.md"]); err != nil {
		t.Errorf("exported document does not validate: %v", err)
	}
}

func TestExport_UnchangedFileSkipsCommit(t *testing.T) {
	t.Parallel()

	approved := []*domain.Resource{
		{
			ID:          uuid.New(),
			Title:       "ffmpeg",
			URL:         "https://ffmpeg.org",
			Description: "Video toolkit.",
			Category:    strPtr("Tools"),
			Status:      domain.ResourceStatusApproved,
		},
	}
	target := testTarget()
	host := &repoHostMock{files: map[string]string{
		"README.md": RenderDocument(target.Repo, approved),
	}}
	resources := &resourceRepoMock{approved: approved}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	result, err := svc.Export(context.Background(), target, ExportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Unchanged {
		t.Error("identical file should skip the commit")
	}
	if len(host.commits) != 0 {
		t.Errorf("commits = %d, want 0", len(host.commits))
	}
}

// Exporting the catalog and importing the result back must be a no-op.
func TestExportImportRoundTripSkipsEverything(t *testing.T) {
	t.Parallel()

	approved := testResources()
	for _, r := range approved {
		r.Status = domain.ResourceStatusApproved
	}
	byURL := make(map[string]*domain.Resource, len(approved))
	for _, r := range approved {
		byURL[r.URL] = r
	}

	target := testTarget()
	host := &repoHostMock{files: map[string]string{}}
	resources := &resourceRepoMock{approved: approved, byURL: byURL}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	if _, err := svc.Export(context.Background(), target, ExportFilter{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	result, err := svc.Import(context.Background(), target, domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Skipped != len(approved) || result.Created != 0 || result.Updated != 0 || result.Conflicted != 0 {
		t.Errorf("round trip result = %+v, want all %d skipped", result, len(approved))
	}
}

// ---------------------------------------------------------------------------
// Conflict strategies
// ---------------------------------------------------------------------------

func TestImport_StrategySkipLeavesChangedEntryAlone(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategySkip, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Skipped != 1 || result.Updated != 0 || result.Created != 0 {
		t.Errorf("result = %+v, want the differing entry skipped", result)
	}
	if len(proposals.created) != 0 || len(resources.updated) != 0 {
		t.Error("skip strategy must not touch the existing resource")
	}
}

func TestImport_StrategySkipStillCreatesUnknownURLs(t *testing.T) {
	t.Parallel()

	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - Video toolkit.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{}}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategySkip, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Created != 1 || len(resources.created) != 1 {
		t.Errorf("result = %+v, want the unknown URL created", result)
	}
}

func TestImport_StrategyCreateFlagsDuplicate(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	result, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyCreate, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Created != 1 {
		t.Errorf("result = %+v, want 1 created", result)
	}
	if len(resources.created) != 1 {
		t.Fatalf("created %d resources, want 1", len(resources.created))
	}
	dup := resources.created[0]
	if dup.ID == existing.ID {
		t.Fatal("duplicate must be a new record")
	}
	if got, _ := dup.Metadata["duplicate_of"].(string); got != existing.ID.String() {
		t.Errorf("duplicate_of = %q, want %s", got, existing.ID)
	}
	// Duplicates always wait for review, autoApprove notwithstanding.
	if dup.Status != domain.ResourceStatusPending {
		t.Errorf("duplicate status = %s, want pending", dup.Status)
	}
	if len(resources.updated) != 0 || len(proposals.created) != 0 {
		t.Error("create strategy must leave the existing resource untouched")
	}
}

func TestImport_UnknownStrategyRejected(t *testing.T) {
	t.Parallel()

	svc := newTestService(&resourceRepoMock{}, &proposalRepoMock{}, &repoHostMock{})

	_, err := svc.Import(context.Background(), testTarget(), "merge", false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// An exported resource without a category renders under the synthetic
// heading; importing that file back must not propose giving it one.
func TestExportImportRoundTripUncategorized(t *testing.T) {
	t.Parallel()

	stray := &domain.Resource{
		ID:          uuid.New(),
		Title:       "stray",
		URL:         "https://stray.example.com",
		Description: "No category yet.",
		Status:      domain.ResourceStatusApproved,
	}
	target := testTarget()
	host := &repoHostMock{files: map[string]string{}}
	resources := &resourceRepoMock{
		approved: []*domain.Resource{stray},
		byURL:    map[string]*domain.Resource{stray.URL: stray},
	}
	proposals := &proposalRepoMock{}

	svc := newTestService(resources, proposals, host)

	if _, err := svc.Export(context.Background(), target, ExportFilter{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	result, err := svc.Import(context.Background(), target, domain.SyncStrategyUpdate, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 || result.Updated != 0 {
		t.Errorf("round trip result = %+v, want 1 skipped", result)
	}
	if len(proposals.created) != 0 {
		t.Errorf("created %d proposals for an unchanged resource", len(proposals.created))
	}
}

func TestImport_AutoApproveWritesAudit(t *testing.T) {
	t.Parallel()

	existing := &domain.Resource{
		ID:          uuid.New(),
		Title:       "ffmpeg",
		URL:         "https://ffmpeg.org",
		Description: "Old description.",
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}
	host := &repoHostMock{files: map[string]string{
		"README.md": "## Tools\n- [ffmpeg](https://ffmpeg.org) - New description.\n",
	}}
	resources := &resourceRepoMock{byURL: map[string]*domain.Resource{existing.URL: existing}}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	if _, err := svc.Import(context.Background(), testTarget(), domain.SyncStrategyUpdate, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audit := svc.audit.(*auditRepoMock)
	if len(audit.records) != 1 {
		t.Fatalf("audit records = %d, want 1 for the applied update", len(audit.records))
	}
	rec := audit.records[0]
	if rec.EntityType != domain.EntityTypeResource || rec.Action != domain.AuditActionUpdate {
		t.Errorf("audit record = %s %s", rec.EntityType, rec.Action)
	}
	if rec.ActorID != SystemActorID {
		t.Errorf("audit actor = %s, want the system actor", rec.ActorID)
	}
	if rec.Before["description"] != "Old description." || rec.After["description"] != "New description." {
		t.Errorf("audit snapshots = %v -> %v", rec.Before, rec.After)
	}
}

// ---------------------------------------------------------------------------
// Export selection and validation
// ---------------------------------------------------------------------------

func TestExport_CategoryFilter(t *testing.T) {
	t.Parallel()

	approved := []*domain.Resource{
		{ID: uuid.New(), Title: "ffmpeg", URL: "https://ffmpeg.org", Category: strPtr("Tools"), Status: domain.ResourceStatusApproved},
		{ID: uuid.New(), Title: "hls.js", URL: "https://github.com/video-dev/hls.js", Category: strPtr("Players"), Status: domain.ResourceStatusApproved},
	}
	host := &repoHostMock{files: map[string]string{}}
	resources := &resourceRepoMock{approved: approved}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	result, err := svc.Export(context.Background(), testTarget(), ExportFilter{Category: "Tools"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exported != 1 {
		t.Errorf("exported = %d, want 1", result.Exported)
	}
	doc := host.files["README.md"]
	if !strings.Contains(doc, "ffmpeg") || strings.Contains(doc, "hls.js") {
		t.Errorf("filtered document:\n%s", doc)
	}
}

func TestExport_OversizeDescriptionFailsValidation(t *testing.T) {
	t.Parallel()

	approved := []*domain.Resource{{
		ID:          uuid.New(),
		Title:       "big",
		URL:         "https://example.com",
		Description: strings.Repeat("x", maxDescriptionLen+1),
		Category:    strPtr("Tools"),
		Status:      domain.ResourceStatusApproved,
	}}
	host := &repoHostMock{files: map[string]string{}}
	resources := &resourceRepoMock{approved: approved}

	svc := newTestService(resources, &proposalRepoMock{}, host)

	if _, err := svc.Export(context.Background(), testTarget(), ExportFilter{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want the rendered document rejected", err)
	}
	if len(host.commits) != 0 {
		t.Error("an invalid document must never be committed")
	}
}
