package resource_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/resource"
	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres/testhelper"
	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// newRepo is a test helper that sets up the DB and returns a ready Repo.
func newRepo(t *testing.T) *resource.Repo {
	t.Helper()
	return resource.New(testhelper.SetupTestDB(t))
}

func ptrStr(s string) *string { return &s }

func newResource(status domain.ResourceStatus) *domain.Resource {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Resource{
		ID:          uuid.New(),
		Title:       "FFmpeg",
		URL:         "https://example.com/" + uuid.New().String()[:8],
		Description: "A complete solution to record, convert and stream media",
		Category:    ptrStr("Encoding"),
		Subcategory: ptrStr("Tools"),
		Tags:        []string{"cli", "transcoding"},
		Status:      status,
		Metadata:    map[string]any{"stars": float64(40000)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func assertIsDomainError(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

// ---------------------------------------------------------------------------
// CRUD
// ---------------------------------------------------------------------------

func TestRepo_Create_HappyPath(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	res := newResource(domain.ResourceStatusPending)
	got, err := repo.Create(ctx, res)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	if got.ID != res.ID || got.Title != res.Title || got.URL != res.URL {
		t.Errorf("got %+v, want %+v", got, res)
	}
	if got.Category == nil || *got.Category != "Encoding" {
		t.Errorf("category = %v", got.Category)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "cli" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["stars"] != float64(40000) {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestRepo_Create_DuplicateActiveURL(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	first := newResource(domain.ResourceStatusApproved)
	if _, err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	second := newResource(domain.ResourceStatusPending)
	second.URL = first.URL
	_, err := repo.Create(ctx, second)
	assertIsDomainError(t, err, domain.ErrAlreadyExists)
}

func TestRepo_Create_RejectedResourceFreesURL(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	first := newResource(domain.ResourceStatusApproved)
	if _, err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	first.Status = domain.ResourceStatusRejected
	if _, err := repo.Update(ctx, first); err != nil {
		t.Fatalf("Update to rejected: %v", err)
	}

	resubmitted := newResource(domain.ResourceStatusPending)
	resubmitted.URL = first.URL
	if _, err := repo.Create(ctx, resubmitted); err != nil {
		t.Fatalf("Create after rejection: %v", err)
	}
}

func TestRepo_Update(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	res, err := repo.Create(ctx, newResource(domain.ResourceStatusPending))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res.Title = "FFmpeg 7"
	res.Description = "updated"
	res.Status = domain.ResourceStatusApproved
	res.Subcategory = nil

	got, err := repo.Update(ctx, res)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "FFmpeg 7" || got.Status != domain.ResourceStatusApproved {
		t.Errorf("got %+v", got)
	}
	if got.Subcategory != nil {
		t.Errorf("subcategory = %v, want cleared", got.Subcategory)
	}
	if !got.UpdatedAt.After(res.CreatedAt) {
		t.Errorf("updated_at %v not advanced past %v", got.UpdatedAt, res.CreatedAt)
	}
}

func TestRepo_Delete(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	res, err := repo.Create(ctx, newResource(domain.ResourceStatusPending))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(ctx, res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = repo.GetByID(ctx, res.ID)
	assertIsDomainError(t, err, domain.ErrNotFound)

	assertIsDomainError(t, repo.Delete(ctx, uuid.New()), domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func TestRepo_FindActiveByURL(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	rejected := newResource(domain.ResourceStatusRejected)
	if _, err := repo.Create(ctx, rejected); err != nil {
		t.Fatalf("Create rejected: %v", err)
	}

	_, err := repo.FindActiveByURL(ctx, rejected.URL)
	assertIsDomainError(t, err, domain.ErrNotFound)

	active := newResource(domain.ResourceStatusApproved)
	if _, err := repo.Create(ctx, active); err != nil {
		t.Fatalf("Create active: %v", err)
	}

	got, err := repo.FindActiveByURL(ctx, active.URL)
	if err != nil {
		t.Fatalf("FindActiveByURL: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("got %s, want %s", got.ID, active.ID)
	}
}

func TestRepo_List_Filters(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	category := "cat-" + uuid.New().String()[:8]
	approved := newResource(domain.ResourceStatusApproved)
	approved.Category = ptrStr(category)
	pending := newResource(domain.ResourceStatusPending)
	pending.Category = ptrStr(category)
	for _, res := range []*domain.Resource{approved, pending} {
		if _, err := repo.Create(ctx, res); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.List(ctx, resource.Filter{
		Status:   domain.ResourceStatusApproved,
		Category: category,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != approved.ID {
		t.Errorf("got %d resources, want only the approved one", len(got))
	}

	all, err := repo.List(ctx, resource.Filter{Category: category})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d resources, want 2", len(all))
	}
}

func TestRepo_ListByIDs(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, newResource(domain.ResourceStatusApproved))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := repo.Create(ctx, newResource(domain.ResourceStatusApproved))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.ListByIDs(ctx, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("ListByIDs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d resources, want 2", len(got))
	}

	none, err := repo.ListByIDs(ctx, nil)
	if err != nil || none != nil {
		t.Errorf("ListByIDs(nil) = %v, %v, want nil, nil", none, err)
	}
}
