package review

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
	"github.com/krzemienski/awesome-site-sub002/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type proposalRepoMock struct {
	CreateFunc           func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error)
	GetByIDForUpdateFunc func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error)
	UpdateReviewFunc     func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error)
	ListFunc             func(ctx context.Context, status domain.ProposalStatus, limit, offset int) ([]*domain.EditProposal, error)
	ListByResourceFunc   func(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error)

	updateReviewCalls int
}

func (m *proposalRepoMock) Create(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
	return m.CreateFunc(ctx, p)
}

func (m *proposalRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *proposalRepoMock) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
	return m.GetByIDForUpdateFunc(ctx, id)
}

func (m *proposalRepoMock) UpdateReview(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
	m.updateReviewCalls++
	return m.UpdateReviewFunc(ctx, p)
}

func (m *proposalRepoMock) List(ctx context.Context, status domain.ProposalStatus, limit, offset int) ([]*domain.EditProposal, error) {
	return m.ListFunc(ctx, status, limit, offset)
}

func (m *proposalRepoMock) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]*domain.EditProposal, error) {
	return m.ListByResourceFunc(ctx, resourceID)
}

type resourceRepoMock struct {
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Resource, error)
	UpdateFunc  func(ctx context.Context, res *domain.Resource) (*domain.Resource, error)

	updateCalls int
}

func (m *resourceRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *resourceRepoMock) Update(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
	m.updateCalls++
	return m.UpdateFunc(ctx, res)
}

type auditRepoMock struct {
	records []*domain.AuditRecord
}

func (m *auditRepoMock) Create(_ context.Context, rec *domain.AuditRecord) error {
	m.records = append(m.records, rec)
	return nil
}

// txManagerMock runs the callback directly without a real transaction.
type txManagerMock struct{}

func (txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(proposals *proposalRepoMock, resources *resourceRepoMock, audit *auditRepoMock) *Service {
	return &Service{
		proposals: proposals,
		resources: resources,
		audit:     audit,
		tx:        txManagerMock{},
		log:       slog.Default(),
	}
}

func pendingProposal(resourceID uuid.UUID) *domain.EditProposal {
	return &domain.EditProposal{
		ID:         uuid.New(),
		ResourceID: resourceID,
		Kind:       domain.ProposalKindCorrection,
		Changes: domain.Diff{
			{Field: "title", Old: "Old Title", New: "New Title"},
		},
		Status:      domain.ProposalStatusPending,
		SubmitterID: uuid.New(),
		CreatedAt:   time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// ApproveProposal
// ---------------------------------------------------------------------------

func TestApproveProposal_Success(t *testing.T) {
	t.Parallel()

	resourceID := uuid.New()
	proposal := pendingProposal(resourceID)
	reviewerID := uuid.New()

	resources := &resourceRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
			return &domain.Resource{
				ID:     resourceID,
				Title:  "Old Title",
				URL:    "https://example.com/tool",
				Status: domain.ResourceStatusApproved,
			}, nil
		},
		UpdateFunc: func(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
			if res.Title != "New Title" {
				t.Errorf("updated title = %q, want %q", res.Title, "New Title")
			}
			return res, nil
		},
	}
	proposals := &proposalRepoMock{
		GetByIDForUpdateFunc: func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
			return proposal, nil
		},
		UpdateReviewFunc: func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
			return p, nil
		},
	}
	audit := &auditRepoMock{}

	svc := newTestService(proposals, resources, audit)
	ctx := ctxutil.WithActorID(context.Background(), reviewerID)

	result, err := svc.ApproveProposal(ctx, ApproveProposalInput{ProposalID: proposal.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ProposalStatusApproved {
		t.Errorf("status = %s, want approved", result.Status)
	}
	if result.ReviewerID == nil || *result.ReviewerID != reviewerID {
		t.Errorf("reviewer_id = %v, want %v", result.ReviewerID, reviewerID)
	}
	if result.AppliedAt == nil {
		t.Error("applied_at should be set")
	}
	if resources.updateCalls != 1 {
		t.Errorf("resource Update calls = %d, want 1", resources.updateCalls)
	}
	if len(audit.records) != 1 || audit.records[0].Action != domain.AuditActionApprove {
		t.Errorf("audit records = %+v, want one APPROVE", audit.records)
	}
}

func TestApproveProposal_ConflictAutoRejects(t *testing.T) {
	t.Parallel()

	resourceID := uuid.New()
	proposal := pendingProposal(resourceID)

	resources := &resourceRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
			// Title drifted since the proposal captured its old value.
			return &domain.Resource{
				ID:    resourceID,
				Title: "Renamed Meanwhile",
				URL:   "https://example.com/tool",
			}, nil
		},
		UpdateFunc: func(ctx context.Context, res *domain.Resource) (*domain.Resource, error) {
			t.Error("resource must not be updated on conflict")
			return res, nil
		},
	}
	proposals := &proposalRepoMock{
		GetByIDForUpdateFunc: func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
			return proposal, nil
		},
		UpdateReviewFunc: func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
			return p, nil
		},
	}
	audit := &auditRepoMock{}

	svc := newTestService(proposals, resources, audit)
	ctx := ctxutil.WithActorID(context.Background(), uuid.New())

	result, err := svc.ApproveProposal(ctx, ApproveProposalInput{ProposalID: proposal.ID})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) || cerr.Field != "title" {
		t.Fatalf("conflict error = %v, want field title", err)
	}

	if result == nil || result.Status != domain.ProposalStatusRejected {
		t.Fatalf("proposal should be auto-rejected, got %+v", result)
	}
	if result.Feedback == nil || *result.Feedback == "" {
		t.Error("auto-rejection must set feedback")
	}
	if resources.updateCalls != 0 {
		t.Errorf("resource Update calls = %d, want 0", resources.updateCalls)
	}
	if len(audit.records) != 1 || audit.records[0].Action != domain.AuditActionReject {
		t.Errorf("audit records = %+v, want one REJECT", audit.records)
	}
}

func TestApproveProposal_AlreadyReviewed(t *testing.T) {
	t.Parallel()

	proposal := pendingProposal(uuid.New())
	proposal.Status = domain.ProposalStatusRejected

	proposals := &proposalRepoMock{
		GetByIDForUpdateFunc: func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
			return proposal, nil
		},
	}

	svc := newTestService(proposals, &resourceRepoMock{}, &auditRepoMock{})
	ctx := ctxutil.WithActorID(context.Background(), uuid.New())

	_, err := svc.ApproveProposal(ctx, ApproveProposalInput{ProposalID: proposal.ID})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveProposal_Unauthorized(t *testing.T) {
	t.Parallel()

	svc := newTestService(&proposalRepoMock{}, &resourceRepoMock{}, &auditRepoMock{})

	_, err := svc.ApproveProposal(context.Background(), ApproveProposalInput{ProposalID: uuid.New()})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
}

// ---------------------------------------------------------------------------
// RejectProposal
// ---------------------------------------------------------------------------

func TestRejectProposal_Success(t *testing.T) {
	t.Parallel()

	proposal := pendingProposal(uuid.New())
	reviewerID := uuid.New()

	proposals := &proposalRepoMock{
		GetByIDForUpdateFunc: func(ctx context.Context, id uuid.UUID) (*domain.EditProposal, error) {
			return proposal, nil
		},
		UpdateReviewFunc: func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
			return p, nil
		},
	}
	audit := &auditRepoMock{}

	svc := newTestService(proposals, &resourceRepoMock{}, audit)
	ctx := ctxutil.WithActorID(context.Background(), reviewerID)

	result, err := svc.RejectProposal(ctx, RejectProposalInput{
		ProposalID: proposal.ID,
		Feedback:   "duplicate of an existing entry",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ProposalStatusRejected {
		t.Errorf("status = %s, want rejected", result.Status)
	}
	if result.Feedback == nil || *result.Feedback != "duplicate of an existing entry" {
		t.Errorf("feedback = %v", result.Feedback)
	}
	if result.AppliedAt != nil {
		t.Error("rejected proposal must not have applied_at")
	}
}

func TestRejectProposal_FeedbackRequired(t *testing.T) {
	t.Parallel()

	svc := newTestService(&proposalRepoMock{}, &resourceRepoMock{}, &auditRepoMock{})
	ctx := ctxutil.WithActorID(context.Background(), uuid.New())

	_, err := svc.RejectProposal(ctx, RejectProposalInput{ProposalID: uuid.New()})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

// ---------------------------------------------------------------------------
// SubmitProposal
// ---------------------------------------------------------------------------

func TestSubmitProposal_Success(t *testing.T) {
	t.Parallel()

	resourceID := uuid.New()
	submitterID := uuid.New()

	resources := &resourceRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
			return &domain.Resource{ID: resourceID}, nil
		},
	}
	proposals := &proposalRepoMock{
		CreateFunc: func(ctx context.Context, p *domain.EditProposal) (*domain.EditProposal, error) {
			return p, nil
		},
	}

	svc := newTestService(proposals, resources, &auditRepoMock{})
	ctx := ctxutil.WithActorID(context.Background(), submitterID)

	result, err := svc.SubmitProposal(ctx, SubmitProposalInput{
		ResourceID: resourceID,
		Kind:       domain.ProposalKindEnhancement,
		Changes: domain.Diff{
			{Field: "description", Old: "", New: "a fuller description"},
		},
		Justification: "  add context  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ProposalStatusPending {
		t.Errorf("status = %s, want pending", result.Status)
	}
	if result.SubmitterID != submitterID {
		t.Errorf("submitter_id = %v, want %v", result.SubmitterID, submitterID)
	}
	if result.Justification != "add context" {
		t.Errorf("justification = %q, want trimmed", result.Justification)
	}
}

func TestSubmitProposal_ResourceMissing(t *testing.T) {
	t.Parallel()

	resources := &resourceRepoMock{
		GetByIDFunc: func(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
			return nil, domain.ErrNotFound
		},
	}

	svc := newTestService(&proposalRepoMock{}, resources, &auditRepoMock{})
	ctx := ctxutil.WithActorID(context.Background(), uuid.New())

	_, err := svc.SubmitProposal(ctx, SubmitProposalInput{
		ResourceID: uuid.New(),
		Kind:       domain.ProposalKindCorrection,
		Changes: domain.Diff{
			{Field: "title", Old: "a", New: "b"},
		},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSubmitProposal_InvalidDiffField(t *testing.T) {
	t.Parallel()

	svc := newTestService(&proposalRepoMock{}, &resourceRepoMock{}, &auditRepoMock{})
	ctx := ctxutil.WithActorID(context.Background(), uuid.New())

	_, err := svc.SubmitProposal(ctx, SubmitProposalInput{
		ResourceID: uuid.New(),
		Kind:       domain.ProposalKindCorrection,
		Changes: domain.Diff{
			{Field: "status", Old: "pending", New: "approved"},
		},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
