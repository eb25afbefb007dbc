package review

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// SubmitProposalInput holds the parameters for submitting an edit proposal.
type SubmitProposalInput struct {
	ResourceID    uuid.UUID
	Kind          domain.ProposalKind
	Changes       domain.Diff
	Justification string
}

// Validate checks all fields and collects all errors.
func (i SubmitProposalInput) Validate() error {
	var errs []domain.FieldError

	if i.ResourceID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "resource_id", Message: "required"})
	}
	if !i.Kind.IsValid() {
		errs = append(errs, domain.FieldError{Field: "kind", Message: "unknown kind"})
	}
	if err := i.Changes.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			errs = append(errs, verr.Errors...)
		} else {
			errs = append(errs, domain.FieldError{Field: "changes", Message: err.Error()})
		}
	}
	if len(i.Justification) > 2000 {
		errs = append(errs, domain.FieldError{Field: "justification", Message: "max 2000 characters"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ApproveProposalInput holds the parameters for approving a proposal.
type ApproveProposalInput struct {
	ProposalID uuid.UUID
}

// Validate checks all fields and collects all errors.
func (i ApproveProposalInput) Validate() error {
	if i.ProposalID == uuid.Nil {
		return domain.NewValidationError("proposal_id", "required")
	}
	return nil
}

// RejectProposalInput holds the parameters for rejecting a proposal.
type RejectProposalInput struct {
	ProposalID uuid.UUID
	Feedback   string
}

// Validate checks all fields and collects all errors.
func (i RejectProposalInput) Validate() error {
	var errs []domain.FieldError
	if i.ProposalID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "proposal_id", Message: "required"})
	}
	if strings.TrimSpace(i.Feedback) == "" {
		errs = append(errs, domain.FieldError{Field: "feedback", Message: "required"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ListProposalsInput holds the parameters for listing proposals.
type ListProposalsInput struct {
	Status domain.ProposalStatus
	Limit  int
	Offset int
}

// Validate checks all fields and collects all errors.
func (i ListProposalsInput) Validate() error {
	var errs []domain.FieldError
	if i.Status != "" && !i.Status.IsValid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "unknown status"})
	}
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be non-negative"})
	}
	if i.Limit > MaxLimit {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "max 200"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must be non-negative"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
