package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProposalStatus represents the review state of an edit proposal.
// pending -> approved and pending -> rejected are the only legal transitions;
// both end states are terminal.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
)

func (s ProposalStatus) String() string { return string(s) }

func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusPending, ProposalStatusApproved, ProposalStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to the target status is legal.
func (s ProposalStatus) CanTransitionTo(target ProposalStatus) bool {
	return s == ProposalStatusPending &&
		(target == ProposalStatusApproved || target == ProposalStatusRejected)
}

// ProposalKind classifies why an edit was proposed.
type ProposalKind string

const (
	ProposalKindCorrection  ProposalKind = "correction"
	ProposalKindEnhancement ProposalKind = "enhancement"
	ProposalKindReport      ProposalKind = "report"
)

func (k ProposalKind) String() string { return string(k) }

func (k ProposalKind) IsValid() bool {
	switch k {
	case ProposalKindCorrection, ProposalKindEnhancement, ProposalKindReport:
		return true
	}
	return false
}

// EditProposal is a user- or analyzer-submitted change to one resource.
// The submitter owns it until review; the decision belongs to the reviewer.
// Approved proposals record when the diff was applied.
type EditProposal struct {
	ID            uuid.UUID
	ResourceID    uuid.UUID
	Kind          ProposalKind
	Changes       Diff
	Justification string
	Status        ProposalStatus
	SubmitterID   uuid.UUID
	ReviewerID    *uuid.UUID
	ReviewedAt    *time.Time
	Feedback      *string
	AppliedAt     *time.Time
	CreatedAt     time.Time
}
