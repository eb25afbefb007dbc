package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the kind of domain entity an audit record describes.
type EntityType string

const (
	EntityTypeResource   EntityType = "RESOURCE"
	EntityTypeProposal   EntityType = "PROPOSAL"
	EntityTypeSyncTarget EntityType = "SYNC_TARGET"
	EntityTypeJob        EntityType = "JOB"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeResource, EntityTypeProposal, EntityTypeSyncTarget, EntityTypeJob:
		return true
	}
	return false
}

// AuditAction represents the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "CREATE"
	AuditActionUpdate  AuditAction = "UPDATE"
	AuditActionApprove AuditAction = "APPROVE"
	AuditActionReject  AuditAction = "REJECT"
	AuditActionDelete  AuditAction = "DELETE"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionApprove, AuditActionReject, AuditActionDelete:
		return true
	}
	return false
}

// AuditRecord is an append-only snapshot of one state-changing operation.
// Records are never mutated or deleted.
type AuditRecord struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	EntityType EntityType
	EntityID   *uuid.UUID
	Action     AuditAction
	Before     map[string]any
	After      map[string]any
	CreatedAt  time.Time
}
