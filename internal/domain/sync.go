package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncAction is the direction of a synchronization task.
type SyncAction string

const (
	SyncActionImport SyncAction = "import"
	SyncActionExport SyncAction = "export"
)

func (a SyncAction) String() string { return string(a) }

func (a SyncAction) IsValid() bool {
	return a == SyncActionImport || a == SyncActionExport
}

// SyncStrategy decides what an import does with an entry whose URL is
// already in the catalog.
type SyncStrategy string

const (
	// SyncStrategySkip leaves existing resources untouched, even when the
	// list entry differs.
	SyncStrategySkip SyncStrategy = "skip"
	// SyncStrategyUpdate merges differences into the existing resource,
	// directly or via an edit proposal.
	SyncStrategyUpdate SyncStrategy = "update"
	// SyncStrategyCreate keeps the existing resource and adds the entry as
	// a new record flagged as a duplicate.
	SyncStrategyCreate SyncStrategy = "create"
)

func (s SyncStrategy) String() string { return string(s) }

func (s SyncStrategy) IsValid() bool {
	switch s {
	case SyncStrategySkip, SyncStrategyUpdate, SyncStrategyCreate:
		return true
	}
	return false
}

// SyncTaskStatus represents the queue state of a sync task.
type SyncTaskStatus string

const (
	SyncTaskStatusPending    SyncTaskStatus = "pending"
	SyncTaskStatusProcessing SyncTaskStatus = "processing"
	SyncTaskStatusCompleted  SyncTaskStatus = "completed"
	SyncTaskStatusFailed     SyncTaskStatus = "failed"
)

func (s SyncTaskStatus) String() string { return string(s) }

func (s SyncTaskStatus) IsValid() bool {
	switch s {
	case SyncTaskStatusPending, SyncTaskStatusProcessing, SyncTaskStatusCompleted, SyncTaskStatusFailed:
		return true
	}
	return false
}

// SyncStatus is the user-facing state derived from a target's most recent task.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusImporting SyncStatus = "importing"
	SyncStatusExporting SyncStatus = "exporting"
	SyncStatusError     SyncStatus = "error"
)

func (s SyncStatus) String() string { return string(s) }

// SyncTarget binds the catalog to one external awesome-list file.
type SyncTarget struct {
	ID          uuid.UUID
	Owner       string
	Repo        string
	Branch      string
	FilePath    string
	SyncEnabled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SyncTask is one queued import or export for a target. At most one task per
// target is ever processing; tasks for the same target run in creation order.
type SyncTask struct {
	ID        uuid.UUID
	TargetID  uuid.UUID
	Action    SyncAction
	Status    SyncTaskStatus
	Payload   map[string]any
	Error     *string
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}

// SyncRecord is the immutable history entry written when a task finishes.
type SyncRecord struct {
	ID         uuid.UUID
	TargetID   uuid.UUID
	TaskID     uuid.UUID
	Action     SyncAction
	Created    int
	Updated    int
	Skipped    int
	Conflicted int
	Error      *string
	CreatedAt  time.Time
}

// DeriveSyncStatus maps the latest task for a target to a user-facing status.
// A nil task means no sync has ever run.
func DeriveSyncStatus(latest *SyncTask) SyncStatus {
	if latest == nil {
		return SyncStatusIdle
	}
	switch latest.Status {
	case SyncTaskStatusPending, SyncTaskStatusProcessing:
		if latest.Action == SyncActionExport {
			return SyncStatusExporting
		}
		return SyncStatusImporting
	case SyncTaskStatusFailed:
		return SyncStatusError
	}
	return SyncStatusIdle
}
