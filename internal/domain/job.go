package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType classifies what a background job produces.
type JobType string

const (
	JobTypeEnrichment JobType = "enrichment"
	JobTypeResearch   JobType = "research"
)

func (t JobType) String() string { return string(t) }

func (t JobType) IsValid() bool {
	return t == JobTypeEnrichment || t == JobTypeResearch
}

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one enrichment or research run. Cancellation is cooperative: the
// worker checks the flag between units of work, so a cancelled job may still
// finish its in-flight item.
type Job struct {
	ID          uuid.UUID
	Type        JobType
	Config      map[string]any
	Status      JobStatus
	TokensUsed  int
	CostUSD     float64
	Error       *string
	RequestedBy uuid.UUID
	CreatedAt   time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
}

// QueueItemStatus represents the processing state of one unit of job work.
type QueueItemStatus string

const (
	QueueItemStatusPending    QueueItemStatus = "pending"
	QueueItemStatusProcessing QueueItemStatus = "processing"
	QueueItemStatusDone       QueueItemStatus = "done"
	QueueItemStatusFailed     QueueItemStatus = "failed"
)

func (s QueueItemStatus) String() string { return string(s) }

func (s QueueItemStatus) IsValid() bool {
	switch s {
	case QueueItemStatusPending, QueueItemStatusProcessing, QueueItemStatusDone, QueueItemStatusFailed:
		return true
	}
	return false
}

// QueueItem is one resource analyzed by a job, with its own cost accounting.
type QueueItem struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	ResourceID  uuid.UUID
	Status      QueueItemStatus
	TokensUsed  int
	CostUSD     float64
	Error       *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// JobProgress holds per-item counts for a job's status report.
type JobProgress struct {
	Total      int
	Pending    int
	Processing int
	Done       int
	Failed     int
}

// FindingKind classifies a research discovery.
type FindingKind string

const (
	FindingKindBrokenLink FindingKind = "broken_link"
	FindingKindDuplicate  FindingKind = "duplicate"
	FindingKindTrend      FindingKind = "trend"
	FindingKindOther      FindingKind = "other"
)

func (k FindingKind) String() string { return string(k) }

func (k FindingKind) IsValid() bool {
	switch k {
	case FindingKindBrokenLink, FindingKindDuplicate, FindingKindTrend, FindingKindOther:
		return true
	}
	return false
}

// Finding is a structured discovery produced by a research job.
type Finding struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Kind      FindingKind
	Payload   map[string]any
	Dismissed bool
	CreatedAt time.Time
}

// CostBucket aggregates token and dollar spend for one UTC calendar day.
type CostBucket struct {
	Day        time.Time
	TokensUsed int
	CostUSD    float64
	Items      int
}
