package domain

import (
	"time"

	"github.com/google/uuid"
)

// LinkState classifies the outcome of probing one resource URL.
type LinkState string

const (
	LinkStateHealthy LinkState = "healthy"
	LinkStateBroken  LinkState = "broken"
	LinkStateTimeout LinkState = "timeout"
)

func (s LinkState) String() string { return string(s) }

func (s LinkState) IsValid() bool {
	switch s {
	case LinkStateHealthy, LinkStateBroken, LinkStateTimeout:
		return true
	}
	return false
}

// LinkResult is the probe outcome for one resource.
type LinkResult struct {
	ResourceID uuid.UUID
	URL        string
	State      LinkState
	StatusCode int
	Error      *string
	CheckedAt  time.Time
}

// LinkReport is a point-in-time health report over the checked resources.
// Only the latest report is kept; writing a new one replaces the previous.
type LinkReport struct {
	ID           uuid.UUID
	TotalChecked int
	Healthy      int
	Broken       int
	Timeout      int
	Results      []LinkResult
	StartedAt    time.Time
	CompletedAt  time.Time
}

// FilterResults returns the report's results restricted to one state,
// or all results when filter is empty or "all".
func (r *LinkReport) FilterResults(filter string) []LinkResult {
	if filter == "" || filter == "all" {
		return r.Results
	}
	var out []LinkResult
	for _, res := range r.Results {
		if string(res.State) == filter {
			out = append(out, res)
		}
	}
	return out
}
