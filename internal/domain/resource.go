package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResourceStatus represents the moderation state of a catalog entry.
type ResourceStatus string

const (
	ResourceStatusPending  ResourceStatus = "pending"
	ResourceStatusApproved ResourceStatus = "approved"
	ResourceStatusRejected ResourceStatus = "rejected"
)

func (s ResourceStatus) String() string { return string(s) }

func (s ResourceStatus) IsValid() bool {
	switch s {
	case ResourceStatusPending, ResourceStatusApproved, ResourceStatusRejected:
		return true
	}
	return false
}

// Resource is a canonical catalog entry: a curated external link with metadata.
// The URL is unique among non-rejected resources. Resources are mutated only
// through an applied Diff; they are never hard-deleted outside explicit admin action.
type Resource struct {
	ID             uuid.UUID
	Title          string
	URL            string
	Description    string
	Category       *string
	Subcategory    *string
	SubSubcategory *string
	Tags           []string
	Status         ResourceStatus
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CategoryPath returns the category segments from most to least general,
// stopping at the first unset level.
func (r *Resource) CategoryPath() []string {
	var path []string
	for _, seg := range []*string{r.Category, r.Subcategory, r.SubSubcategory} {
		if seg == nil || strings.TrimSpace(*seg) == "" {
			break
		}
		path = append(path, strings.TrimSpace(*seg))
	}
	return path
}

// NormalizeURL canonicalizes a resource URL for uniqueness checks and cache keys:
// trimmed, lowercased scheme and host, trailing slash removed from the path.
// Invalid URLs are returned trimmed as-is; validation is the caller's job.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// ValidateResourceURL reports whether raw parses as an absolute http(s) URL.
func ValidateResourceURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
