package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// SubmitResourceInput holds the parameters for submitting a new resource.
type SubmitResourceInput struct {
	Title          string
	URL            string
	Description    string
	Category       *string
	Subcategory    *string
	SubSubcategory *string
	Tags           []string
	Metadata       map[string]any
}

// Validate checks all fields and collects all errors.
func (i SubmitResourceInput) Validate() error {
	var errs []domain.FieldError

	title := strings.TrimSpace(i.Title)
	if title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	}
	if len(title) > 300 {
		errs = append(errs, domain.FieldError{Field: "title", Message: "max 300 characters"})
	}

	if strings.TrimSpace(i.URL) == "" {
		errs = append(errs, domain.FieldError{Field: "url", Message: "required"})
	} else if !domain.ValidateResourceURL(i.URL) {
		errs = append(errs, domain.FieldError{Field: "url", Message: "must be an absolute http(s) URL"})
	}

	if len(i.Description) > 2000 {
		errs = append(errs, domain.FieldError{Field: "description", Message: "max 2000 characters"})
	}

	// Deeper category levels require every level above them.
	if i.Subcategory != nil && i.Category == nil {
		errs = append(errs, domain.FieldError{Field: "subcategory", Message: "requires category"})
	}
	if i.SubSubcategory != nil && (i.Subcategory == nil || i.Category == nil) {
		errs = append(errs, domain.FieldError{Field: "sub_subcategory", Message: "requires category and subcategory"})
	}

	for _, tag := range i.Tags {
		if strings.TrimSpace(tag) == "" {
			errs = append(errs, domain.FieldError{Field: "tags", Message: "must not contain empty tags"})
			break
		}
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// GetResourceInput holds the parameters for fetching one resource.
type GetResourceInput struct {
	ResourceID uuid.UUID
}

// Validate checks all fields and collects all errors.
func (i GetResourceInput) Validate() error {
	if i.ResourceID == uuid.Nil {
		return domain.NewValidationError("resource_id", "required")
	}
	return nil
}

// ListResourcesInput holds the parameters for listing resources.
type ListResourcesInput struct {
	Status   *domain.ResourceStatus
	Category *string
	Limit    int
	Offset   int
}

// Validate checks all fields and collects all errors.
func (i ListResourcesInput) Validate() error {
	var errs []domain.FieldError
	if i.Status != nil && !i.Status.IsValid() {
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

// DeleteResourceInput holds the parameters for removing a resource.
type DeleteResourceInput struct {
	ResourceID uuid.UUID
}

// Validate checks all fields and collects all errors.
func (i DeleteResourceInput) Validate() error {
	if i.ResourceID == uuid.Nil {
		return domain.NewValidationError("resource_id", "required")
	}
	return nil
}
