package domain

import (
	"fmt"
	"strings"
)

// Editable resource fields a diff may touch. Anything else is rejected by Validate.
var diffFieldWhitelist = map[string]bool{
	"title":           true,
	"url":             true,
	"description":     true,
	"category":        true,
	"subcategory":     true,
	"sub_subcategory": true,
	"tags":            true,
}

// FieldChange is one proposed field-level mutation: the value the proposer saw
// and the value they want. Tags are encoded as a comma-separated list.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Diff is an ordered list of field changes describing a proposed mutation.
// Order is presentation order only; Apply treats the diff as a set.
type Diff []FieldChange

// Validate rejects diffs that are empty, name unknown fields, or repeat a field.
func (d Diff) Validate() error {
	if len(d) == 0 {
		return NewValidationError("diff", "must contain at least one change")
	}

	var errs []FieldError
	seen := make(map[string]bool, len(d))
	for _, c := range d {
		field := strings.TrimSpace(c.Field)
		if !diffFieldWhitelist[field] {
			errs = append(errs, FieldError{Field: field, Message: "not an editable field"})
			continue
		}
		if seen[field] {
			errs = append(errs, FieldError{Field: field, Message: "duplicated in diff"})
		}
		seen[field] = true
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Apply writes every new value onto a copy of the resource and returns it.
// Before touching anything it checks each recorded old value against the live
// record; a mismatch returns a ConflictError and the resource is left untouched
// (all-or-nothing). Apply does not persist.
func (d Diff) Apply(r *Resource) (*Resource, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	for _, c := range d {
		current := resourceFieldValue(r, c.Field)
		if current != c.Old {
			return nil, &ConflictError{Field: c.Field, Expected: c.Old, Actual: current}
		}
	}

	updated := *r
	updated.Tags = append([]string(nil), r.Tags...)
	if r.Metadata != nil {
		updated.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			updated.Metadata[k] = v
		}
	}

	for _, c := range d {
		setResourceField(&updated, c.Field, c.New)
	}
	return &updated, nil
}

// DiffResources builds a diff that would turn current into desired, restricted
// to the editable field whitelist. Returns an empty diff when nothing differs.
func DiffResources(current, desired *Resource) Diff {
	var d Diff
	for _, field := range []string{"title", "url", "description", "category", "subcategory", "sub_subcategory", "tags"} {
		oldVal := resourceFieldValue(current, field)
		newVal := resourceFieldValue(desired, field)
		if oldVal != newVal {
			d = append(d, FieldChange{Field: field, Old: oldVal, New: newVal})
		}
	}
	return d
}

// Summary renders a short human-readable description of the diff.
func (d Diff) Summary() string {
	fields := make([]string, len(d))
	for i, c := range d {
		fields[i] = c.Field
	}
	return fmt.Sprintf("%d change(s): %s", len(d), strings.Join(fields, ", "))
}

func resourceFieldValue(r *Resource, field string) string {
	switch field {
	case "title":
		return r.Title
	case "url":
		return r.URL
	case "description":
		return r.Description
	case "category":
		return strPtrValue(r.Category)
	case "subcategory":
		return strPtrValue(r.Subcategory)
	case "sub_subcategory":
		return strPtrValue(r.SubSubcategory)
	case "tags":
		return strings.Join(r.Tags, ",")
	}
	return ""
}

func setResourceField(r *Resource, field, value string) {
	switch field {
	case "title":
		r.Title = value
	case "url":
		r.URL = value
	case "description":
		r.Description = value
	case "category":
		r.Category = strPtrOrNil(value)
	case "subcategory":
		r.Subcategory = strPtrOrNil(value)
	case "sub_subcategory":
		r.SubSubcategory = strPtrOrNil(value)
	case "tags":
		if value == "" {
			r.Tags = nil
			return
		}
		parts := strings.Split(value, ",")
		tags := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				tags = append(tags, t)
			}
		}
		r.Tags = tags
	}
}

func strPtrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
