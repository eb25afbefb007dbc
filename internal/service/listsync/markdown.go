package listsync

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/krzemienski/awesome-site-sub002/internal/domain"
)

// The list grammar:
//
//	# Title                      ignored
//	## Category
//	### Subcategory
//	#### Sub-subcategory
//	- [Title](https://url) - Description
//
// Everything else (intro prose, badges, blank lines) is ignored on parse and
// never produced on render.

var itemRe = regexp.MustCompile(`^- \[(.+?)\]\((\S+?)\)(?:\s+-\s+(.*))?$`)

// uncategorizedHeading is the synthetic category rendered for resources
// without one. Parsing maps it back to a nil category, so an export followed
// by an import of the same file is a no-op.
const uncategorizedHeading = "Uncategorized"

// maxDescriptionLen bounds entry descriptions in either direction.
const maxDescriptionLen = 500

// ListItem is one parsed entry with its heading context.
type ListItem struct {
	Title          string
	URL            string
	Description    string
	Category       *string
	Subcategory    *string
	SubSubcategory *string
	Line           int
}

// ParseDocument extracts list items from markdown. Malformed item lines
// (lines that start like an entry but do not match the grammar), oversize
// descriptions, and headings that skip a level are returned as field errors
// with their line numbers; well-formed items are still returned alongside
// them so callers can decide whether to proceed.
func ParseDocument(content string) ([]ListItem, []domain.FieldError) {
	var (
		items []ListItem
		errs  []domain.FieldError

		category, subcategory, subSubcategory *string
		inCategory, inSubcategory             bool
	)

	lineErr := func(n int, format string, args ...any) {
		errs = append(errs, domain.FieldError{
			Field:   fmt.Sprintf("line %d", n+1),
			Message: fmt.Sprintf(format, args...),
		})
	}

	for n, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		switch {
		case strings.HasPrefix(line, "#### "):
			if !inSubcategory {
				lineErr(n, "sub-subcategory heading without a subcategory")
				continue
			}
			subSubcategory = headingPtr(line, "#### ")
		case strings.HasPrefix(line, "### "):
			if !inCategory {
				lineErr(n, "subcategory heading without a category")
				continue
			}
			subcategory = headingPtr(line, "### ")
			subSubcategory = nil
			inSubcategory = subcategory != nil
		case strings.HasPrefix(line, "## "):
			category = headingPtr(line, "## ")
			if category != nil && *category == uncategorizedHeading {
				category = nil
			}
			subcategory, subSubcategory = nil, nil
			inCategory = true
			inSubcategory = false
		case strings.HasPrefix(line, "- ["):
			m := itemRe.FindStringSubmatch(line)
			if m == nil {
				lineErr(n, "malformed list entry")
				continue
			}
			if !domain.ValidateResourceURL(m[2]) {
				lineErr(n, "invalid url %q", m[2])
				continue
			}
			if !inCategory {
				lineErr(n, "entry before any category heading")
				continue
			}
			description := strings.TrimSpace(m[3])
			if len(description) > maxDescriptionLen {
				lineErr(n, "description longer than %d characters", maxDescriptionLen)
				continue
			}
			items = append(items, ListItem{
				Title:          strings.TrimSpace(m[1]),
				URL:            domain.NormalizeURL(m[2]),
				Description:    description,
				Category:       category,
				Subcategory:    subcategory,
				SubSubcategory: subSubcategory,
				Line:           n + 1,
			})
		}
	}
	return items, errs
}

// ValidateDocument parses the content and returns a ValidationError when any
// entry is malformed, any description exceeds the length bound, or a heading
// skips a level.
func ValidateDocument(content string) error {
	_, errs := ParseDocument(content)
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func headingPtr(line, prefix string) *string {
	h := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if h == "" {
		return nil
	}
	return &h
}

// RenderDocument produces the canonical markdown for a set of resources.
// Output is deterministic: categories, subcategories and entries are sorted
// lexicographically, uncategorized entries render under "Uncategorized", and
// rendering a parsed document again yields byte-identical output.
func RenderDocument(title string, resources []*domain.Resource) string {
	sorted := make([]*domain.Resource, len(resources))
	copy(sorted, resources)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := renderPath(sorted[i]), renderPath(sorted[j])
		if pi != pj {
			return pi < pj
		}
		return strings.ToLower(sorted[i].Title) < strings.ToLower(sorted[j].Title)
	})

	var b strings.Builder
	b.WriteString("# " + title + "\n")

	var lastCat, lastSub, lastSubSub string
	for _, r := range sorted {
		cat := valueOr(r.Category, uncategorizedHeading)
		sub := valueOr(r.Subcategory, "")
		subSub := valueOr(r.SubSubcategory, "")

		if cat != lastCat {
			b.WriteString("\n## " + cat + "\n")
			lastCat, lastSub, lastSubSub = cat, "", ""
		}
		if sub != lastSub {
			if sub != "" {
				b.WriteString("\n### " + sub + "\n")
			}
			lastSub, lastSubSub = sub, ""
		}
		if subSub != lastSubSub {
			if subSub != "" {
				b.WriteString("\n#### " + subSub + "\n")
			}
			lastSubSub = subSub
		}

		b.WriteString("- [" + r.Title + "](" + r.URL + ")")
		if r.Description != "" {
			b.WriteString(" - " + r.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderPath builds a sortable heading path for a resource.
func renderPath(r *domain.Resource) string {
	return strings.ToLower(strings.Join([]string{
		valueOr(r.Category, uncategorizedHeading),
		valueOr(r.Subcategory, ""),
		valueOr(r.SubSubcategory, ""),
	}, "\x00"))
}

func valueOr(p *string, fallback string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return fallback
	}
	return strings.TrimSpace(*p)
}

// itemResource converts a parsed item into a resource value for diffing
// against the stored record.
func itemResource(item ListItem) *domain.Resource {
	return &domain.Resource{
		Title:          item.Title,
		URL:            item.URL,
		Description:    item.Description,
		Category:       item.Category,
		Subcategory:    item.Subcategory,
		SubSubcategory: item.SubSubcategory,
	}
}
