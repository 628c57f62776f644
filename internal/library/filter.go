package library

import (
	"slices"
	"strings"

	"github.com/MrSnakeDoc/stacklink/internal/domain"
)

// SortBy names a link ordering.
type SortBy string

const (
	SortDateDesc SortBy = "dateDesc"
	SortNameAsc  SortBy = "nameAsc"
	SortPopDesc  SortBy = "popDesc"
)

// ParseSortBy maps a query value to a SortBy, defaulting to SortDateDesc.
func ParseSortBy(s string) SortBy {
	switch SortBy(s) {
	case SortNameAsc, SortPopDesc:
		return SortBy(s)
	default:
		return SortDateDesc
	}
}

// FilterOptions narrows and orders a link list.
type FilterOptions struct {
	Query      string
	CategoryID string
	SortBy     SortBy
}

// Filter returns the links matching opts. Query matches title, description
// and URL case-insensitively. All orderings are stable.
func Filter(links []domain.Link, opts FilterOptions) []domain.Link {
	q := strings.ToLower(strings.TrimSpace(opts.Query))

	out := make([]domain.Link, 0, len(links))
	for _, l := range links {
		if opts.CategoryID != "" && !l.InCategory(opts.CategoryID) {
			continue
		}
		if q != "" && !matches(l, q) {
			continue
		}
		out = append(out, l)
	}

	switch opts.SortBy {
	case SortNameAsc:
		slices.SortStableFunc(out, func(a, b domain.Link) int {
			return strings.Compare(strings.ToLower(displayName(a)), strings.ToLower(displayName(b)))
		})
	case SortPopDesc:
		slices.SortStableFunc(out, func(a, b domain.Link) int {
			return b.Popularity - a.Popularity
		})
	default:
		slices.SortStableFunc(out, func(a, b domain.Link) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out
}

// CategoryLabel returns the name of the link's first category, or
// domain.UncategorizedLabel when it has none or it no longer exists.
func CategoryLabel(l domain.Link, cats []domain.Category) string {
	id := l.CategoryID()
	if id == "" {
		return domain.UncategorizedLabel
	}
	for _, c := range cats {
		if c.ID == id {
			return c.Name
		}
	}
	return domain.UncategorizedLabel
}

// CategoryCounts returns the number of links per category id.
func CategoryCounts(links []domain.Link) map[string]int {
	counts := make(map[string]int)
	for _, l := range links {
		for _, id := range l.CategoryIDs {
			counts[id]++
		}
	}
	return counts
}

func matches(l domain.Link, q string) bool {
	return strings.Contains(strings.ToLower(l.Title), q) ||
		strings.Contains(strings.ToLower(l.Description), q) ||
		strings.Contains(strings.ToLower(l.URL), q)
}

func displayName(l domain.Link) string {
	if l.Title != "" {
		return l.Title
	}
	return l.URL
}
