// Package filter narrows catalog listings by search text, category, author,
// tag and year criteria, and pages the result.
//
// Everything here is pure: inputs are never mutated and no I/O happens.
package filter

import (
	"slices"
	"strconv"
	"strings"

	"github.com/htol/techlib/book"
	"golang.org/x/text/cases"
)

// Year bucket keywords.
const (
	YearAll = "all"
	YearOld = "old"
)

// OldBefore is the first year not covered by the "old" bucket.
const OldBefore = 2021

// Filters are the criteria of a catalog listing. Zero values disable a criterion.
type Filters struct {
	Search     string   `json:"search,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	// Year is a bucket: "", "all", "YYYY", "YYYY-YYYY" or "old".
	Year     string `json:"year,omitempty"`
	YearFrom string `json:"year_from,omitempty"`
	YearTo   string `json:"year_to,omitempty"`
	// SearchTags extends the search text match to tags.
	SearchTags bool `json:"-"`
}

// IsZero reports whether no criterion is active.
func (f Filters) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" &&
		len(f.Categories) == 0 && len(f.Authors) == 0 && len(f.Tags) == 0 &&
		(f.Year == "" || f.Year == YearAll) &&
		f.YearFrom == "" && f.YearTo == ""
}

// compiled holds criteria parsed once per Apply call.
type compiled struct {
	needle     string
	searchTags bool
	categories map[string]struct{}
	authors    map[string]struct{}
	tags       map[string]struct{}
	yearMin    int
	yearMax    int
	hasMin     bool
	hasMax     bool
}

func compile(f Filters) compiled {
	c := compiled{
		needle:     fold(strings.TrimSpace(f.Search)),
		searchTags: f.SearchTags,
		categories: toSet(f.Categories),
		authors:    toSet(f.Authors),
		tags:       toSet(f.Tags),
	}

	if lo, hi, ok := parseYearBucket(f.Year); ok {
		c.narrow(lo, hi)
	}
	if y, ok := parseYear(f.YearFrom); ok {
		c.narrow(y, 0)
	}
	if y, ok := parseYear(f.YearTo); ok {
		c.narrow(0, y)
	}
	return c
}

// narrow intersects the year window with [lo, hi]; zero means unbounded.
func (c *compiled) narrow(lo, hi int) {
	if lo != 0 && (!c.hasMin || lo > c.yearMin) {
		c.yearMin, c.hasMin = lo, true
	}
	if hi != 0 && (!c.hasMax || hi < c.yearMax) {
		c.yearMax, c.hasMax = hi, true
	}
}

func (c *compiled) match(b *book.Book) bool {
	if c.needle != "" && !c.matchSearch(b) {
		return false
	}
	if c.categories != nil {
		if _, ok := c.categories[b.Category]; !ok || b.Category == "" {
			return false
		}
	}
	if c.authors != nil {
		if _, ok := c.authors[b.Author]; !ok || b.Author == "" {
			return false
		}
	}
	if c.tags != nil && !slices.ContainsFunc(b.Tags, func(t string) bool {
		_, ok := c.tags[t]
		return ok
	}) {
		return false
	}
	if c.hasMin && b.Year < c.yearMin {
		return false
	}
	if c.hasMax && b.Year > c.yearMax {
		return false
	}
	return true
}

func (c *compiled) matchSearch(b *book.Book) bool {
	if strings.Contains(fold(b.Title), c.needle) ||
		strings.Contains(fold(b.Author), c.needle) ||
		strings.Contains(fold(b.Description), c.needle) {
		return true
	}
	if c.searchTags {
		for _, t := range b.Tags {
			if strings.Contains(fold(t), c.needle) {
				return true
			}
		}
	}
	return false
}

// Match reports whether b satisfies every active criterion of f.
func Match(b *book.Book, f Filters) bool {
	c := compile(f)
	return c.match(b)
}

// Apply returns the books matching f, preserving input order.
func Apply(books []book.Book, f Filters) []book.Book {
	out := make([]book.Book, 0, len(books))
	if f.IsZero() {
		return append(out, books...)
	}
	c := compile(f)
	for i := range books {
		if c.match(&books[i]) {
			out = append(out, books[i])
		}
	}
	return out
}

// parseYearBucket converts a bucket into an inclusive window. Unknown buckets
// report ok=false and constrain nothing.
func parseYearBucket(bucket string) (lo, hi int, ok bool) {
	bucket = strings.TrimSpace(strings.ToLower(bucket))
	switch bucket {
	case "", YearAll:
		return 0, 0, false
	case YearOld:
		return 0, OldBefore - 1, true
	}
	if from, to, found := strings.Cut(bucket, "-"); found {
		a, okA := parseYear(from)
		b, okB := parseYear(to)
		if !okA || !okB {
			return 0, 0, false
		}
		if a > b {
			a, b = b, a
		}
		return a, b, true
	}
	if y, ok := parseYear(bucket); ok {
		return y, y, true
	}
	return 0, 0, false
}

func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// fold case-folds s; a Caser is not safe for concurrent use, so one is made per call.
func fold(s string) string {
	if s == "" {
		return s
	}
	return cases.Fold().String(s)
}

// ParseList splits a comma separated value, trimming items and dropping
// blanks and repeats. Order of first occurrence is kept.
func ParseList(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
