package filter

import (
	"slices"

	"github.com/htol/techlib/book"
)

// BuildFacets collects the sorted distinct filter values present in books.
func BuildFacets(books []book.Book) book.Facets {
	categories := make(map[string]struct{})
	authors := make(map[string]struct{})
	tags := make(map[string]struct{})
	var facets book.Facets

	for i := range books {
		b := &books[i]
		categories[categoryOf(b)] = struct{}{}
		if b.Author != "" {
			authors[b.Author] = struct{}{}
		}
		for _, t := range b.Tags {
			tags[t] = struct{}{}
		}
		if b.Year > 0 {
			if facets.MinYear == 0 || b.Year < facets.MinYear {
				facets.MinYear = b.Year
			}
			if b.Year > facets.MaxYear {
				facets.MaxYear = b.Year
			}
		}
	}

	facets.Categories = sortedKeys(categories)
	facets.Authors = sortedKeys(authors)
	facets.Tags = sortedKeys(tags)
	return facets
}

// ComputeStats counts books, distinct authors, distinct categories and books with a PDF.
func ComputeStats(books []book.Book) book.Stats {
	authors := make(map[string]struct{})
	categories := make(map[string]struct{})
	stats := book.Stats{Total: len(books)}

	for i := range books {
		b := &books[i]
		authors[b.Author] = struct{}{}
		categories[categoryOf(b)] = struct{}{}
		if b.HasPDF() {
			stats.WithPDF++
		}
	}
	stats.Authors = len(authors)
	stats.Categories = len(categories)
	return stats
}

func categoryOf(b *book.Book) string {
	if b.Category == "" {
		return book.DefaultCategory
	}
	return b.Category
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
