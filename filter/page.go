package filter

import "github.com/htol/techlib/book"

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
	windowSize     = 5
)

// Page is one page of a filtered listing.
type Page struct {
	Items      []book.Book `json:"books"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
	// Window holds the page numbers a pager should show.
	Window []int `json:"window"`
}

// Paginate slices books into the requested page. perPage outside
// [1, MaxPerPage] falls back to the default or the maximum, and page is
// clamped into range.
func Paginate(books []book.Book, page, perPage int) Page {
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}

	total := len(books)
	totalPages := (total + perPage - 1) / perPage

	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	items := make([]book.Book, 0, max(end-start, 0))
	if start < total {
		items = append(items, books[start:end]...)
	}

	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		Window:     PageWindow(page, totalPages),
	}
}

// PageWindow returns up to five page numbers around current: the first five
// near the start, the last five near the end, otherwise current±2.
func PageWindow(current, totalPages int) []int {
	n := min(windowSize, totalPages)
	window := make([]int, 0, n)
	for i := range n {
		var p int
		switch {
		case totalPages <= windowSize, current <= 3:
			p = i + 1
		case current >= totalPages-2:
			p = totalPages - windowSize + 1 + i
		default:
			p = current - 2 + i
		}
		window = append(window, p)
	}
	return window
}
