package service

import (
	"context"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/id"
	"github.com/htol/techlib/validator"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// ListBooks returns one page of the catalog narrowed by f, newest first.
func (s *Service) ListBooks(ctx context.Context, f filter.Filters, page, perPage int) (filter.Page, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return filter.Page{}, fmt.Errorf("list books: %w", err)
	}
	return filter.Paginate(filter.Apply(books, f), page, perPage), nil
}

// GetBook retrieves a single book by ID
func (s *Service) GetBook(ctx context.Context, bookID string) (*book.Book, error) {
	if err := validator.ValidateID(bookID, id.PrefixBook); err != nil {
		return nil, err
	}
	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}
	return b, nil
}

// SearchBooks performs ranked full-text search. An empty query yields no results.
func (s *Service) SearchBooks(ctx context.Context, query string, limit, offset int) ([]book.SearchResult, error) {
	if validator.ValidateNonEmpty(query) != nil {
		return []book.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	results, err := s.repo.SearchBooks(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return results, nil
}

// SearchPage returns one page of search results and whether another page
// follows. perPage is capped like the SearchBooks limit.
func (s *Service) SearchPage(ctx context.Context, query string, page, perPage int) ([]book.SearchResult, bool, error) {
	if validator.ValidateNonEmpty(query) != nil {
		return []book.SearchResult{}, false, nil
	}
	if perPage <= 0 {
		perPage = defaultSearchLimit
	}
	perPage = min(perPage, maxSearchLimit)
	page = max(page, 1)

	// one extra row tells whether a next page exists
	results, err := s.repo.SearchBooks(ctx, query, perPage+1, (page-1)*perPage)
	if err != nil {
		return nil, false, fmt.Errorf("search books: %w", err)
	}
	if len(results) > perPage {
		return results[:perPage], true, nil
	}
	return results, false, nil
}

// Facets lists the distinct categories, authors, tags and year range of the catalog.
func (s *Service) Facets(ctx context.Context) (book.Facets, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return book.Facets{}, fmt.Errorf("facets: %w", err)
	}
	return filter.BuildFacets(books), nil
}

// Stats summarises the catalog for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (book.Stats, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return book.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return filter.ComputeStats(books), nil
}
