package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/validator"
)

const minYear = 1900

// Upload is a PDF file received with an admin form.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// ImportReport summarises an ImportBooks run.
type ImportReport struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Invalid  int      `json:"invalid"`
	Problems []string `json:"problems,omitempty"`
}

// buildBook trims and validates in and applies the catalog defaults.
func (s *Service) buildBook(in book.BookInput, requirePDF bool) (*book.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.PDFURL = strings.TrimSpace(in.PDFURL)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	in.Tags = filter.ParseList(in.Tags...)

	var verr *validator.ValidationError
	if err := s.validate.Struct(in); err != nil {
		if !errors.As(err, &verr) {
			return nil, err
		}
	} else {
		verr = &validator.ValidationError{Fields: map[string]string{}}
	}

	currentYear := s.now().Year()
	year := currentYear
	if in.Year != nil {
		year = *in.Year
		if _, bad := verr.Fields["year"]; !bad && (year < minYear || year > currentYear) {
			verr.Fields["year"] = "must be between " + strconv.Itoa(minYear) + " and " + strconv.Itoa(currentYear)
		}
	}
	pages := 0
	if in.Pages != nil {
		pages = *in.Pages
	}

	if in.PDFURL != "" && !validator.IsHTTPURL(in.PDFURL) {
		verr.Fields["pdf_url"] = "must be an http(s) URL"
	}
	if requirePDF && in.PDFURL == "" {
		verr.Fields["pdf"] = "a PDF file or URL is required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	category := in.Category
	if category == "" {
		category = book.DefaultCategory
	}

	return &book.Book{
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Year:        year,
		Pages:       pages,
		Category:    category,
		Tags:        in.Tags,
		PDFURL:      in.PDFURL,
		CoverURL:    in.CoverURL,
	}, nil
}

// CreateBook adds a book. Either up or in.PDFURL must provide the PDF; an
// upload takes precedence over the URL.
func (s *Service) CreateBook(ctx context.Context, in book.BookInput, up *Upload) (*book.Book, error) {
	if up != nil {
		in.PDFURL = ""
	}
	b, err := s.buildBook(in, up == nil)
	if err != nil {
		return nil, err
	}

	storedName, err := s.attach(ctx, b, up)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateBook(ctx, b); err != nil {
		s.discard(storedName)
		return nil, fmt.Errorf("create book: %w", err)
	}

	logger.Info("Book created", "id", b.ID, "title", b.Title, "uploaded", storedName != "")
	return b, nil
}

// UpdateBook replaces the editable fields of a book. Without an upload or
// pdf_url the current PDF is kept. A replaced stored file is removed.
func (s *Service) UpdateBook(ctx context.Context, bookID string, in book.BookInput, up *Upload) (*book.Book, error) {
	existing, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if up != nil {
		in.PDFURL = ""
	}
	b, err := s.buildBook(in, false)
	if err != nil {
		return nil, err
	}
	b.ID = existing.ID
	b.CreatedAt = existing.CreatedAt
	if up == nil && b.PDFURL == "" {
		b.PDFURL = existing.PDFURL
	}

	storedName, err := s.attach(ctx, b, up)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBook(ctx, b); err != nil {
		s.discard(storedName)
		return nil, fmt.Errorf("update book %s: %w", bookID, err)
	}

	if existing.PDFURL != b.PDFURL {
		if old, ok := s.store.NameFromURL(existing.PDFURL); ok {
			s.discard(old)
		}
	}

	logger.Info("Book updated", "id", b.ID, "title", b.Title)
	return b, nil
}

// DeleteBook removes a book and its stored PDF.
func (s *Service) DeleteBook(ctx context.Context, bookID string) error {
	existing, err := s.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete book %s: %w", bookID, err)
	}
	if name, ok := s.store.NameFromURL(existing.PDFURL); ok {
		s.discard(name)
	}
	logger.Info("Book deleted", "id", bookID, "title", existing.Title)
	return nil
}

// ImportBooks validates entries with the admin rules (PDF optional) and
// inserts the valid ones in one batch, skipping titles already present.
func (s *Service) ImportBooks(ctx context.Context, entries []book.BookInput) (ImportReport, error) {
	var report ImportReport
	valid := make([]*book.Book, 0, len(entries))
	for i, in := range entries {
		b, err := s.buildBook(in, false)
		if err != nil {
			report.Invalid++
			report.Problems = append(report.Problems, fmt.Sprintf("entry %d (%q): %v", i+1, strings.TrimSpace(in.Title), err))
			continue
		}
		valid = append(valid, b)
	}

	res, err := s.repo.BulkCreate(ctx, valid)
	if err != nil {
		return report, fmt.Errorf("import books: %w", err)
	}
	report.Inserted = res.Inserted
	report.Skipped = res.Skipped
	for _, title := range res.Titles {
		report.Problems = append(report.Problems, fmt.Sprintf("%q: %v", title, repo.ErrAlreadyExists))
	}
	return report, nil
}

// attach stores up and points b at it, returning the stored object name.
func (s *Service) attach(ctx context.Context, b *book.Book, up *Upload) (string, error) {
	if up == nil {
		return "", nil
	}
	stored, err := s.store.SavePDF(ctx, up.Name, up.Size, up.Reader)
	if err != nil {
		return "", fmt.Errorf("upload pdf: %w", err)
	}
	b.PDFURL = stored.URL
	return stored.Name, nil
}

// discard removes a stored file, logging failures.
func (s *Service) discard(name string) {
	if name == "" {
		return
	}
	if err := s.store.Delete(name); err != nil {
		logger.Warn("Failed to remove stored PDF", "name", name, "error", err)
	}
}
