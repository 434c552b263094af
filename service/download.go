package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/htol/techlib/book"
	"github.com/spf13/afero"
)

// Download is either a stored file to stream or an external URL to redirect to.
type Download struct {
	Filename    string
	File        afero.File
	Info        os.FileInfo
	RedirectURL string
}

// Close releases the stored file, if any.
func (d *Download) Close() error {
	if d.File == nil {
		return nil
	}
	return d.File.Close()
}

// DownloadPDF resolves the PDF of a book.
func (s *Service) DownloadPDF(ctx context.Context, bookID string) (*Download, error) {
	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !b.HasPDF() {
		return nil, ErrNoPDF
	}

	name, ok := s.store.NameFromURL(b.PDFURL)
	if !ok {
		return &Download{Filename: FormatBookFilename(b), RedirectURL: b.PDFURL}, nil
	}

	f, fi, err := s.store.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open pdf of %s: %w", bookID, err)
	}
	return &Download{Filename: FormatBookFilename(b), File: f, Info: fi}, nil
}

// OpenStored opens a file of the PDF bucket by its object name.
func (s *Service) OpenStored(name string) (*Download, error) {
	f, fi, err := s.store.Open(name)
	if err != nil {
		return nil, err
	}
	return &Download{Filename: name, File: f, Info: fi}, nil
}

var unknownAuthors = []string{"unknown", "anonymous", "anon", "неизвестный", "автор неизвестен"}

// FormatBookFilename builds "Author - Title.pdf", dropping unknown authors.
func FormatBookFilename(b *book.Book) string {
	title := sanitizeFilename(b.Title)
	if title == "" {
		title = b.ID
	}

	author := strings.TrimSpace(b.Author)
	lower := strings.ToLower(author)
	for _, u := range unknownAuthors {
		if lower == u {
			author = ""
			break
		}
	}

	filename := title
	if author != "" {
		filename = sanitizeFilename(author) + " - " + title
	}
	if len(filename) > 200 {
		filename = truncateUTF8(filename, 200)
	}
	return filename + ".pdf"
}

var unsafeFilename = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(s string) string {
	return strings.TrimSpace(unsafeFilename.Replace(s))
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
