package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/htol/techlib/auth"
	"github.com/htol/techlib/book"
	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/storage"
	"github.com/htol/techlib/validator"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePDF = "%PDF-1.4\n%%EOF\n"

type fixture struct {
	svc   *Service
	repo  *mockRepository
	fs    afero.Fs
	store *storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := storage.New(fs, "/bucket", "http://lib.test", 1<<20, true)
	key, err := auth.LoadOrGenerateKey(fs, "/keys")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key)
	require.NoError(t, err)

	r := newMockRepository()
	svc := New(r, store, tokens, Options{SessionTTL: time.Hour, AdminEmails: []string{" Boss@Example.com "}})
	return &fixture{svc: svc, repo: r, fs: fs, store: store}
}

func intPtr(i int) *int { return &i }

func validInput(title string) book.BookInput {
	return book.BookInput{
		Title:  title,
		Author: "Rob Pike",
		Year:   intPtr(2020),
		PDFURL: "https://example.com/" + strings.ReplaceAll(title, " ", "-") + ".pdf",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *validator.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ping(context.Background()))

	f.repo.pingError = errors.New("down")
	assert.Error(t, f.svc.Ping(context.Background()))
}

func TestCreateBookDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := book.BookInput{
		Title:  "  Go in Action ",
		Author: " Kennedy ",
		Tags:   []string{"go, beginner", " go ", ""},
		PDFURL: "https://example.com/go.pdf",
	}
	b, err := f.svc.CreateBook(ctx, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Go in Action", b.Title)
	assert.Equal(t, "Kennedy", b.Author)
	assert.Equal(t, book.DefaultCategory, b.Category)
	assert.Equal(t, time.Now().Year(), b.Year)
	assert.Equal(t, 0, b.Pages)
	assert.Equal(t, []string{"go", "beginner"}, b.Tags)
	assert.NotEmpty(t, b.ID)
}

func TestCreateBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBook(ctx, book.BookInput{Title: " ", Author: ""}, nil)
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "author")
	assert.Contains(t, fields, "pdf")

	in := validInput("Future")
	in.Year = intPtr(time.Now().Year() + 1)
	_, err = f.svc.CreateBook(ctx, in, nil)
	assert.Contains(t, fieldErrors(t, err), "year")

	in = validInput("Ancient")
	in.Year = intPtr(1500)
	_, err = f.svc.CreateBook(ctx, in, nil)
	assert.Contains(t, fieldErrors(t, err), "year")

	in = validInput("FTP")
	in.PDFURL = "ftp://example.com/a.pdf"
	_, err = f.svc.CreateBook(ctx, in, nil)
	assert.Contains(t, fieldErrors(t, err), "pdf_url")
}

func TestCreateBookDuplicateTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBook(ctx, validInput("Unique"), nil)
	require.NoError(t, err)

	up := &Upload{Name: "dup.pdf", Size: int64(len(samplePDF)), Reader: strings.NewReader(samplePDF)}
	_, err = f.svc.CreateBook(ctx, validInput("unique"), up)
	assert.ErrorIs(t, err, repo.ErrAlreadyExists)

	st, err := f.svc.StorageStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Files, "uploaded file is removed when the insert fails")
}

func TestCreateBookWithUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput("Uploaded")
	up := &Upload{Name: "Uploaded Book.pdf", Size: int64(len(samplePDF)), Reader: strings.NewReader(samplePDF)}
	b, err := f.svc.CreateBook(ctx, in, up)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.PDFURL, "http://lib.test/files/pdf/"))
	assert.True(t, strings.HasSuffix(b.PDFURL, "_Uploaded_Book.pdf"))

	d, err := f.svc.DownloadPDF(ctx, b.ID)
	require.NoError(t, err)
	defer d.Close()
	assert.Empty(t, d.RedirectURL)
	assert.NotNil(t, d.File)
	assert.Equal(t, "Rob Pike - Uploaded.pdf", d.Filename)
}

func TestCreateBookRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	up := &Upload{Name: "notes.txt", Size: 5, Reader: strings.NewReader("hello")}
	in := validInput("Notes")
	in.PDFURL = ""
	_, err := f.svc.CreateBook(context.Background(), in, up)
	assert.ErrorIs(t, err, storage.ErrNotPDF)
}

func TestUpdateBookReplacesStoredFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := &Upload{Name: "v1.pdf", Size: -1, Reader: strings.NewReader(samplePDF)}
	b, err := f.svc.CreateBook(ctx, validInput("Versioned"), first)
	require.NoError(t, err)
	oldName, ok := f.store.NameFromURL(b.PDFURL)
	require.True(t, ok)

	// no new PDF: keep the current one
	in := validInput("Versioned")
	in.PDFURL = ""
	in.Description = "updated"
	b2, err := f.svc.UpdateBook(ctx, b.ID, in, nil)
	require.NoError(t, err)
	assert.Equal(t, b.PDFURL, b2.PDFURL)
	assert.Equal(t, "updated", b2.Description)

	// external URL replaces the stored file
	in.PDFURL = "https://mirror.example/versioned.pdf"
	b3, err := f.svc.UpdateBook(ctx, b.ID, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/versioned.pdf", b3.PDFURL)

	_, _, err = f.store.Open(oldName)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	d, err := f.svc.DownloadPDF(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example/versioned.pdf", d.RedirectURL)

	_, err = f.svc.UpdateBook(ctx, "book-missing", in, nil)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteBookRemovesFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	up := &Upload{Name: "gone.pdf", Size: -1, Reader: strings.NewReader(samplePDF)}
	b, err := f.svc.CreateBook(ctx, validInput("Gone"), up)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteBook(ctx, b.ID))
	st, err := f.svc.StorageStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Files)

	assert.ErrorIs(t, f.svc.DeleteBook(ctx, b.ID), repo.ErrNotFound)
}

func TestListBooksFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, title := range []string{"Alpha", "Beta", "Gamma"} {
		in := validInput(title)
		in.Category = []string{"design", "programming", "design"}[i]
		_, err := f.svc.CreateBook(ctx, in, nil)
		require.NoError(t, err)
	}

	page, err := f.svc.ListBooks(ctx, filter.Filters{Categories: []string{"design"}}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Gamma", page.Items[0].Title)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Categories)

	facets, err := f.svc.Facets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"design", "programming"}, facets.Categories)

	f.repo.listError = errors.New("boom")
	_, err = f.svc.ListBooks(ctx, filter.Filters{}, 1, 12)
	assert.Error(t, err)
}

func TestSearchBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SearchBooks(ctx, "  ", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = f.svc.CreateBook(ctx, validInput("Searchable"), nil)
	require.NoError(t, err)
	res, err = f.svc.SearchBooks(ctx, "search", 0, -3)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearchPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := range 101 {
		_, err := f.svc.CreateBook(ctx, validInput(fmt.Sprintf("Golang Recipes %d", i)), nil)
		require.NoError(t, err)
	}

	res, more, err := f.svc.SearchPage(ctx, "golang", 1, 100)
	require.NoError(t, err)
	assert.Len(t, res, 100)
	assert.True(t, more, "a full page at the maximum size still reports the next page")

	res, more, err = f.svc.SearchPage(ctx, "golang", 2, 100)
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.False(t, more)

	res, more, err = f.svc.SearchPage(ctx, "golang", 1, 500)
	require.NoError(t, err)
	assert.Len(t, res, 100)
	assert.True(t, more)

	res, more, err = f.svc.SearchPage(ctx, " ", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.False(t, more)
}

func TestGetBookInvalidID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetBook(context.Background(), "42")
	assert.ErrorIs(t, err, validator.ErrInvalidID)
}

func TestDownloadWithoutPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := &book.Book{Title: "Bare", Author: "X"}
	require.NoError(t, f.repo.CreateBook(ctx, b))

	_, err := f.svc.DownloadPDF(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNoPDF)
}

func TestImportBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBook(ctx, validInput("Existing"), nil)
	require.NoError(t, err)

	report, err := f.svc.ImportBooks(ctx, []book.BookInput{
		{Title: "Imported", Author: "A"},
		{Title: "existing", Author: "B"},
		{Title: "", Author: "C"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Invalid)
	assert.Len(t, report.Problems, 2)
}

func TestFormatBookFilename(t *testing.T) {
	assert.Equal(t, "Pike - Go_ The Language.pdf", FormatBookFilename(&book.Book{Title: "Go: The Language", Author: "Pike"}))
	assert.Equal(t, "Untitled.pdf", FormatBookFilename(&book.Book{Title: "Untitled", Author: "Unknown"}))
	long := FormatBookFilename(&book.Book{Title: strings.Repeat("я", 150)})
	assert.LessOrEqual(t, len(long), 204)
	assert.True(t, strings.HasSuffix(long, "я.pdf"))
}
