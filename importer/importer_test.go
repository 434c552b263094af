package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/service"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

type recordingSink struct {
	entries []book.BookInput
	err     error
}

func (s *recordingSink) ImportBooks(ctx context.Context, entries []book.BookInput) (service.ImportReport, error) {
	if s.err != nil {
		return service.ImportReport{}, s.err
	}
	s.entries = append(s.entries, entries...)
	return service.ImportReport{Inserted: len(entries)}, nil
}

func titles(entries []book.BookInput) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

const yamlList = `
- title: Structure and Interpretation of Computer Programs
  author: Abelson
  year: 1996
  tags: [lisp, classic]
- title: Clean Architecture
  author: Martin
`

const jsonDoc = `{"books": [
	{"title": "The Pragmatic Programmer", "author": "Hunt", "pages": 352}
]}`

func TestParseFormats(t *testing.T) {
	entries, err := Parse(strings.NewReader(yamlList), ".yml", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Year)
	assert.Equal(t, 1996, *entries[0].Year)
	assert.Equal(t, []string{"lisp", "classic"}, entries[0].Tags)
	assert.Nil(t, entries[1].Year)

	entries, err = Parse(strings.NewReader(jsonDoc), ".json", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 352, *entries[0].Pages)

	entries, err = Parse(strings.NewReader(`[{"title":"A","author":"B"}]`), ".JSON", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(entries))

	entries, err = Parse(strings.NewReader("  \n"), ".yaml", "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Parse(strings.NewReader("just a string"), ".yaml", "")
	assert.Error(t, err)
}

func TestParseEncoding(t *testing.T) {
	doc := "- title: Искусство программирования\n  author: Кнут\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(doc)
	require.NoError(t, err)

	entries, err := Parse(strings.NewReader(encoded), ".yaml", "windows-1251")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Искусство программирования", entries[0].Title)
	assert.Equal(t, "Кнут", entries[0].Author)

	_, err = Parse(strings.NewReader(doc), ".yaml", "klingon-8")
	assert.Error(t, err)
}

func TestParseStripsBOM(t *testing.T) {
	entries, err := Parse(strings.NewReader("\ufeff"+jsonDoc), ".json", "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func newFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/a.yaml", []byte(yamlList), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/lib/nested/b.json", []byte(jsonDoc), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/lib/readme.txt", []byte("ignored"), 0o644))
	return fs
}

func TestCollect(t *testing.T) {
	im := New(newFS(t), &recordingSink{}, Options{})

	files, err := im.Collect([]string{"/lib"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/lib/a.yaml", "/lib/nested/b.json"}, files)

	files, err = im.Collect([]string{"/lib/readme.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/lib/readme.txt"}, files, "explicit files are taken as given")

	_, err = im.Collect([]string{"/missing"})
	assert.Error(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0o755))
	_, err = New(fs, &recordingSink{}, Options{}).Collect([]string{"/empty"})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRun(t *testing.T) {
	sink := &recordingSink{}
	im := New(newFS(t), sink, Options{Workers: 2})

	report, err := im.Run(context.Background(), []string{"/lib"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, []string{
		"Structure and Interpretation of Computer Programs",
		"Clean Architecture",
		"The Pragmatic Programmer",
	}, titles(sink.entries), "entries keep file order")
}

func TestRunParseError(t *testing.T) {
	fs := newFS(t)
	require.NoError(t, afero.WriteFile(fs, "/lib/broken.json", []byte("{not json"), 0o644))
	sink := &recordingSink{}

	_, err := New(fs, sink, Options{}).Run(context.Background(), []string{"/lib"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
	assert.Empty(t, sink.entries, "nothing is imported when a file fails")
}

func TestRunSinkError(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(newFS(t), &recordingSink{err: boom}, Options{}).Run(context.Background(), []string{"/lib"})
	assert.ErrorIs(t, err, boom)
}

func TestImportDemo(t *testing.T) {
	sink := &recordingSink{}
	report, err := New(afero.NewMemMapFs(), sink, Options{}).ImportDemo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, []string{"Современный JavaScript 2025", "PostgreSQL для разработчиков"}, titles(sink.entries))
	assert.Equal(t, "Базы данных", sink.entries[1].Category)
}
