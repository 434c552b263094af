// Package importer loads catalog documents (YAML or JSON lists of books)
// into the library.
package importer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/service"
	"github.com/spf13/afero"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoCatalog []byte

var exts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// ErrNoFiles is returned when the given paths hold no catalog documents.
var ErrNoFiles = errors.New("no catalog files found")

// Sink receives the parsed entries. *service.Service implements it.
type Sink interface {
	ImportBooks(ctx context.Context, entries []book.BookInput) (service.ImportReport, error)
}

// Document is the mapping form of a catalog file. A bare list of books is
// accepted as well.
type Document struct {
	Books []book.BookInput `yaml:"books" json:"books"`
}

// Report summarises an import run.
type Report struct {
	Files int `json:"files"`
	service.ImportReport
}

type Options struct {
	// Encoding is a WHATWG label such as "windows-1251". Empty means UTF-8.
	Encoding string
	// Workers bounds concurrent parsing. Zero uses GOMAXPROCS.
	Workers int
}

type Importer struct {
	fs   afero.Fs
	sink Sink
	opts Options
}

func New(fs afero.Fs, sink Sink, opts Options) *Importer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Importer{fs: fs, sink: sink, opts: opts}
}

// Collect expands paths into catalog files. Directories are walked
// recursively; files are taken as given whatever their extension.
func (im *Importer) Collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := im.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		err = afero.Walk(im.fs, p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && exts[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	sort.Strings(files)
	return files, nil
}

// Run parses every catalog file under paths concurrently and imports the
// entries in file order.
func (im *Importer) Run(ctx context.Context, paths []string) (Report, error) {
	files, err := im.Collect(paths)
	if err != nil {
		return Report{}, err
	}

	parsed := make([][]book.BookInput, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := im.ParseFile(file)
			if err != nil {
				return err
			}
			logger.Debug("Parsed catalog file", "file", file, "entries", len(entries))
			parsed[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var all []book.BookInput
	for _, entries := range parsed {
		all = append(all, entries...)
	}
	return im.importEntries(ctx, len(files), all)
}

// ImportDemo imports the embedded demo catalog.
func (im *Importer) ImportDemo(ctx context.Context) (Report, error) {
	entries, err := Parse(bytes.NewReader(demoCatalog), ".yaml", "")
	if err != nil {
		return Report{}, fmt.Errorf("demo catalog: %w", err)
	}
	return im.importEntries(ctx, 1, entries)
}

func (im *Importer) importEntries(ctx context.Context, files int, entries []book.BookInput) (Report, error) {
	res, err := im.sink.ImportBooks(ctx, entries)
	if err != nil {
		return Report{}, err
	}
	for _, p := range res.Problems {
		logger.Warn("Import entry rejected", "problem", p)
	}
	logger.Info("Import finished",
		"files", files,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"invalid", res.Invalid,
	)
	return Report{Files: files, ImportReport: res}, nil
}

// ParseFile reads one catalog file with the importer's encoding.
func (im *Importer) ParseFile(path string) ([]book.BookInput, error) {
	f, err := im.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	entries, err := Parse(f, filepath.Ext(path), im.opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes a catalog document. ext selects JSON (".json") or YAML
// (anything else); encoding is an optional charset label.
func Parse(r io.Reader, ext, encoding string) ([]book.BookInput, error) {
	if encoding != "" {
		cr, err := charset.NewReaderLabel(encoding, r)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", encoding, err)
		}
		r = cr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if strings.EqualFold(ext, ".json") {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseJSON(data []byte) ([]book.BookInput, error) {
	trimmed := bytes.TrimSpace(data)
	if trimmed[0] == '[' {
		var entries []book.BookInput
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Books, nil
}

func parseYAML(data []byte) ([]book.BookInput, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []book.BookInput
		if err := node.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	case yaml.MappingNode:
		var doc Document
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Books, nil
	}
	return nil, fmt.Errorf("line %d: expected a list of books or a mapping with \"books\"", node.Line)
}
