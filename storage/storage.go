// Package storage keeps uploaded PDF files in a single bucket directory.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/htol/techlib/logger"
	"github.com/spf13/afero"
)

// Bucket is the logical name of the PDF store.
const Bucket = "pdf-books"

// URLPrefix is the path under which stored files are served.
const URLPrefix = "/files/pdf/"

var (
	ErrNotReady = errors.New("storage bucket is not available")
	ErrTooLarge = errors.New("file too large")
	ErrNotPDF   = errors.New("only PDF files are accepted")
	ErrExists   = errors.New("file already exists")
	ErrNotFound = errors.New("file not found")
	ErrBadName  = errors.New("invalid file name")
)

var (
	pdfMagic     = []byte("%PDF-")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Stored describes a file written by SavePDF.
type Stored struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Status is reported on the admin storage endpoint.
type Status struct {
	Bucket     string `json:"bucket"`
	Ready      bool   `json:"ready"`
	Files      int    `json:"files"`
	TotalBytes int64  `json:"total_bytes"`
	MaxBytes   int64  `json:"max_upload_bytes"`
}

// Store is a PDF bucket rooted at dir on fs.
type Store struct {
	fs        afero.Fs
	dir       string
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

// New creates a store. When autoCreate is set the bucket directory is created
// if missing; otherwise a missing directory leaves the store not ready.
func New(fs afero.Fs, dir, publicURL string, maxBytes int64, autoCreate bool) *Store {
	s := &Store{
		fs:        fs,
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
	if autoCreate {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			logger.Error("Failed to create storage bucket", "path", dir, "error", err)
		}
	}
	if !s.Ready() {
		logger.Warn("Storage bucket is not available, uploads are disabled", "bucket", Bucket, "path", dir)
	}
	return s
}

// Ready reports whether the bucket directory exists.
func (s *Store) Ready() bool {
	fi, err := s.fs.Stat(s.dir)
	return err == nil && fi.IsDir()
}

// MaxBytes is the upload size limit.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// StoredName derives the bucket object name for an uploaded file name:
// "<unix ms>_<base name with whitespace runs replaced by _>".
func StoredName(original string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	base = whitespaceRe.ReplaceAllString(strings.TrimSpace(base), "_")
	return fmt.Sprintf("%d_%s", now.UnixMilli(), base)
}

// SavePDF validates and stores an uploaded PDF. size may be -1 when unknown;
// the limit is then enforced while copying.
func (s *Store) SavePDF(ctx context.Context, name string, size int64, r io.Reader) (*Stored, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, size, s.maxBytes)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, name)
	}

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return nil, fmt.Errorf("%w: missing PDF signature", ErrNotPDF)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := StoredName(name, s.now())
	full := filepath.Join(s.dir, stored)
	if _, err := s.fs.Stat(full); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, stored)
	}

	f, err := s.fs.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrExists, stored)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", stored, err)
	}

	src := io.MultiReader(bytes.NewReader(head[:n]), r)
	written, err := io.Copy(f, io.LimitReader(src, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		s.remove(full)
		return nil, fmt.Errorf("write %s: %w", stored, err)
	case written > s.maxBytes:
		s.remove(full)
		return nil, fmt.Errorf("%w: limit %d", ErrTooLarge, s.maxBytes)
	case closeErr != nil:
		s.remove(full)
		return nil, fmt.Errorf("close %s: %w", stored, closeErr)
	}

	logger.Info("Stored PDF", "name", stored, "size", written)
	return &Stored{Name: stored, URL: s.URL(stored), Size: written}, nil
}

func (s *Store) remove(full string) {
	if err := s.fs.Remove(full); err != nil {
		logger.Warn("Failed to remove partial upload", "path", full, "error", err)
	}
}

// URL returns the public URL of a stored object.
func (s *Store) URL(name string) string {
	return s.publicURL + URLPrefix + url.PathEscape(name)
}

// NameFromURL returns the object name when u points into this store.
func (s *Store) NameFromURL(u string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(u, s.publicURL+URLPrefix):
		rest = strings.TrimPrefix(u, s.publicURL+URLPrefix)
	case strings.HasPrefix(u, URLPrefix):
		rest = strings.TrimPrefix(u, URLPrefix)
	default:
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil || validName(name) != nil {
		return "", false
	}
	return name, true
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

// Open returns a stored file for reading.
func (s *Store) Open(name string) (afero.File, os.FileInfo, error) {
	if err := validName(name); err != nil {
		return nil, nil, err
	}
	full := filepath.Join(s.dir, name)
	fi, err := s.fs.Stat(full)
	if errors.Is(err, os.ErrNotExist) || (err == nil && fi.IsDir()) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	f, err := s.fs.Open(full)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, fi, nil
}

// Delete removes a stored file.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Status summarises the bucket contents.
func (s *Store) Status() (Status, error) {
	st := Status{Bucket: Bucket, Ready: s.Ready(), MaxBytes: s.maxBytes}
	if !st.Ready {
		return st, nil
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return st, fmt.Errorf("read bucket: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		st.Files++
		st.TotalBytes += e.Size()
	}
	return st, nil
}
