package repo

import (
	"context"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
)

// InitCache loads the whole catalog into memory. ListBooks serves from the
// cache until the next write invalidates it.
func (r *Repo) InitCache(ctx context.Context) error {
	logger.Info("Initializing in-memory cache...")

	gen := r.cacheGeneration()
	books, err := r.loadBooks(ctx)
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	r.storeCache(books, gen)

	logger.Info("Loaded books", "count", len(books))
	return nil
}

func (r *Repo) cachedBooks() ([]book.Book, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.cacheOK {
		return nil, false
	}
	return cloneBooks(r.bookCache), true
}

func (r *Repo) cacheGeneration() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cacheGen
}

// storeCache keeps books only if no write invalidated the cache since gen
// was read.
func (r *Repo) storeCache(books []book.Book, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheGen != gen {
		return false
	}
	r.bookCache = books
	r.cacheOK = true
	return true
}

func (r *Repo) invalidateCache() {
	r.mu.Lock()
	r.bookCache = nil
	r.cacheOK = false
	r.cacheGen++
	r.mu.Unlock()
}

// cloneBooks copies books including their tag slices so callers may mutate the result.
func cloneBooks(src []book.Book) []book.Book {
	out := make([]book.Book, len(src))
	for i, b := range src {
		out[i] = b
		out[i].Tags = append([]string(nil), b.Tags...)
		if out[i].Tags == nil {
			out[i].Tags = []string{}
		}
	}
	return out
}
