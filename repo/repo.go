package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
)

var (
	// ErrNotFound is returned when a record is not found in the repository
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a uniqueness constraint is violated
	ErrAlreadyExists = errors.New("record already exists")
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repo struct {
	db   *sql.DB
	path string

	// now is swapped in tests to get deterministic ordering.
	now func() time.Time

	mu        sync.RWMutex
	bookCache []book.Book
	cacheOK   bool
	// cacheGen is bumped by every invalidation; a load started under an
	// older generation is not stored.
	cacheGen uint64
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repo) Close() error {
	if r.db != nil {
		logger.Info("Closing database connection", "path", r.path)
		return r.db.Close()
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) error {
	if r.db != nil {
		return r.db.PingContext(ctx)
	}
	return sql.ErrConnDone
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by older builds used RFC3339.
		if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
			return t2
		}
		logger.Warn("Unparseable timestamp in database", "value", s, "error", err)
	}
	return t
}

// isUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// rollback is deferred after Begin; it is a no-op once the tx committed.
func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn("Failed to rollback transaction", "error", err)
	}
}
