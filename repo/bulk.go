package repo

import (
	"context"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
)

// BulkResult reports what BulkCreate did with each record.
type BulkResult struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Titles   []string `json:"skipped_titles,omitempty"`
}

// SetBulkImportMode configures the database for bulk import operations
// When enabled: disables WAL auto-checkpoint, increases cache to 256MB
// When disabled: restores normal checkpoint behavior and cache size
func (r *Repo) SetBulkImportMode(enable bool) error {
	if enable {
		// Value of 0 disables auto-checkpoint entirely
		if _, err := r.db.Exec("PRAGMA wal_autocheckpoint = 0"); err != nil {
			return fmt.Errorf("disable wal_autocheckpoint: %w", err)
		}
		if _, err := r.db.Exec("PRAGMA cache_size = -256000"); err != nil {
			return fmt.Errorf("set cache_size: %w", err)
		}
		logger.Info("Bulk import mode enabled: WAL auto-checkpoint disabled, cache 256MB")
		return nil
	}

	if _, err := r.db.Exec("PRAGMA wal_autocheckpoint = 1000"); err != nil {
		return fmt.Errorf("enable wal_autocheckpoint: %w", err)
	}
	if _, err := r.db.Exec("PRAGMA cache_size = -64000"); err != nil {
		return fmt.Errorf("restore cache_size: %w", err)
	}
	logger.Info("Bulk import mode disabled: WAL auto-checkpoint enabled, cache 64MB")
	return nil
}

// CheckpointWAL writes all pending WAL pages into the database file and truncates the WAL.
func (r *Repo) CheckpointWAL() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal_checkpoint: %w", err)
	}
	logger.Info("WAL checkpoint completed")
	return nil
}

// BulkCreate inserts records in a single transaction. Records whose title is
// already in the catalog, or earlier in the same batch, are skipped.
func (r *Repo) BulkCreate(ctx context.Context, records []*book.Book) (BulkResult, error) {
	var result BulkResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, b := range records {
		if err := ctx.Err(); err != nil {
			return BulkResult{}, err
		}
		r.prepareNewBook(b)
		inserted, err := insertBook(ctx, tx, b)
		if err != nil {
			return BulkResult{}, fmt.Errorf("bulk insert %q: %w", b.Title, err)
		}
		if inserted {
			result.Inserted++
			continue
		}
		result.Skipped++
		result.Titles = append(result.Titles, b.Title)
	}

	if err := tx.Commit(); err != nil {
		return BulkResult{}, fmt.Errorf("commit: %w", err)
	}
	if result.Inserted > 0 {
		r.invalidateCache()
	}
	logger.Debug("Bulk insert finished", "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}
