package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/id"
)

const bookColumns = `b.book_id, b.title, b.author, b.description, b.year, b.pages,
	b.category, b.pdf_url, b.cover_url, b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (book.Book, error) {
	var b book.Book
	var created, updated string
	err := s.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Year, &b.Pages,
		&b.Category, &b.PDFURL, &b.CoverURL, &created, &updated)
	if err != nil {
		return b, err
	}
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	b.Tags = []string{}
	return b, nil
}

// ListBooks returns the whole catalog, newest first.
func (r *Repo) ListBooks(ctx context.Context) ([]book.Book, error) {
	if books, ok := r.cachedBooks(); ok {
		return books, nil
	}

	gen := r.cacheGeneration()
	books, err := r.loadBooks(ctx)
	if err != nil {
		return nil, err
	}
	r.storeCache(books, gen)

	return cloneBooks(books), nil
}

// loadBooks reads books and tags from one snapshot.
func (r *Repo) loadBooks(ctx context.Context) ([]book.Book, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer rollback(tx)

	rows, err := tx.QueryContext(ctx, `SELECT `+bookColumns+` FROM books b
		ORDER BY b.created_at DESC, b.book_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]book.Book, 0)
	index := make(map[string]int)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		index[b.ID] = len(books)
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	tagRows, err := tx.QueryContext(ctx, `SELECT book_id, tag FROM book_tags ORDER BY book_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var bookID, tag string
		if err := tagRows.Scan(&bookID, &tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := index[bookID]; ok {
			books[i].Tags = append(books[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return books, nil
}

// GetBook returns a single book by id.
func (r *Repo) GetBook(ctx context.Context, bookID string) (*book.Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.book_id = ?`, bookID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}

	tags, err := r.bookTags(ctx, bookID)
	if err != nil {
		return nil, err
	}
	b.Tags = tags
	return &b, nil
}

func (r *Repo) bookTags(ctx context.Context, bookID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag FROM book_tags WHERE book_id = ? ORDER BY position`, bookID)
	if err != nil {
		return nil, fmt.Errorf("get tags for %s: %w", bookID, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// CreateBook inserts b, assigning an id and timestamps when they are unset.
// A title that already exists (case-insensitive) yields ErrAlreadyExists.
func (r *Repo) CreateBook(ctx context.Context, b *book.Book) error {
	r.prepareNewBook(b)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	inserted, err := insertBook(ctx, tx, b)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("book %q: %w", b.Title, ErrAlreadyExists)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.invalidateCache()
	return nil
}

// UpdateBook overwrites every stored field of b except CreatedAt.
func (r *Repo) UpdateBook(ctx context.Context, b *book.Book) error {
	b.UpdatedAt = r.now().UTC()
	if b.Tags == nil {
		b.Tags = []string{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `UPDATE books SET title = ?, author = ?, description = ?,
		year = ?, pages = ?, category = ?, pdf_url = ?, cover_url = ?, updated_at = ?
		WHERE book_id = ?`,
		b.Title, b.Author, b.Description, b.Year, b.Pages, b.Category, b.PDFURL, b.CoverURL,
		formatTime(b.UpdatedAt), b.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("book %q: %w", b.Title, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("update book %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if err := insertTags(ctx, tx, b.ID, b.Tags); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM books_fts WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clear fts row: %w", err)
	}
	if err := insertFTS(ctx, tx, b); err != nil {
		return err
	}

	var created string
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM books WHERE book_id = ?`, b.ID).Scan(&created); err != nil {
		return fmt.Errorf("reload created_at: %w", err)
	}
	b.CreatedAt = parseTime(created)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.invalidateCache()
	return nil
}

// DeleteBook removes a book. Tags and the search row go with it; favorites stay.
func (r *Repo) DeleteBook(ctx context.Context, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", bookID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.invalidateCache()
	return nil
}

func (r *Repo) prepareNewBook(b *book.Book) {
	if b.ID == "" {
		b.ID = id.MustGenerate(id.PrefixBook)
	}
	now := r.now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
}

// insertBook reports false without error when the title is already taken.
func insertBook(ctx context.Context, q execer, b *book.Book) (bool, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO books(book_id, title, author, description, year, pages,
		category, pdf_url, cover_url, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		b.ID, b.Title, b.Author, b.Description, b.Year, b.Pages, b.Category, b.PDFURL, b.CoverURL,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("insert book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert book: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := insertTags(ctx, q, b.ID, b.Tags); err != nil {
		return false, err
	}
	if err := insertFTS(ctx, q, b); err != nil {
		return false, err
	}
	return true, nil
}

func insertTags(ctx context.Context, q execer, bookID string, tags []string) error {
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO book_tags(book_id, tag, position) VALUES(?, ?, ?)`,
			bookID, tag, i); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}
