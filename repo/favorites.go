package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/id"
	"github.com/htol/techlib/logger"
)

const favoriteColumns = `f.favorite_id, f.user_id, f.book_id, f.book_title, f.book_author,
	f.book_category, f.book_year, f.book_pages, f.book_description, f.book_tags, f.created_at,
	b.book_id IS NOT NULL`

// AddFavorite stores f. When the user already has the book in favorites the
// existing row is returned unchanged.
func (r *Repo) AddFavorite(ctx context.Context, f *book.Favorite) (*book.Favorite, error) {
	if f.ID == "" {
		f.ID = id.MustGenerate(id.PrefixFavorite)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now().UTC()
	}
	tags := f.BookTags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO favorites(favorite_id, user_id, book_id, book_title,
		book_author, book_category, book_year, book_pages, book_description, book_tags, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book_id) DO NOTHING`,
		f.ID, f.UserID, f.BookID, f.BookTitle, f.BookAuthor, f.BookCategory, f.BookYear,
		f.BookPages, f.BookDescription, string(tagsJSON), formatTime(f.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert favorite: %w", err)
	}

	return r.GetFavorite(ctx, f.UserID, f.BookID)
}

func scanFavorite(s rowScanner) (book.Favorite, error) {
	var f book.Favorite
	var tagsJSON, created string
	err := s.Scan(&f.ID, &f.UserID, &f.BookID, &f.BookTitle, &f.BookAuthor, &f.BookCategory,
		&f.BookYear, &f.BookPages, &f.BookDescription, &tagsJSON, &created, &f.Available)
	if err != nil {
		return f, err
	}
	f.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(tagsJSON), &f.BookTags); err != nil {
		logger.Warn("Corrupt favorite tags", "favorite_id", f.ID, "error", err)
	}
	if f.BookTags == nil {
		f.BookTags = []string{}
	}
	return f, nil
}

func (r *Repo) GetFavorite(ctx context.Context, userID, bookID string) (*book.Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+favoriteColumns+`
		FROM favorites f LEFT JOIN books b ON b.book_id = f.book_id
		WHERE f.user_id = ? AND f.book_id = ?`, userID, bookID)
	f, err := scanFavorite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get favorite: %w", err)
	}
	return &f, nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, userID, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND book_id = ?`, userID, bookID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFavorites returns the user's favorites, newest first.
func (r *Repo) ListFavorites(ctx context.Context, userID string) ([]book.Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+favoriteColumns+`
		FROM favorites f LEFT JOIN books b ON b.book_id = f.book_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.favorite_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := make([]book.Favorite, 0)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return favorites, nil
}
