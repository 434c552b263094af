package repo

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	// FTS5 operators and punctuation that have no meaning inside a user query.
	ftsStrip = strings.NewReplacer(
		"\"", " ", "-", " ", "'", "", "(", "", ")", "", "{", "", "}", "",
		"*", "", ":", " ", "^", "", "+", " ",
	)
)

func escapeFTS5Query(query string) string {
	escaped := ftsStrip.Replace(query)
	escaped = spaceRe.ReplaceAllString(escaped, " ")
	return strings.TrimSpace(escaped)
}

// matchQuery turns free text into an FTS5 expression where every word is a
// quoted prefix term: `go prog` -> `"go"* "prog"*`.
func matchQuery(query string) string {
	escaped := escapeFTS5Query(query)
	if escaped == "" {
		return ""
	}
	words := strings.Split(escaped, " ")
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

// SearchBooks performs full-text search across title, author, description,
// tags and category. Results are ordered by FTS5 rank.
func (r *Repo) SearchBooks(ctx context.Context, query string, limit, offset int) ([]book.SearchResult, error) {
	ftsQuery := matchQuery(query)
	if ftsQuery == "" {
		return []book.SearchResult{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookColumns+`, fts.rank
		FROM books_fts fts
		JOIN books b ON fts.book_id = b.book_id
		WHERE books_fts MATCH ?
		ORDER BY fts.rank, b.title COLLATE NOCASE
		LIMIT ? OFFSET ?`, ftsQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	results := make([]book.SearchResult, 0)
	index := make(map[string]int)
	for rows.Next() {
		var res book.SearchResult
		var created, updated string
		err := rows.Scan(&res.ID, &res.Title, &res.Author, &res.Description, &res.Year, &res.Pages,
			&res.Category, &res.PDFURL, &res.CoverURL, &created, &updated, &res.Rank)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		res.CreatedAt = parseTime(created)
		res.UpdatedAt = parseTime(updated)
		res.Tags = []string{}
		index[res.ID] = len(results)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	if len(results) == 0 {
		return results, nil
	}

	// Base arguments required for building the query b.c. sql doesn't support slice arguments as IN clause
	ids := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ID)
	}
	args, placeholders := buildSliceArgs(ids)
	tagRows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT book_id, tag FROM book_tags WHERE book_id IN (%s) ORDER BY book_id, position`, placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var bookID, tag string
		if err := tagRows.Scan(&bookID, &tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		results[index[bookID]].Tags = append(results[index[bookID]].Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return results, nil
}

// RebuildFTSIndex rebuilds the full-text search index for all books.
func (r *Repo) RebuildFTSIndex(ctx context.Context) error {
	books, err := r.loadBooks(ctx)
	if err != nil {
		return fmt.Errorf("rebuild FTS index (load): %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, "DELETE FROM books_fts"); err != nil {
		return fmt.Errorf("rebuild FTS index (delete): %w", err)
	}
	for i := range books {
		if err := insertFTS(ctx, tx, &books[i]); err != nil {
			return fmt.Errorf("rebuild FTS index (insert): %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Info("FTS index rebuilt", "rows_updated", len(books))
	return nil
}

func insertFTS(ctx context.Context, q execer, b *book.Book) error {
	_, err := q.ExecContext(ctx, `INSERT INTO books_fts(title, author, description, tags, category, book_id)
		VALUES(?, ?, ?, ?, ?, ?)`,
		WithTranslit(b.Title),
		WithTranslit(b.Author),
		b.Description,
		WithTranslit(strings.Join(b.Tags, " ")),
		WithTranslit(b.Category),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("index book %s: %w", b.ID, err)
	}
	return nil
}

// buildSliceArgs generates placeholders and converts slice to []any
// e.g. buildSliceArgs([]string{"a", "b"}) -> ([]any{"a", "b"}, "?,?")
func buildSliceArgs(items []string) ([]any, string) {
	if len(items) == 0 {
		return nil, ""
	}
	args := make([]any, len(items))
	placeholders := make([]string, len(items))
	for i, item := range items {
		args[i] = item
		placeholders[i] = "?"
	}
	return args, strings.Join(placeholders, ",")
}
