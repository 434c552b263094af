package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/htol/techlib/config"
	"github.com/htol/techlib/logger"
	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the catalog database at path and applies the schema.
func Open(path string, cfg config.DatabaseConfig) (*Repo, error) {
	r := &Repo{
		path: path,
		now:  time.Now,
	}

	// Pragmas in the DSN apply to every pooled connection; foreign_keys is per connection.
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	// Cache Size: -64000 means 64MB of cache. Positive would be N pages.
	if _, err := db.Exec("PRAGMA cache_size = -64000"); err != nil {
		logger.Warn("Failed to set cache_size", "error", err)
	}
	if _, err := db.Exec("PRAGMA temp_store = MEMORY"); err != nil {
		logger.Warn("Failed to set temp_store", "error", err)
	}

	r.db = db

	if err := r.CreateSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return r, nil
}

// CreateSchema creates tables, indexes and triggers that do not exist yet.
func (r *Repo) CreateSchema(ctx context.Context) error {
	sqlStmt := `
           CREATE TABLE IF NOT EXISTS "books" (
               book_id text primary key not null,
               title text not null,
               author text not null,
               description text not null default '',
               year integer not null default 0,
               pages integer not null default 0,
               category text not null default '',
               pdf_url text not null default '',
               cover_url text not null default '',
               created_at text not null,
               updated_at text not null
           );
           CREATE UNIQUE INDEX IF NOT EXISTS [I_books_title] ON "books" ([title] COLLATE NOCASE);
           CREATE INDEX IF NOT EXISTS [I_books_created_at] ON "books" ([created_at]);
           CREATE INDEX IF NOT EXISTS [I_books_author] ON "books" ([author]);
           CREATE INDEX IF NOT EXISTS [I_books_category] ON "books" ([category]);

           CREATE TABLE IF NOT EXISTS "book_tags" (
               book_id text not null,
               tag text not null,
               position integer not null,
               PRIMARY KEY (book_id, tag),
               FOREIGN KEY (book_id) REFERENCES books(book_id) ON DELETE CASCADE
           );
           CREATE INDEX IF NOT EXISTS [I_book_tags_tag] ON "book_tags" ([tag]);

           CREATE TABLE IF NOT EXISTS "users" (
               user_id text primary key not null,
               email text not null COLLATE NOCASE,
               password_hash text not null,
               role text not null default 'user',
               created_at text not null,
               UNIQUE(email)
           );

           CREATE TABLE IF NOT EXISTS "profiles" (
               user_id text primary key not null,
               full_name text not null default '',
               username text not null default '',
               bio text not null default '',
               avatar_url text not null default '',
               created_at text not null,
               updated_at text not null,
               FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
           );
           CREATE UNIQUE INDEX IF NOT EXISTS [I_profiles_username] ON "profiles" ([username] COLLATE NOCASE) WHERE username <> '';

           CREATE TABLE IF NOT EXISTS "sessions" (
               session_id text primary key not null,
               user_id text not null,
               expires_at text not null,
               created_at text not null,
               FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
           );
           CREATE INDEX IF NOT EXISTS [I_sessions_user_id] ON "sessions" ([user_id]);

           -- book_id is deliberately not a foreign key: favorites keep a snapshot
           -- of the book and outlive its removal from the catalog.
           CREATE TABLE IF NOT EXISTS "favorites" (
               favorite_id text primary key not null,
               user_id text not null,
               book_id text not null,
               book_title text not null,
               book_author text not null,
               book_category text not null,
               book_year integer not null default 0,
               book_pages integer not null default 0,
               book_description text not null default '',
               book_tags text not null default '[]',
               created_at text not null,
               UNIQUE(user_id, book_id),
               FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
           );

           CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(title, author, description, tags, category, book_id UNINDEXED);

           DROP TRIGGER IF EXISTS books_fts_delete;
           CREATE TRIGGER books_fts_delete AFTER DELETE ON books BEGIN
               DELETE FROM books_fts WHERE book_id = old.book_id;
           END;
	`
	_, err := r.db.ExecContext(ctx, sqlStmt)
	return err
}
