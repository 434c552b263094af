package repo

import (
	"context"
	"time"

	"github.com/htol/techlib/book"
)

// Repository defines the interface for data access operations
type Repository interface {
	// Close closes the database connection
	Close() error

	// Health check
	Ping(ctx context.Context) error

	// Books
	ListBooks(ctx context.Context) ([]book.Book, error)
	GetBook(ctx context.Context, id string) (*book.Book, error)
	CreateBook(ctx context.Context, b *book.Book) error
	UpdateBook(ctx context.Context, b *book.Book) error
	DeleteBook(ctx context.Context, id string) error
	BulkCreate(ctx context.Context, books []*book.Book) (BulkResult, error)

	// SearchBooks performs full-text search across title, author, description,
	// tags and category. Results are ranked by relevance (FTS5 rank).
	SearchBooks(ctx context.Context, query string, limit, offset int) ([]book.SearchResult, error)
	RebuildFTSIndex(ctx context.Context) error

	// Users and sessions
	CreateUser(ctx context.Context, u *book.User, fullName string) error
	GetUserByID(ctx context.Context, id string) (*book.User, error)
	GetUserByEmail(ctx context.Context, email string) (*book.User, error)
	SetUserRole(ctx context.Context, email string, role book.Role) error
	CreateSession(ctx context.Context, s *book.Session) error
	GetSession(ctx context.Context, id string) (*book.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Profiles
	GetProfile(ctx context.Context, userID string) (*book.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in book.ProfileInput) (*book.Profile, error)

	// Favorites
	AddFavorite(ctx context.Context, f *book.Favorite) (*book.Favorite, error)
	GetFavorite(ctx context.Context, userID, bookID string) (*book.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, bookID string) error
	ListFavorites(ctx context.Context, userID string) ([]book.Favorite, error)
}

var _ Repository = (*Repo)(nil)
