// Package book holds the catalog's domain types.
package book

import "time"

// DefaultCategory is assigned to books created without a category.
const DefaultCategory = "programming"

// UnspecifiedCategory is stored in favorite snapshots of uncategorised books.
const UnspecifiedCategory = "unspecified"

// Categories offered by the admin form. Category itself is free text.
var Categories = []string{"programming", "design", "business", "science", "fiction", "other"}

// Book is a catalog entry.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	Year        int       `json:"year"`
	Pages       int       `json:"pages"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	PDFURL      string    `json:"pdf_url,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasPDF reports whether the book links to a PDF.
func (b *Book) HasPDF() bool {
	return b.PDFURL != ""
}

// BookInput is the create/update payload accepted from admins and imports.
// Pointers distinguish "not sent" from zero values.
type BookInput struct {
	Title       string   `json:"title" yaml:"title" validate:"required,max=300"`
	Author      string   `json:"author" yaml:"author" validate:"required,max=200"`
	Description string   `json:"description" yaml:"description" validate:"max=5000"`
	Year        *int     `json:"year,omitempty" yaml:"year" validate:"omitempty,gte=1900"`
	Pages       *int     `json:"pages,omitempty" yaml:"pages" validate:"omitempty,gte=0"`
	Category    string   `json:"category" yaml:"category" validate:"max=64"`
	Tags        []string `json:"tags" yaml:"tags" validate:"max=50,dive,max=64"`
	PDFURL      string   `json:"pdf_url" yaml:"pdf_url" validate:"omitempty,url"`
	CoverURL    string   `json:"cover_url" yaml:"cover_url" validate:"omitempty,url"`
}

// Role of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account able to sign in.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may manage the catalog.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile is the editable part of an account.
type Profile struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Username  string    `json:"username,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileInput is the payload of a profile update.
type ProfileInput struct {
	FullName  string `json:"full_name" validate:"max=100"`
	Username  string `json:"username" validate:"omitempty,max=32,username"`
	Bio       string `json:"bio" validate:"max=500"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// Session is a signed-in device. Signing out deletes it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Favorite marks a book for a user. The book fields are a snapshot taken
// when the favorite was created, so the list survives catalog deletions.
type Favorite struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	BookID          string    `json:"book_id"`
	BookTitle       string    `json:"book_title"`
	BookAuthor      string    `json:"book_author"`
	BookCategory    string    `json:"book_category"`
	BookYear        int       `json:"book_year"`
	BookPages       int       `json:"book_pages"`
	BookDescription string    `json:"book_description"`
	BookTags        []string  `json:"book_tags"`
	Available       bool      `json:"available"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewFavorite snapshots b for userID.
func NewFavorite(userID string, b *Book) *Favorite {
	category := b.Category
	if category == "" {
		category = UnspecifiedCategory
	}
	tags := make([]string, len(b.Tags))
	copy(tags, b.Tags)
	return &Favorite{
		UserID:          userID,
		BookID:          b.ID,
		BookTitle:       b.Title,
		BookAuthor:      b.Author,
		BookCategory:    category,
		BookYear:        b.Year,
		BookPages:       b.Pages,
		BookDescription: b.Description,
		BookTags:        tags,
		Available:       true,
	}
}

// SearchResult is a full-text search hit with its FTS5 rank (lower is better).
type SearchResult struct {
	Book
	Rank float64 `json:"rank"`
}

// Facets lists the values a catalog can be filtered by.
type Facets struct {
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
	Tags       []string `json:"tags"`
	MinYear    int      `json:"min_year,omitempty"`
	MaxYear    int      `json:"max_year,omitempty"`
}

// Stats summarises the catalog for the admin dashboard.
type Stats struct {
	Total      int `json:"total"`
	Authors    int `json:"authors"`
	Categories int `json:"categories"`
	WithPDF    int `json:"with_pdf"`
}
