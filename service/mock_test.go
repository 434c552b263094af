package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/id"
	"github.com/htol/techlib/repo"
)

// mockRepository is an in-memory repo.Repository for service tests.
type mockRepository struct {
	mu        sync.Mutex
	books     map[string]*book.Book
	users     map[string]*book.User
	profiles  map[string]*book.Profile
	sessions  map[string]*book.Session
	favorites map[string]*book.Favorite
	seq       int

	pingError error
	listError error
}

var _ repo.Repository = (*mockRepository)(nil)

func newMockRepository() *mockRepository {
	return &mockRepository{
		books:     map[string]*book.Book{},
		users:     map[string]*book.User{},
		profiles:  map[string]*book.Profile{},
		sessions:  map[string]*book.Session{},
		favorites: map[string]*book.Favorite{},
	}
}

// tick returns strictly increasing timestamps.
func (m *mockRepository) tick() time.Time {
	m.seq++
	return time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func (m *mockRepository) Close() error                   { return nil }
func (m *mockRepository) Ping(ctx context.Context) error { return m.pingError }

func (m *mockRepository) ListBooks(ctx context.Context) ([]book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	out := make([]book.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) GetBook(ctx context.Context, bookID string) (*book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockRepository) titleTaken(title, exceptID string) bool {
	for _, b := range m.books {
		if b.ID != exceptID && strings.EqualFold(b.Title, title) {
			return true
		}
	}
	return false
}

func (m *mockRepository) CreateBook(ctx context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titleTaken(b.Title, "") {
		return repo.ErrAlreadyExists
	}
	if b.ID == "" {
		b.ID = id.MustGenerate(id.PrefixBook)
	}
	b.CreatedAt = m.tick()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *mockRepository) UpdateBook(ctx context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return repo.ErrNotFound
	}
	if m.titleTaken(b.Title, b.ID) {
		return repo.ErrAlreadyExists
	}
	b.UpdatedAt = m.tick()
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

func (m *mockRepository) DeleteBook(ctx context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.books, bookID)
	return nil
}

func (m *mockRepository) BulkCreate(ctx context.Context, books []*book.Book) (repo.BulkResult, error) {
	var res repo.BulkResult
	for _, b := range books {
		if err := m.CreateBook(ctx, b); err != nil {
			res.Skipped++
			res.Titles = append(res.Titles, b.Title)
			continue
		}
		res.Inserted++
	}
	return res, nil
}

func (m *mockRepository) SearchBooks(ctx context.Context, query string, limit, offset int) ([]book.SearchResult, error) {
	books, _ := m.ListBooks(ctx)
	out := []book.SearchResult{}
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(query)) {
			out = append(out, book.SearchResult{Book: b})
		}
	}
	if offset >= len(out) {
		return []book.SearchResult{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepository) RebuildFTSIndex(ctx context.Context) error { return nil }

func (m *mockRepository) CreateUser(ctx context.Context, u *book.User, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if strings.EqualFold(other.Email, u.Email) {
			return repo.ErrAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = id.MustGenerate(id.PrefixUser)
	}
	u.CreatedAt = m.tick()
	cp := *u
	m.users[u.ID] = &cp
	m.profiles[u.ID] = &book.Profile{UserID: u.ID, Email: u.Email, FullName: fullName, CreatedAt: u.CreatedAt, UpdatedAt: u.CreatedAt}
	return nil
}

func (m *mockRepository) GetUserByID(ctx context.Context, userID string) (*book.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) GetUserByEmail(ctx context.Context, email string) (*book.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *mockRepository) SetUserRole(ctx context.Context, email string, role book.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u.Role = role
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *mockRepository) CreateSession(ctx context.Context, s *book.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = id.MustGenerate(id.PrefixSession)
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockRepository) GetSession(ctx context.Context, sessionID string) (*book.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepository) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return repo.ErrNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *mockRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) GetProfile(ctx context.Context, userID string) (*book.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) UpdateProfile(ctx context.Context, userID string, in book.ProfileInput) (*book.Profile, error) {
	m.mu.Lock()
	p, ok := m.profiles[userID]
	if !ok {
		m.mu.Unlock()
		return nil, repo.ErrNotFound
	}
	if in.Username != "" {
		for uid, other := range m.profiles {
			if uid != userID && strings.EqualFold(other.Username, in.Username) {
				m.mu.Unlock()
				return nil, repo.ErrAlreadyExists
			}
		}
	}
	p.FullName, p.Username, p.Bio, p.AvatarURL = in.FullName, in.Username, in.Bio, in.AvatarURL
	p.UpdatedAt = m.tick()
	m.mu.Unlock()
	return m.GetProfile(ctx, userID)
}

func favKey(userID, bookID string) string { return userID + "|" + bookID }

func (m *mockRepository) AddFavorite(ctx context.Context, f *book.Favorite) (*book.Favorite, error) {
	m.mu.Lock()
	if _, ok := m.favorites[favKey(f.UserID, f.BookID)]; !ok {
		if f.ID == "" {
			f.ID = id.MustGenerate(id.PrefixFavorite)
		}
		f.CreatedAt = m.tick()
		cp := *f
		m.favorites[favKey(f.UserID, f.BookID)] = &cp
	}
	m.mu.Unlock()
	return m.GetFavorite(ctx, f.UserID, f.BookID)
}

func (m *mockRepository) GetFavorite(ctx context.Context, userID, bookID string) (*book.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.favorites[favKey(userID, bookID)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *f
	_, cp.Available = m.books[bookID]
	return &cp, nil
}

func (m *mockRepository) RemoveFavorite(ctx context.Context, userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.favorites[favKey(userID, bookID)]; !ok {
		return repo.ErrNotFound
	}
	delete(m.favorites, favKey(userID, bookID))
	return nil
}

func (m *mockRepository) ListFavorites(ctx context.Context, userID string) ([]book.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []book.Favorite{}
	for _, f := range m.favorites {
		if f.UserID == userID {
			cp := *f
			_, cp.Available = m.books[f.BookID]
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
