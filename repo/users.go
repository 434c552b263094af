package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/id"
)

// CreateUser stores u together with an empty profile carrying fullName.
func (r *Repo) CreateUser(ctx context.Context, u *book.User, fullName string) error {
	if u.ID == "" {
		u.ID = id.MustGenerate(id.PrefixUser)
	}
	if u.Role == "" {
		u.Role = book.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	created := formatTime(u.CreatedAt)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, `INSERT INTO users(user_id, email, password_hash, role, created_at)
		VALUES(?, ?, ?, ?, ?)`, u.ID, u.Email, u.PasswordHash, string(u.Role), created)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO profiles(user_id, full_name, created_at, updated_at)
		VALUES(?, ?, ?, ?)`, u.ID, fullName, created, created)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return tx.Commit()
}

func (r *Repo) getUser(ctx context.Context, where string, arg any) (*book.User, error) {
	var u book.User
	var role, created string
	err := r.db.QueryRowContext(ctx, `SELECT user_id, email, password_hash, role, created_at
		FROM users WHERE `+where, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = book.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (*book.User, error) {
	return r.getUser(ctx, "user_id = ?", userID)
}

// GetUserByEmail matches email case-insensitively.
func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*book.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

func (r *Repo) SetUserRole(ctx context.Context, email string, role book.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE email = ?`, string(role), email)
	if err != nil {
		return fmt.Errorf("set role for %s: %w", email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) CreateSession(ctx context.Context, s *book.Session) error {
	if s.ID == "" {
		s.ID = id.MustGenerate(id.PrefixSession)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions(session_id, user_id, expires_at, created_at)
		VALUES(?, ?, ?, ?)`, s.ID, s.UserID, formatTime(s.ExpiresAt), formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repo) GetSession(ctx context.Context, sessionID string) (*book.Session, error) {
	var s book.Session
	var expires, created string
	err := r.db.QueryRowContext(ctx, `SELECT session_id, user_id, expires_at, created_at
		FROM sessions WHERE session_id = ?`, sessionID).Scan(&s.ID, &s.UserID, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.ExpiresAt = parseTime(expires)
	s.CreatedAt = parseTime(created)
	return &s, nil
}

func (r *Repo) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (r *Repo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// GetProfile returns the profile of userID together with the account email.
func (r *Repo) GetProfile(ctx context.Context, userID string) (*book.Profile, error) {
	var p book.Profile
	var created, updated string
	err := r.db.QueryRowContext(ctx, `SELECT p.user_id, u.email, p.full_name, p.username, p.bio,
		p.avatar_url, p.created_at, p.updated_at
		FROM profiles p JOIN users u ON u.user_id = p.user_id
		WHERE p.user_id = ?`, userID).Scan(&p.UserID, &p.Email, &p.FullName, &p.Username, &p.Bio,
		&p.AvatarURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// UpdateProfile replaces the editable profile fields. A username taken by
// another account yields ErrAlreadyExists.
func (r *Repo) UpdateProfile(ctx context.Context, userID string, in book.ProfileInput) (*book.Profile, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET full_name = ?, username = ?, bio = ?,
		avatar_url = ?, updated_at = ? WHERE user_id = ?`,
		in.FullName, in.Username, in.Bio, in.AvatarURL, formatTime(r.now()), userID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %s: %w", in.Username, ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.GetProfile(ctx, userID)
}
