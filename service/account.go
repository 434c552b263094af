package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/htol/techlib/auth"
	"github.com/htol/techlib/book"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/validator"
)

const minPasswordLength = 6

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      book.Role `json:"role"`
	SessionID string    `json:"-"`
}

// IsAdmin reports whether the caller may manage the catalog.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == book.RoleAdmin
}

// AuthResult is returned by SignUp and SignIn.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *book.User `json:"user"`
}

// Me is the current user together with their profile.
type Me struct {
	User    *book.User    `json:"user"`
	Profile *book.Profile `json:"profile"`
}

func (s *Service) validateCredentials(email, password string) error {
	verr := &validator.ValidationError{Fields: map[string]string{}}
	if err := s.validate.Var("email", email, "required,email"); err != nil {
		var fe *validator.ValidationError
		if errors.As(err, &fe) {
			verr.Fields["email"] = fe.Fields["email"]
		} else {
			return err
		}
	}
	switch {
	case len(password) < minPasswordLength:
		verr.Fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	case len(password) > auth.MaxPasswordLength:
		verr.Fields["password"] = fmt.Sprintf("must not exceed %d characters", auth.MaxPasswordLength)
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// SignUp creates an account and signs it in. Emails listed as admin emails get the admin role.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if err := s.validateCredentials(email, password); err != nil {
		return nil, err
	}
	if len([]rune(fullName)) > 100 {
		return nil, validator.Field("full_name", "must not exceed 100 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &book.User{Email: email, PasswordHash: hash, Role: book.RoleUser}
	if s.isAdminEmail(email) {
		u.Role = book.RoleAdmin
	}
	if err := s.repo.CreateUser(ctx, u, fullName); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	logger.Info("User signed up", "user_id", u.ID, "role", u.Role)
	return s.startSession(ctx, u)
}

// SignIn checks the credentials and opens a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		// Burn comparable time so unknown emails are not distinguishable.
		auth.VerifyPassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if s.isAdminEmail(email) && !u.IsAdmin() {
		if err := s.repo.SetUserRole(ctx, email, book.RoleAdmin); err != nil {
			return nil, fmt.Errorf("promote configured admin: %w", err)
		}
		u.Role = book.RoleAdmin
	}

	return s.startSession(ctx, u)
}

// dummyHash is a valid argon2id hash of a random password.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$0n7cQyHGfFOY9yOLlQ2k6zSMvVJIe6v1OdBfSF1oOqM"

func (s *Service) startSession(ctx context.Context, u *book.User) (*AuthResult, error) {
	sess := &book.Session{UserID: u.ID, ExpiresAt: s.now().Add(s.sessionTTL).UTC()}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &AuthResult{Token: s.tokens.Issue(u, sess), ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// Authenticate resolves a bearer token to its principal. The session must
// still exist and be unexpired; the role is read from the current account.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sess, err := s.repo.GetSession(ctx, claims.TokenID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: session ended", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != claims.UserID || sess.Expired(s.now()) {
		return nil, fmt.Errorf("%w: session expired", ErrUnauthorized)
	}

	u, err := s.repo.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: account removed", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &Principal{UserID: u.ID, Email: u.Email, Role: u.Role, SessionID: sess.ID}, nil
}

// SignOut ends the session the token belongs to.
func (s *Service) SignOut(ctx context.Context, token string) error {
	p, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, p.SessionID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Me returns the account and profile of p.
func (s *Service) Me(ctx context.Context, p *Principal) (*Me, error) {
	u, err := s.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	profile, err := s.repo.GetProfile(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &Me{User: u, Profile: profile}, nil
}

// PromoteUser grants the admin role to the account with email.
func (s *Service) PromoteUser(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.repo.SetUserRole(ctx, email, book.RoleAdmin); err != nil {
		return fmt.Errorf("promote %s: %w", email, err)
	}
	logger.Info("User promoted to admin", "email", email)
	return nil
}

// PruneSessions deletes expired sessions.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return n, nil
}

func (s *Service) isAdminEmail(email string) bool {
	_, ok := s.admins[email]
	return ok
}
