// Package service provides business logic layer between HTTP handlers and repository
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/htol/techlib/auth"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/storage"
	"github.com/htol/techlib/validator"
)

var (
	// ErrUnauthorized is returned when a request carries no valid session
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden is returned when the caller lacks the required role
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned by SignIn for any email/password mismatch
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoPDF is returned when a book has no PDF attached
	ErrNoPDF = errors.New("book has no PDF")
)

// Options tune the account rules.
type Options struct {
	SessionTTL  time.Duration
	AdminEmails []string
}

// Service provides business logic for the application
type Service struct {
	repo       repo.Repository
	store      *storage.Store
	tokens     *auth.TokenService
	validate   *validator.Validator
	sessionTTL time.Duration
	admins     map[string]struct{}
	now        func() time.Time
}

// New creates a new Service with the given repository, PDF store and token service
func New(r repo.Repository, store *storage.Store, tokens *auth.TokenService, opts Options) *Service {
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		repo:       r,
		store:      store,
		tokens:     tokens,
		validate:   validator.New(),
		sessionTTL: ttl,
		admins:     admins,
		now:        time.Now,
	}
}

// Health

// Ping checks the health of the service and its dependencies
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository ping: %w", err)
	}
	return nil
}

// StorageStatus reports whether the PDF bucket is usable.
func (s *Service) StorageStatus() (storage.Status, error) {
	return s.store.Status()
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
