package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/htol/techlib/book"
)

func (s *Service) GetProfile(ctx context.Context, userID string) (*book.Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile validates and saves the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in book.ProfileInput) (*book.Profile, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.TrimSpace(in.Username)
	in.Bio = strings.TrimSpace(in.Bio)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdateProfile(ctx, userID, in)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
