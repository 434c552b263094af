package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/htol/techlib/book"
	"github.com/htol/techlib/repo"
)

// AddFavorite snapshots a book into the user's favorites. created is false
// when the book was already a favorite.
func (s *Service) AddFavorite(ctx context.Context, userID, bookID string) (fav *book.Favorite, created bool, err error) {
	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, false, err
	}
	want := book.NewFavorite(userID, b)
	got, err := s.repo.AddFavorite(ctx, want)
	if err != nil {
		return nil, false, fmt.Errorf("add favorite: %w", err)
	}
	return got, got.ID == want.ID, nil
}

// RemoveFavorite drops a book from the user's favorites.
func (s *Service) RemoveFavorite(ctx context.Context, userID, bookID string) error {
	if err := s.repo.RemoveFavorite(ctx, userID, bookID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// IsFavorite reports whether the user has favorited the book.
func (s *Service) IsFavorite(ctx context.Context, userID, bookID string) (bool, error) {
	_, err := s.repo.GetFavorite(ctx, userID, bookID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get favorite: %w", err)
	}
	return true, nil
}

// ToggleFavorite flips the favorite state and returns the new one.
func (s *Service) ToggleFavorite(ctx context.Context, userID, bookID string) (bool, error) {
	fav, err := s.IsFavorite(ctx, userID, bookID)
	if err != nil {
		return false, err
	}
	if fav {
		if err := s.RemoveFavorite(ctx, userID, bookID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return true, err
		}
		return false, nil
	}
	if _, _, err := s.AddFavorite(ctx, userID, bookID); err != nil {
		return false, err
	}
	return true, nil
}

// ListFavorites returns the user's favorites, newest first.
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]book.Favorite, error) {
	favs, err := s.repo.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favs, nil
}
