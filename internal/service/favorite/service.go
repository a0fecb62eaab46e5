// Package favorite keeps the products a visitor liked.
package favorite

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	favoriterepo "storefront/internal/repository/favorite"
)

type Service struct {
	repo favoriterepo.Repository
}

func New(repo favoriterepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Add(ctx context.Context, visitorID, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.ValidationError("Missing product.", map[string]string{"productId": "required"})
	}
	return s.repo.Add(ctx, visitorID, productID)
}

// Remove is idempotent: removing a product that is not liked succeeds.
func (s *Service) Remove(ctx context.Context, visitorID, productID string) error {
	err := s.repo.Remove(ctx, visitorID, strings.TrimSpace(productID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) List(ctx context.Context, visitorID string) ([]favoriterepo.Favorite, error) {
	return s.repo.List(ctx, visitorID)
}
