package order

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	GetByCartID(ctx context.Context, cartID string) (*domain.Order, error)
	// Create records o. When an order for the same cart already exists the
	// stored one is returned unchanged.
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
}
