package checkout

import (
	"context"

	"storefront/internal/domain"
)

type Repository interface {
	Get(ctx context.Context, cartID string) (*domain.CheckoutSession, error)
	Save(ctx context.Context, s domain.CheckoutSession) error
	Delete(ctx context.Context, cartID string) error
}
