package checkout

import (
	"context"
	"errors"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, cartID string) (*domain.CheckoutSession, error) {
	const q = `
SELECT cart_id, current_stage, reached_stage, shipping_option_id, payment_provider_id, updated_at
FROM checkout_sessions
WHERE cart_id = $1
`
	var s domain.CheckoutSession
	var current, reached int16
	if err := r.pool.QueryRow(ctx, q, cartID).Scan(
		&s.CartID,
		&current,
		&reached,
		&s.ShippingOptionID,
		&s.PaymentProviderID,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.Current = domain.CheckoutStage(current)
	s.Reached = domain.CheckoutStage(reached)
	return &s, nil
}

func (r *postgresRepo) Save(ctx context.Context, s domain.CheckoutSession) error {
	const q = `
INSERT INTO checkout_sessions (cart_id, current_stage, reached_stage, shipping_option_id, payment_provider_id, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (cart_id) DO UPDATE
SET current_stage = EXCLUDED.current_stage,
    reached_stage = EXCLUDED.reached_stage,
    shipping_option_id = EXCLUDED.shipping_option_id,
    payment_provider_id = EXCLUDED.payment_provider_id,
    updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, s.CartID, int16(s.Current), int16(s.Reached), s.ShippingOptionID, s.PaymentProviderID)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM checkout_sessions WHERE cart_id = $1`, cartID)
	return err
}
