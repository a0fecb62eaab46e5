package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const selectColumns = `id, cart_id, display_id, email, status, payment_status, fulfillment_status, total_minor, currency, payment_intent, raw, created_at`

func (r *postgresRepo) GetByCartID(ctx context.Context, cartID string) (*domain.Order, error) {
	q := `SELECT ` + selectColumns + ` FROM orders WHERE cart_id = $1`
	return r.scan(r.pool.QueryRow(ctx, q, cartID))
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	raw, err := json.Marshal(o.Raw)
	if err != nil {
		return nil, fmt.Errorf("marshal raw order: %w", err)
	}
	if o.Raw == nil {
		raw = []byte("{}")
	}
	const q = `
INSERT INTO orders (id, cart_id, display_id, email, status, payment_status, fulfillment_status, total_minor, currency, payment_intent, raw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (cart_id) DO NOTHING
`
	if _, err := r.pool.Exec(ctx, q,
		o.ID,
		o.CartID,
		o.DisplayID,
		o.Email,
		o.Status,
		o.PaymentStatus,
		o.FulfillmentStatus,
		o.Total,
		o.Currency,
		o.PaymentIntent,
		raw,
	); err != nil {
		return nil, err
	}
	return r.GetByCartID(ctx, o.CartID)
}

func (r *postgresRepo) scan(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var raw []byte
	if err := row.Scan(
		&o.ID,
		&o.CartID,
		&o.DisplayID,
		&o.Email,
		&o.Status,
		&o.PaymentStatus,
		&o.FulfillmentStatus,
		&o.Total,
		&o.Currency,
		&o.PaymentIntent,
		&raw,
		&o.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o.Raw); err != nil {
			return nil, fmt.Errorf("decode raw order: %w", err)
		}
	}
	return &o, nil
}
