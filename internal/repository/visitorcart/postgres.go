package visitorcart

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

func (r *postgresRepo) Get(ctx context.Context, visitorID string) (*Entry, error) {
	const q = `
SELECT visitor_id::text, cart_id, seq, updated_at
FROM visitor_carts
WHERE visitor_id = $1
`
	var e Entry
	if err := r.pool.QueryRow(ctx, q, visitorID).Scan(&e.VisitorID, &e.CartID, &e.Seq, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Upsert stores e unless a row with a higher seq is already present, so a
// late write from an older request cannot overwrite a newer identity.
func (r *postgresRepo) Upsert(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO visitor_carts (visitor_id, cart_id, seq, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (visitor_id) DO UPDATE
SET cart_id = EXCLUDED.cart_id,
    seq = EXCLUDED.seq,
    updated_at = now()
WHERE visitor_carts.seq <= EXCLUDED.seq
`
	_, err := r.pool.Exec(ctx, q, e.VisitorID, e.CartID, e.Seq)
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, visitorID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM visitor_carts WHERE visitor_id = $1`, visitorID)
	return err
}
