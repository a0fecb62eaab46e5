package favorite

import (
	"context"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// Add is idempotent; liking a product twice keeps the first timestamp.
func (r *postgresRepo) Add(ctx context.Context, visitorID, productID string) error {
	const q = `
INSERT INTO favorites (visitor_id, product_id)
VALUES ($1, $2)
ON CONFLICT (visitor_id, product_id) DO NOTHING
`
	_, err := r.pool.Exec(ctx, q, visitorID, productID)
	return err
}

func (r *postgresRepo) Remove(ctx context.Context, visitorID, productID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE visitor_id = $1 AND product_id = $2`, visitorID, productID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) List(ctx context.Context, visitorID string) ([]Favorite, error) {
	const q = `
SELECT product_id, created_at
FROM favorites
WHERE visitor_id = $1
ORDER BY created_at DESC, product_id
`
	rows, err := r.pool.Query(ctx, q, visitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Favorite, 0)
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ProductID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
