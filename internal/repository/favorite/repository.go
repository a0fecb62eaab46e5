package favorite

import (
	"context"
	"time"
)

// Favorite is a product the visitor marked as liked.
type Favorite struct {
	ProductID string    `json:"productId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Add(ctx context.Context, visitorID, productID string) error
	Remove(ctx context.Context, visitorID, productID string) error
	List(ctx context.Context, visitorID string) ([]Favorite, error)
}
