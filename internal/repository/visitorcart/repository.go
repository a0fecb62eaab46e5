package visitorcart

import (
	"context"
	"time"
)

// Entry is the persisted cart identity of one visitor.
type Entry struct {
	VisitorID string
	CartID    string
	Seq       int64
	UpdatedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, visitorID string) (*Entry, error)
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, visitorID string) error
}
