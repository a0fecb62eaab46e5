package visitorcart

import (
	"context"
	"errors"
	"os"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/migrate"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPostgres_UpsertKeepsNewestSeq(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	resetTables(ctx, t, pool)

	repo := NewPostgres(pool)
	visitor := uuid.NewString()

	if _, err := repo.Get(ctx, visitor); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Upsert(ctx, Entry{VisitorID: visitor, CartID: "cart_new", Seq: 20}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// older write loses
	if err := repo.Upsert(ctx, Entry{VisitorID: visitor, CartID: "cart_old", Seq: 10}); err != nil {
		t.Fatalf("Upsert old: %v", err)
	}

	got, err := repo.Get(ctx, visitor)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CartID != "cart_new" || got.Seq != 20 {
		t.Fatalf("unexpected entry %+v", got)
	}

	if err := repo.Delete(ctx, visitor); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, visitor); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}

func resetTables(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `TRUNCATE visitor_carts`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
