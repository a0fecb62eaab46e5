package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/domain"
)

func sampleCart() domain.RemoteCart {
	return domain.RemoteCart{
		ID:       "cart_1",
		Currency: "EUR",
		Items: []domain.LineItem{
			{ID: "li_1", VariantID: "v1", Quantity: 2, UnitPrice: 1500, Title: "Beans", VariantTitle: "250g", Thumbnail: "/b.png"},
			{ID: "li_2", VariantID: "v2", Quantity: 3, UnitPrice: 900, Title: "Filter"},
		},
		Subtotal:      5700,
		DiscountTotal: 570,
		Total:         5130,
		DiscountCodes: []string{"SAVE10"},
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	first, err := json.Marshal(Project(sampleCart()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Project(sampleCart()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("projection differs:\n%s\n%s", first, second)
	}
}

func TestProjectCopiesRemoteValues(t *testing.T) {
	m := Project(sampleCart())
	if m.ItemCount != 5 {
		t.Fatalf("expected item count 5, got %d", m.ItemCount)
	}
	if m.Subtotal != 5700 || m.Total != 5130 {
		t.Fatalf("expected remote totals, got subtotal=%d total=%d", m.Subtotal, m.Total)
	}
	if m.Items[0].Key != 1 || m.Items[1].Key != 2 {
		t.Fatalf("unexpected keys %+v", m.Items)
	}
	if m.Items[0].UnitPrice != 1500 || m.Items[0].Label != "250g" || m.Items[0].Image != "/b.png" {
		t.Fatalf("unexpected first row %+v", m.Items[0])
	}
	if m.Optimistic {
		t.Fatalf("projection must not be optimistic")
	}
}

func TestProjectEmptyCart(t *testing.T) {
	m := Project(domain.RemoteCart{ID: "c"})
	if m.Items == nil || len(m.Items) != 0 || m.ItemCount != 0 {
		t.Fatalf("unexpected empty projection %+v", m)
	}
}

func TestApplyOptimisticQuantityChange(t *testing.T) {
	base := Project(sampleCart())
	m := ApplyOptimistic(base, Change{LineItemID: "li_2", Quantity: 1})
	if !m.Optimistic {
		t.Fatalf("expected optimistic flag")
	}
	if m.ItemCount != 3 || m.Subtotal != 2*1500+900 {
		t.Fatalf("unexpected recompute count=%d subtotal=%d", m.ItemCount, m.Subtotal)
	}
	if base.Items[1].Quantity != 3 {
		t.Fatalf("input mirror was mutated")
	}
}

func TestApplyOptimisticRemoveAndAdd(t *testing.T) {
	m := ApplyOptimistic(Project(sampleCart()), Change{LineItemID: "li_1", Quantity: 0})
	if len(m.Items) != 1 || m.Items[0].LineItemID != "li_2" || m.Items[0].Key != 1 {
		t.Fatalf("unexpected rows after remove %+v", m.Items)
	}
	m = ApplyOptimistic(m, Change{VariantID: "v9", Quantity: 2, Name: "Mug", UnitPrice: 1200})
	if len(m.Items) != 2 || m.ItemCount != 5 {
		t.Fatalf("unexpected rows after add %+v", m.Items)
	}
	m = ApplyOptimistic(m, Change{VariantID: "v9", Quantity: 1})
	if m.Items[1].Quantity != 3 {
		t.Fatalf("expected accumulated quantity, got %d", m.Items[1].Quantity)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Get(ctx, "c"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Put(ctx, Project(sampleCart())); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "cart_1")
	if err != nil || got.ItemCount != 5 {
		t.Fatalf("unexpected get %+v %v", got, err)
	}
	if err := s.Delete(ctx, "cart_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "cart_1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
