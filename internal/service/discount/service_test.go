package discount

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/mirror"
)

type stubRemote struct {
	cart          domain.RemoteCart
	getCalls      int
	promoCalls    int
	updateCalls   int
	promoErr      error
	updateErr     error
	lastPromoCode string
	lastUpdate    commerce.CartUpdate
	discountTotal int64
}

func (s *stubRemote) GetCart(_ context.Context, _ string) (*domain.RemoteCart, error) {
	s.getCalls++
	c := s.cart
	return &c, nil
}

func (s *stubRemote) AddPromotion(_ context.Context, _ string, code string) (*domain.RemoteCart, error) {
	s.promoCalls++
	s.lastPromoCode = code
	if s.promoErr != nil {
		return nil, s.promoErr
	}
	s.cart.DiscountCodes = append(s.cart.DiscountCodes, code)
	s.cart.DiscountTotal = s.discountTotal
	c := s.cart
	return &c, nil
}

func (s *stubRemote) UpdateCart(_ context.Context, _ string, in commerce.CartUpdate) (*domain.RemoteCart, error) {
	s.updateCalls++
	s.lastUpdate = in
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.cart.DiscountCodes = in.DiscountCodes
	c := s.cart
	return &c, nil
}

type recordingPublisher struct {
	mirrors *mirror.MemoryStore
	calls   int
}

func (p *recordingPublisher) Publish(ctx context.Context, cart domain.RemoteCart) domain.LocalCartMirror {
	p.calls++
	m := mirror.Project(cart)
	_ = p.mirrors.Put(ctx, m)
	return m
}

func newTestService(remote *stubRemote) (*Service, *recordingPublisher) {
	mirrors := mirror.NewMemoryStore()
	pub := &recordingPublisher{mirrors: mirrors}
	return New(remote, mirrors, pub, log.New(io.Discard, "", 0)), pub
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  save10 "); got != "SAVE10" {
		t.Fatalf("unexpected normalized code %q", got)
	}
}

func TestApplyUsesPromotionsEndpoint(t *testing.T) {
	remote := &stubRemote{cart: domain.RemoteCart{ID: "cart_1"}, discountTotal: 500}
	svc, pub := newTestService(remote)

	res, err := svc.Apply(context.Background(), "cart_1", "save10")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if remote.lastPromoCode != "SAVE10" || remote.updateCalls != 0 {
		t.Fatalf("unexpected remote calls %+v", remote)
	}
	if !res.Applied || res.Pending || res.Strategy != "promotions-endpoint" {
		t.Fatalf("unexpected result %+v", res)
	}
	if pub.calls == 0 {
		t.Fatalf("expected mirror published")
	}
}

func TestApplyZeroDiscountIsPendingNotFailed(t *testing.T) {
	remote := &stubRemote{cart: domain.RemoteCart{ID: "cart_1"}}
	svc, _ := newTestService(remote)

	res, err := svc.Apply(context.Background(), "cart_1", "FREESHIP")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Applied || !res.Pending {
		t.Fatalf("expected applied and pending, got %+v", res)
	}
}

func TestApplyDuplicateRejectedBeforeRemoteCall(t *testing.T) {
	remote := &stubRemote{cart: domain.RemoteCart{ID: "cart_1"}, discountTotal: 100}
	svc, _ := newTestService(remote)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, "cart_1", "SAVE10"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	gets, promos := remote.getCalls, remote.promoCalls

	_, err := svc.Apply(ctx, "cart_1", "save10")
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindConflict || de.Fields["code"] != "already applied" {
		t.Fatalf("expected already-applied conflict, got %v", err)
	}
	if remote.getCalls != gets || remote.promoCalls != promos || remote.updateCalls != 0 {
		t.Fatalf("duplicate must not reach the backend")
	}
}

func TestApplyFallsBackToCartUpdate(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed} {
		remote := &stubRemote{
			cart:     domain.RemoteCart{ID: "cart_1", DiscountCodes: []string{"WELCOME"}},
			promoErr: &domain.Error{Kind: domain.KindUpstream, Status: status},
		}
		svc, _ := newTestService(remote)

		res, err := svc.Apply(context.Background(), "cart_1", "save10")
		if err != nil {
			t.Fatalf("status %d: Apply: %v", status, err)
		}
		if res.Strategy != "cart-update" {
			t.Fatalf("status %d: expected fallback, got %q", status, res.Strategy)
		}
		want := []string{"WELCOME", "SAVE10"}
		if len(remote.lastUpdate.DiscountCodes) != 2 || remote.lastUpdate.DiscountCodes[0] != want[0] || remote.lastUpdate.DiscountCodes[1] != want[1] {
			t.Fatalf("status %d: expected full list %v, got %v", status, want, remote.lastUpdate.DiscountCodes)
		}
	}
}

func TestApplyInvalidCodeMessages(t *testing.T) {
	remote := &stubRemote{
		cart:     domain.RemoteCart{ID: "cart_1"},
		promoErr: &domain.Error{Kind: domain.KindValidation, Status: http.StatusBadRequest, Message: "Code EXPIRED has expired"},
	}
	svc, _ := newTestService(remote)
	_, err := svc.Apply(context.Background(), "cart_1", "expired")
	var de *domain.Error
	if !errors.As(err, &de) || de.Message != "Code EXPIRED has expired" {
		t.Fatalf("expected backend message, got %v", err)
	}
	if remote.updateCalls != 0 {
		t.Fatalf("a rejected code must not fall back")
	}

	remote.promoErr = &domain.Error{Kind: domain.KindValidation, Status: http.StatusBadRequest}
	_, err = svc.Apply(context.Background(), "cart_1", "garbage")
	if !errors.As(err, &de) || de.Message != invalidCodeMessage || de.Kind != domain.KindValidation {
		t.Fatalf("expected generic message, got %v", err)
	}
}

func TestApplyEmptyCode(t *testing.T) {
	svc, _ := newTestService(&stubRemote{})
	if _, err := svc.Apply(context.Background(), "cart_1", "   "); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveFiltersCaseInsensitively(t *testing.T) {
	remote := &stubRemote{cart: domain.RemoteCart{ID: "cart_1", DiscountCodes: []string{"save10", "WELCOME"}}}
	svc, _ := newTestService(remote)

	cart, err := svc.Remove(context.Background(), "cart_1", "SAVE10")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(remote.lastUpdate.DiscountCodes) != 1 || remote.lastUpdate.DiscountCodes[0] != "WELCOME" {
		t.Fatalf("unexpected update %v", remote.lastUpdate.DiscountCodes)
	}
	if cart.HasDiscount("save10") {
		t.Fatalf("code still present")
	}
}

func TestRemoveAbsentCodeIsNoop(t *testing.T) {
	remote := &stubRemote{cart: domain.RemoteCart{ID: "cart_1", DiscountCodes: []string{"WELCOME"}}}
	svc, _ := newTestService(remote)

	if _, err := svc.Remove(context.Background(), "cart_1", "SAVE10"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if remote.updateCalls != 0 {
		t.Fatalf("expected no update for absent code")
	}
}
