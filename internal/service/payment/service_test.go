package payment

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"storefront/internal/domain"
)

type stubRemote struct {
	selected     *domain.RemoteCart
	initErr      error
	initCalls    int
	lastProvider string
}

func (s *stubRemote) InitPaymentSessions(_ context.Context, cartID string) (*domain.RemoteCart, error) {
	s.initCalls++
	if s.initErr != nil {
		return nil, s.initErr
	}
	return &domain.RemoteCart{ID: cartID}, nil
}

func (s *stubRemote) SelectPaymentSession(_ context.Context, _ string, providerID string) (*domain.RemoteCart, error) {
	s.lastProvider = providerID
	return s.selected, nil
}

func newTestService(remote *stubRemote) *Service {
	return New(remote, nil, "pp_stripe_stripe", log.New(io.Discard, "", 0))
}

func TestOpenReturnsSelectedSessionSecret(t *testing.T) {
	remote := &stubRemote{selected: &domain.RemoteCart{
		ID: "cart_1",
		PaymentSession: &domain.PaymentSession{
			ProviderID: "pp_stripe_stripe",
			IsSelected: true,
			Data:       map[string]interface{}{"client_secret": "pi_1_secret_x"},
		},
	}}
	sess, err := newTestService(remote).Open(context.Background(), "cart_1", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sess.ClientSecret != "pi_1_secret_x" || remote.lastProvider != "pp_stripe_stripe" || remote.initCalls != 1 {
		t.Fatalf("unexpected session %+v remote=%+v", sess, remote)
	}
}

func TestOpenReadsPaymentCollection(t *testing.T) {
	remote := &stubRemote{selected: &domain.RemoteCart{
		ID: "cart_1",
		PaymentCollection: &domain.PaymentCollection{Sessions: []domain.PaymentSession{
			{ProviderID: "pp_other", Data: map[string]interface{}{"client_secret": "wrong"}},
			{ProviderID: "pp_stripe_stripe", Data: map[string]interface{}{"clientSecret": "right"}},
		}},
	}}
	sess, err := newTestService(remote).Open(context.Background(), "cart_1", "pp_stripe_stripe")
	if err != nil || sess.ClientSecret != "right" {
		t.Fatalf("unexpected session %+v %v", sess, err)
	}
}

func TestOpenMissingSecretIsConfigurationError(t *testing.T) {
	remote := &stubRemote{selected: &domain.RemoteCart{
		ID:             "cart_1",
		PaymentSession: &domain.PaymentSession{ProviderID: "pp_stripe_stripe"},
	}}
	_, err := newTestService(remote).Open(context.Background(), "cart_1", "")
	if !errors.Is(err, domain.ErrMissingClientSecret) {
		t.Fatalf("expected missing client secret, got %v", err)
	}
	if domain.KindOf(err) == domain.KindPayment {
		t.Fatalf("missing secret must not look like a declined payment")
	}
}

func TestOpenSurfacesInitFailure(t *testing.T) {
	remote := &stubRemote{initErr: &domain.Error{Kind: domain.KindUpstream, Status: 500}}
	_, err := newTestService(remote).Open(context.Background(), "cart_1", "")
	if domain.KindOf(err) != domain.KindUpstream || remote.lastProvider != "" {
		t.Fatalf("expected init failure before select, got %v", err)
	}
}
