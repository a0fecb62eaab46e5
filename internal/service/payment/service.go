// Package payment opens the provider payment session of a cart and hands
// back the client secret the browser widget needs.
package payment

import (
	"context"
	"log"
	"strings"

	"storefront/internal/domain"
)

type remoteCarts interface {
	InitPaymentSessions(ctx context.Context, cartID string) (*domain.RemoteCart, error)
	SelectPaymentSession(ctx context.Context, cartID, providerID string) (*domain.RemoteCart, error)
}

type publisher interface {
	Publish(ctx context.Context, cart domain.RemoteCart) domain.LocalCartMirror
}

type Service struct {
	remote          remoteCarts
	publisher       publisher
	defaultProvider string
	logger          *log.Logger
}

func New(remote remoteCarts, publisher publisher, defaultProvider string, logger *log.Logger) *Service {
	return &Service{remote: remote, publisher: publisher, defaultProvider: defaultProvider, logger: logger}
}

// Session is an opened payment session.
type Session struct {
	ProviderID   string             `json:"providerId"`
	ClientSecret string             `json:"clientSecret"`
	Cart         *domain.RemoteCart `json:"cart"`
}

// Open initializes sessions, selects providerID and extracts its client
// secret. A missing secret is a configuration failure, never a decline.
func (s *Service) Open(ctx context.Context, cartID, providerID string) (*Session, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		providerID = s.defaultProvider
	}
	if providerID == "" {
		return nil, domain.ValidationError("Choose a payment method.", map[string]string{"providerId": "required"})
	}

	if _, err := s.remote.InitPaymentSessions(ctx, cartID); err != nil {
		return nil, err
	}
	cart, err := s.remote.SelectPaymentSession(ctx, cartID, providerID)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, *cart)
	}

	secret := ClientSecret(*cart, providerID)
	if secret == "" {
		s.logger.Printf("payment: cart %s provider %s returned no client secret", cartID, providerID)
		return nil, &domain.Error{
			Kind:    domain.ErrMissingClientSecret.Kind,
			Code:    "payment_client_secret_missing",
			Message: domain.ErrMissingClientSecret.Message,
			Detail:  "provider " + providerID + " returned no client secret",
		}
	}
	return &Session{ProviderID: providerID, ClientSecret: secret, Cart: cart}, nil
}

// ClientSecret finds providerID's secret on the selected session, the
// session list, or the payment collection, in that order.
func ClientSecret(cart domain.RemoteCart, providerID string) string {
	if ps := cart.PaymentSession; ps != nil && matches(*ps, providerID) {
		if secret := ps.ClientSecret(); secret != "" {
			return secret
		}
	}
	for _, ps := range cart.PaymentSessions {
		if matches(ps, providerID) {
			if secret := ps.ClientSecret(); secret != "" {
				return secret
			}
		}
	}
	if pc := cart.PaymentCollection; pc != nil {
		for _, ps := range pc.Sessions {
			if matches(ps, providerID) {
				if secret := ps.ClientSecret(); secret != "" {
					return secret
				}
			}
		}
	}
	return ""
}

func matches(ps domain.PaymentSession, providerID string) bool {
	return ps.ProviderID == "" || ps.ProviderID == providerID
}
