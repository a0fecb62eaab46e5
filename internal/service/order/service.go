// Package order completes a cart into an order and records it so a repeated
// completion returns the same order.
package order

import (
	"context"
	"errors"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

type remoteCarts interface {
	CompleteCart(ctx context.Context, cartID string) (map[string]interface{}, error)
	Order(obj map[string]interface{}) domain.Order
}

type orderRepo interface {
	GetByCartID(ctx context.Context, cartID string) (*domain.Order, error)
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
}

type sessionRepo interface {
	Delete(ctx context.Context, cartID string) error
}

type retirer interface {
	Retire(ctx context.Context, id cart.Identity, cartID string) error
}

type Service struct {
	remote   remoteCarts
	orders   orderRepo
	sessions sessionRepo
	carts    retirer
	logger   *log.Logger
}

func New(remote remoteCarts, orders orderRepo, sessions sessionRepo, carts retirer, logger *log.Logger) *Service {
	return &Service{remote: remote, orders: orders, sessions: sessions, carts: carts, logger: logger}
}

// Complete turns cartID into an order. On success the cart identity is
// retired. When no order comes back, payment status fields decide the
// user-facing reason.
func (s *Service) Complete(ctx context.Context, id cart.Identity, cartID, paymentIntent string) (*domain.Order, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, domain.ValidationError("Missing cart.", map[string]string{"cartId": "required"})
	}

	if existing, err := s.orders.GetByCartID(ctx, cartID); err == nil {
		s.retire(ctx, id, cartID)
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	payload, err := s.remote.CompleteCart(ctx, cartID)
	if obj, ok := ExtractOrder(payload); ok {
		o := s.remote.Order(obj)
		o.CartID = cartID
		o.PaymentIntent = strings.TrimSpace(paymentIntent)
		if o.ID == "" {
			return nil, &domain.Error{Kind: domain.KindMalformed, Message: "We could not confirm your order. Please contact support.", Detail: "order object without id"}
		}
		if err != nil {
			s.logger.Printf("order: cart %s completed as %s despite error: %v", cartID, o.ID, err)
		}
		stored, cerr := s.orders.Create(ctx, o)
		if cerr != nil {
			// the order exists remotely; losing the local record is not fatal
			s.logger.Printf("order: record %s for cart %s: %v", o.ID, cartID, cerr)
			stored = &o
		}
		s.retire(ctx, id, cartID)
		return stored, nil
	}

	if failure, ok := ClassifyPaymentFailure(payload); ok {
		s.logger.Printf("order: cart %s payment failed: %s (%v)", cartID, failure.Reason, err)
		out := &domain.Error{
			Kind:    domain.KindPayment,
			Code:    "payment_" + failure.Reason,
			Message: failure.Message,
			Err:     err,
		}
		if err != nil {
			out.Detail = err.Error()
		}
		return nil, out
	}
	if err != nil {
		return nil, err
	}
	s.logger.Printf("order: cart %s completion returned no order (keys %v)", cartID, sortedKeys(payload))
	return nil, &domain.Error{
		Kind:    domain.KindPayment,
		Code:    "order_not_created",
		Message: "We could not complete your order. Please try again.",
	}
}

// Find returns the order already recorded for cartID. It never completes the
// cart and leaves its identity and checkout session alone.
func (s *Service) Find(ctx context.Context, cartID string) (*domain.Order, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, domain.ValidationError("Missing cart.", map[string]string{"cartId": "required"})
	}
	return s.orders.GetByCartID(ctx, cartID)
}

func (s *Service) retire(ctx context.Context, id cart.Identity, cartID string) {
	if id != nil {
		if err := s.carts.Retire(ctx, id, cartID); err != nil {
			s.logger.Printf("order: retire cart %s: %v", cartID, err)
		}
	}
	if err := s.sessions.Delete(ctx, cartID); err != nil {
		s.logger.Printf("order: drop checkout session %s: %v", cartID, err)
	}
}
