// Package discount applies and removes promotional codes on a remote cart.
package discount

import (
	"context"
	"errors"
	"log"
	"strings"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/mirror"
)

const invalidCodeMessage = "Promotional code not valid"

type remoteCarts interface {
	GetCart(ctx context.Context, cartID string) (*domain.RemoteCart, error)
	AddPromotion(ctx context.Context, cartID, code string) (*domain.RemoteCart, error)
	UpdateCart(ctx context.Context, cartID string, in commerce.CartUpdate) (*domain.RemoteCart, error)
}

type publisher interface {
	Publish(ctx context.Context, cart domain.RemoteCart) domain.LocalCartMirror
}

type Service struct {
	remote    remoteCarts
	mirrors   mirror.Store
	publisher publisher
	logger    *log.Logger
}

func New(remote remoteCarts, mirrors mirror.Store, publisher publisher, logger *log.Logger) *Service {
	return &Service{remote: remote, mirrors: mirrors, publisher: publisher, logger: logger}
}

// ApplyResult reports an accepted code. Pending is set when the backend
// accepted the code but shows no reduction yet, which happens for discounts
// that only apply once shipping is chosen.
type ApplyResult struct {
	Cart     *domain.RemoteCart `json:"cart"`
	Code     string             `json:"code"`
	Applied  bool               `json:"applied"`
	Pending  bool               `json:"pending"`
	Strategy string             `json:"-"`
}

// Normalize trims and upper-cases a code so "save10" and "SAVE10" match.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func alreadyApplied(code string) error {
	return &domain.Error{
		Kind:    domain.KindConflict,
		Code:    "discount_already_applied",
		Message: "Code " + code + " is already applied.",
		Fields:  map[string]string{"code": "already applied"},
	}
}

func (s *Service) Apply(ctx context.Context, cartID, code string) (*ApplyResult, error) {
	code = Normalize(code)
	if code == "" {
		return nil, domain.ValidationError("Enter a promotional code.", map[string]string{"code": "required"})
	}

	existing, err := s.knownCodes(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if contains(existing, code) {
		return nil, alreadyApplied(code)
	}

	cart, strategy, err := commerce.RunStrategies(ctx, s.logger, commerce.IsEndpointUnavailable,
		commerce.Strategy[*domain.RemoteCart]{
			Name: "promotions-endpoint",
			Run: func(ctx context.Context) (*domain.RemoteCart, error) {
				return s.remote.AddPromotion(ctx, cartID, code)
			},
		},
		commerce.Strategy[*domain.RemoteCart]{
			Name: "cart-update",
			Run: func(ctx context.Context) (*domain.RemoteCart, error) {
				current, err := s.remote.GetCart(ctx, cartID)
				if err != nil {
					return nil, err
				}
				if current.HasDiscount(code) {
					return nil, alreadyApplied(code)
				}
				codes := append(append([]string{}, current.DiscountCodes...), code)
				return s.remote.UpdateCart(ctx, cartID, commerce.CartUpdate{DiscountCodes: codes})
			},
		},
	)
	if err != nil {
		return nil, codeError(err)
	}

	s.publisher.Publish(ctx, *cart)
	res := &ApplyResult{
		Cart:     cart,
		Code:     code,
		Applied:  true,
		Strategy: strategy,
	}
	res.Pending = cart.DiscountTotal == 0
	if res.Pending {
		s.logger.Printf("discount: %s accepted on cart %s via %s, no reduction yet", code, cartID, strategy)
	}
	return res, nil
}

// Remove drops code from the cart through the generic update call. A code
// that is not on the cart leaves the cart untouched.
func (s *Service) Remove(ctx context.Context, cartID, code string) (*domain.RemoteCart, error) {
	code = Normalize(code)
	if code == "" {
		return nil, domain.ValidationError("Enter a promotional code.", map[string]string{"code": "required"})
	}
	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	kept := make([]string, 0, len(cart.DiscountCodes))
	for _, c := range cart.DiscountCodes {
		if !strings.EqualFold(c, code) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cart.DiscountCodes) {
		return cart, nil
	}
	updated, err := s.remote.UpdateCart(ctx, cartID, commerce.CartUpdate{DiscountCodes: kept})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, *updated)
	return updated, nil
}

// knownCodes reads the codes from the stored mirror, or from the backend
// when no mirror is stored.
func (s *Service) knownCodes(ctx context.Context, cartID string) ([]string, error) {
	if m, err := s.mirrors.Get(ctx, cartID); err == nil {
		return m.DiscountCodes, nil
	}
	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, *cart)
	return cart.DiscountCodes, nil
}

// codeError gives rejected codes a user-facing message.
func codeError(err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		return err
	}
	switch de.Kind {
	case domain.KindValidation, domain.KindNotFound, domain.KindConflict:
	default:
		return err
	}
	if de.Message != "" {
		return err
	}
	out := *de
	out.Kind = domain.KindValidation
	out.Message = invalidCodeMessage
	out.Err = err
	return &out
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
