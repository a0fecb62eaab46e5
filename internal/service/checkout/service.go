// Package checkout drives a cart through ADDRESS, SHIPPING_METHOD and
// PAYMENT. Forward moves are validated; backward moves are always allowed
// and leave the remote cart untouched.
package checkout

import (
	"context"
	"errors"
	"log"
	"strings"

	"storefront/internal/commerce"
	"storefront/internal/domain"
	"storefront/internal/service/payment"
)

type remoteCarts interface {
	GetCart(ctx context.Context, cartID string) (*domain.RemoteCart, error)
	UpdateCart(ctx context.Context, cartID string, in commerce.CartUpdate) (*domain.RemoteCart, error)
	ListShippingOptions(ctx context.Context, cartID string) ([]domain.ShippingOption, error)
	AddShippingMethod(ctx context.Context, cartID, optionID string) (*domain.RemoteCart, error)
}

type paymentOpener interface {
	Open(ctx context.Context, cartID, providerID string) (*payment.Session, error)
}

type sessionRepo interface {
	Get(ctx context.Context, cartID string) (*domain.CheckoutSession, error)
	Save(ctx context.Context, s domain.CheckoutSession) error
}

type publisher interface {
	Publish(ctx context.Context, cart domain.RemoteCart) domain.LocalCartMirror
}

type Service struct {
	remote    remoteCarts
	payments  paymentOpener
	sessions  sessionRepo
	publisher publisher
	logger    *log.Logger
}

func New(remote remoteCarts, payments paymentOpener, sessions sessionRepo, publisher publisher, logger *log.Logger) *Service {
	return &Service{remote: remote, payments: payments, sessions: sessions, publisher: publisher, logger: logger}
}

// State is the checkout position of a cart.
type State struct {
	CartID           string   `json:"cartId"`
	Stage            string   `json:"stage"`
	Reached          string   `json:"reached"`
	ShippingOptionID string   `json:"shippingOptionId,omitempty"`
	Allowed          []string `json:"allowed"`
}

// AddressResult is the outcome of ADDRESS -> SHIPPING_METHOD.
type AddressResult struct {
	Cart    *domain.RemoteCart      `json:"cart"`
	Options []domain.ShippingOption `json:"shippingOptions"`
}

// ShippingResult is the outcome of SHIPPING_METHOD -> PAYMENT.
type ShippingResult struct {
	Cart    *domain.RemoteCart `json:"cart"`
	Payment *payment.Session   `json:"payment"`
}

func stageError(message string) error {
	return &domain.Error{Kind: domain.KindStage, Code: "checkout_stage", Message: message}
}

var (
	errNoShippingMethod = stageError("Choose a shipping method first.")
	errNoAddress        = stageError("Enter a shipping address first.")
)

// State reports the stage of cartID and the stages that may be entered.
func (s *Service) State(ctx context.Context, cartID string) (*State, error) {
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return toState(sess), nil
}

// EnterAddress starts checkout. The cart must hold at least one item.
func (s *Service) EnterAddress(ctx context.Context, cartID string) (*domain.RemoteCart, error) {
	cart, err := s.nonEmptyCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.advance(sess, domain.StageAddress)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return cart, nil
}

// SubmitAddress stores the shipping address on the remote cart and lists the
// shipping options for it. Backend rejections are returned as they came.
func (s *Service) SubmitAddress(ctx context.Context, cartID string, addr domain.Address) (*AddressResult, error) {
	if fields := addr.Validate(); len(fields) > 0 {
		return nil, domain.ValidationError("Please check the highlighted fields.", fields)
	}
	if _, err := s.nonEmptyCart(ctx, cartID); err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}

	addr.CountryCode = strings.ToUpper(strings.TrimSpace(addr.CountryCode))
	cart, err := s.remote.UpdateCart(ctx, cartID, commerce.CartUpdate{
		Email:           addr.Email,
		ShippingAddress: &addr,
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, *cart)

	options, err := s.remote.ListShippingOptions(ctx, cartID)
	if err != nil {
		return nil, err
	}

	s.advance(sess, domain.StageShippingMethod)
	// options depend on the address, so an earlier choice no longer holds
	sess.ShippingOptionID = ""
	if sess.Reached > domain.StageShippingMethod {
		sess.Reached = domain.StageShippingMethod
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return &AddressResult{Cart: cart, Options: options}, nil
}

// ShippingOptions lists options once an address was accepted.
func (s *Service) ShippingOptions(ctx context.Context, cartID string) ([]domain.ShippingOption, error) {
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if sess.Reached < domain.StageShippingMethod {
		return nil, errNoAddress
	}
	return s.remote.ListShippingOptions(ctx, cartID)
}

// SelectShippingMethod records the option and immediately opens the payment
// session against the now final total.
func (s *Service) SelectShippingMethod(ctx context.Context, cartID, optionID, providerID string) (*ShippingResult, error) {
	optionID = strings.TrimSpace(optionID)
	if optionID == "" {
		return nil, domain.ValidationError("Choose a shipping method.", map[string]string{"optionId": "required"})
	}
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if sess.Reached < domain.StageShippingMethod {
		return nil, errNoAddress
	}

	cart, err := s.remote.AddShippingMethod(ctx, cartID, optionID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, *cart)
	sess.ShippingOptionID = optionID
	sess.Current = domain.StageShippingMethod
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	pay, err := s.openPayment(ctx, sess, providerID)
	if err != nil {
		return nil, err
	}
	return &ShippingResult{Cart: pay.Cart, Payment: pay}, nil
}

// OpenPayment enters PAYMENT. It is refused until a shipping method was
// selected successfully.
func (s *Service) OpenPayment(ctx context.Context, cartID, providerID string) (*payment.Session, error) {
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return s.openPayment(ctx, sess, providerID)
}

func (s *Service) openPayment(ctx context.Context, sess *domain.CheckoutSession, providerID string) (*payment.Session, error) {
	if sess.Reached < domain.StageShippingMethod || sess.ShippingOptionID == "" {
		return nil, errNoShippingMethod
	}
	pay, err := s.payments.Open(ctx, sess.CartID, providerID)
	if err != nil {
		return nil, err
	}
	s.advance(sess, domain.StagePayment)
	sess.Current = domain.StagePayment
	sess.PaymentProviderID = pay.ProviderID
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return pay, nil
}

// EnterStage moves to stage. Stages already reached can always be entered
// again and only re-fetch the cart; a new stage must satisfy its entry rule.
func (s *Service) EnterStage(ctx context.Context, cartID string, stage domain.CheckoutStage) (*State, *domain.RemoteCart, error) {
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case stage <= domain.StageNone || stage > domain.StagePayment:
		return nil, nil, domain.ValidationError("Unknown checkout stage.", map[string]string{"stage": "invalid"})
	case stage == domain.StageAddress && sess.Reached < domain.StageAddress:
		cart, err := s.EnterAddress(ctx, cartID)
		if err != nil {
			return nil, nil, err
		}
		sess, err = s.session(ctx, cartID)
		if err != nil {
			return nil, nil, err
		}
		return toState(sess), cart, nil
	case stage == domain.StagePayment && sess.Reached < domain.StagePayment:
		if _, err := s.openPayment(ctx, sess, sess.PaymentProviderID); err != nil {
			return nil, nil, err
		}
	case stage > sess.Reached:
		return nil, nil, errNoAddress
	}

	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	s.publisher.Publish(ctx, *cart)
	sess.Current = stage
	if err := s.save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return toState(sess), cart, nil
}

// Back steps one stage back without touching the remote cart.
func (s *Service) Back(ctx context.Context, cartID string) (*State, *domain.RemoteCart, error) {
	sess, err := s.session(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	target := sess.Current - 1
	if target < domain.StageAddress {
		target = domain.StageAddress
	}
	return s.EnterStage(ctx, cartID, target)
}

func (s *Service) nonEmptyCart(ctx context.Context, cartID string) (*domain.RemoteCart, error) {
	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.ItemCount() == 0 {
		return nil, domain.ErrEmptyCart
	}
	return cart, nil
}

func (s *Service) session(ctx context.Context, cartID string) (*domain.CheckoutSession, error) {
	if strings.TrimSpace(cartID) == "" {
		return nil, domain.ValidationError("Missing cart.", map[string]string{"cartId": "required"})
	}
	sess, err := s.sessions.Get(ctx, cartID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.CheckoutSession{CartID: cartID}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) advance(sess *domain.CheckoutSession, stage domain.CheckoutStage) {
	sess.Current = stage
	if stage > sess.Reached {
		sess.Reached = stage
	}
}

func (s *Service) save(ctx context.Context, sess *domain.CheckoutSession) error {
	if err := s.sessions.Save(ctx, *sess); err != nil {
		s.logger.Printf("checkout: save session %s: %v", sess.CartID, err)
		return err
	}
	return nil
}

func toState(sess *domain.CheckoutSession) *State {
	st := &State{
		CartID:           sess.CartID,
		Stage:            sess.Current.String(),
		Reached:          sess.Reached.String(),
		ShippingOptionID: sess.ShippingOptionID,
		Allowed:          []string{domain.StageAddress.String()},
	}
	for stage := domain.StageShippingMethod; stage <= sess.Reached; stage++ {
		st.Allowed = append(st.Allowed, stage.String())
	}
	if sess.Reached == domain.StageShippingMethod && sess.ShippingOptionID != "" {
		st.Allowed = append(st.Allowed, domain.StagePayment.String())
	}
	return st
}
