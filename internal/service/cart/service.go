// Package cart is the only writer of cart state: it verifies or creates the
// remote cart, forwards mutations, and republishes the mirror afterwards.
package cart

import (
	"context"
	"errors"
	"log"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/mirror"
)

// Identity is the visitor's cart identity for the current request.
type Identity interface {
	Current(ctx context.Context) (string, bool)
	Set(ctx context.Context, cartID string) error
	Clear(ctx context.Context) error
}

type remoteCarts interface {
	CreateCart(ctx context.Context) (*domain.RemoteCart, error)
	GetCart(ctx context.Context, cartID string) (*domain.RemoteCart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.RemoteCart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.RemoteCart, error)
	DeleteLineItem(ctx context.Context, cartID, lineItemID string) (*domain.RemoteCart, error)
}

// ChangeListener is told the backend's item count after every mutation.
type ChangeListener interface {
	CartChanged(ctx context.Context, cartID string, itemCount int)
}

type Service struct {
	remote   remoteCarts
	mirrors  mirror.Store
	listener ChangeListener
	logger   *log.Logger
}

func New(remote remoteCarts, mirrors mirror.Store, listener ChangeListener, logger *log.Logger) *Service {
	return &Service{remote: remote, mirrors: mirrors, listener: listener, logger: logger}
}

// AddInput carries the variant to add plus display fields used for the
// optimistic mirror while the backend answers.
type AddInput struct {
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Quantity     int    `json:"quantity"`
	Title        string `json:"title,omitempty"`
	VariantTitle string `json:"variantTitle,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	UnitPrice    int64  `json:"unitPrice,omitempty"`
}

type ClearFailure struct {
	LineItemID string
	Err        error
}

// ClearResult reports a clear that may have removed only some items.
type ClearResult struct {
	Cart    *domain.RemoteCart
	Removed []string
	Failed  []ClearFailure
}

func (r ClearResult) Partial() bool {
	return len(r.Failed) > 0
}

// EnsureCart returns the visitor's cart if the backend still has it and
// otherwise creates one and stores its identity. Only transport failures
// are returned from the existence probe; any answer from the backend other
// than success counts as a missing cart.
func (s *Service) EnsureCart(ctx context.Context, id Identity) (*domain.RemoteCart, error) {
	if cartID, ok := id.Current(ctx); ok {
		cart, err := s.remote.GetCart(ctx, cartID)
		if err == nil && cart.CompletedAt == nil {
			return cart, nil
		}
		if domain.KindOf(err) == domain.KindTransport {
			return nil, err
		}
		s.logger.Printf("cart: stored cart %s unusable, creating a new one: %v", cartID, err)
	}

	created, err := s.remote.CreateCart(ctx)
	if err != nil {
		return nil, err
	}
	if err := id.Set(ctx, created.ID); err != nil {
		s.logger.Printf("cart: store identity %s: %v", created.ID, err)
	}
	s.Publish(ctx, *created)
	return created, nil
}

// Get returns the current cart without creating one.
func (s *Service) Get(ctx context.Context, id Identity) (*domain.RemoteCart, error) {
	cartID, ok := id.Current(ctx)
	if !ok {
		return nil, domain.ErrNotFound
	}
	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, *cart)
	return cart, nil
}

// Summary returns the stored mirror, projecting a fresh fetch when none is
// stored.
func (s *Service) Summary(ctx context.Context, id Identity) (*domain.LocalCartMirror, error) {
	cartID, ok := id.Current(ctx)
	if !ok {
		return nil, domain.ErrNotFound
	}
	m, err := s.mirrors.Get(ctx, cartID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Printf("cart: read mirror %s: %v", cartID, err)
	}
	cart, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	projected := mirror.Project(*cart)
	return &projected, nil
}

func (s *Service) AddItem(ctx context.Context, id Identity, in AddInput) (*domain.RemoteCart, error) {
	in.VariantID = strings.TrimSpace(in.VariantID)
	fields := map[string]string{}
	if in.VariantID == "" {
		fields["variantId"] = "required"
	}
	if in.Quantity < 1 {
		fields["quantity"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return nil, domain.ValidationError("Invalid item.", fields)
	}

	cart, err := s.EnsureCart(ctx, id)
	if err != nil {
		return nil, err
	}
	restore := s.optimistic(ctx, cart.ID, mirror.Change{
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Name:      in.Title,
		UnitPrice: in.UnitPrice,
		Image:     in.Thumbnail,
		Label:     in.VariantTitle,
	})
	echoed, err := s.remote.AddLineItem(ctx, cart.ID, in.VariantID, in.Quantity)
	if err != nil {
		restore()
		return nil, err
	}
	return s.refresh(ctx, cart.ID, echoed), nil
}

// UpdateItem sets a line item's quantity; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, id Identity, lineItemID string, quantity int) (*domain.RemoteCart, error) {
	if strings.TrimSpace(lineItemID) == "" {
		return nil, domain.ValidationError("Invalid item.", map[string]string{"lineItemId": "required"})
	}
	if quantity < 0 {
		return nil, domain.ValidationError("Invalid item.", map[string]string{"quantity": "must not be negative"})
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, id, lineItemID)
	}

	cart, err := s.EnsureCart(ctx, id)
	if err != nil {
		return nil, err
	}
	restore := s.optimistic(ctx, cart.ID, mirror.Change{LineItemID: lineItemID, Quantity: quantity})
	echoed, err := s.remote.UpdateLineItem(ctx, cart.ID, lineItemID, quantity)
	if err != nil {
		restore()
		return nil, err
	}
	return s.refresh(ctx, cart.ID, echoed), nil
}

func (s *Service) RemoveItem(ctx context.Context, id Identity, lineItemID string) (*domain.RemoteCart, error) {
	if strings.TrimSpace(lineItemID) == "" {
		return nil, domain.ValidationError("Invalid item.", map[string]string{"lineItemId": "required"})
	}
	cart, err := s.EnsureCart(ctx, id)
	if err != nil {
		return nil, err
	}
	restore := s.optimistic(ctx, cart.ID, mirror.Change{LineItemID: lineItemID, Quantity: 0})
	echoed, err := s.remote.DeleteLineItem(ctx, cart.ID, lineItemID)
	if err != nil {
		restore()
		return nil, err
	}
	return s.refresh(ctx, cart.ID, echoed), nil
}

// Clear removes every line item one by one. Failed removals do not stop the
// loop; they are reported so the caller can retry the remainder. A fully
// cleared cart is retired together with its identity.
func (s *Service) Clear(ctx context.Context, id Identity) (*ClearResult, error) {
	cart, err := s.EnsureCart(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &ClearResult{}
	var last *domain.RemoteCart
	for _, item := range cart.Items {
		updated, err := s.remote.DeleteLineItem(ctx, cart.ID, item.ID)
		if err != nil {
			s.logger.Printf("cart: clear %s: remove %s: %v", cart.ID, item.ID, err)
			res.Failed = append(res.Failed, ClearFailure{LineItemID: item.ID, Err: err})
			continue
		}
		res.Removed = append(res.Removed, item.ID)
		last = updated
	}
	if last == nil {
		last = cart
	}
	res.Cart = s.refresh(ctx, cart.ID, last)

	if !res.Partial() {
		if err := s.Retire(ctx, id, cart.ID); err != nil {
			s.logger.Printf("cart: retire %s: %v", cart.ID, err)
		}
	}
	return res, nil
}

// Publish projects cart into the mirror store and tells the listener about
// the new item count. It is the single write path for mirrors.
func (s *Service) Publish(ctx context.Context, cart domain.RemoteCart) domain.LocalCartMirror {
	m := mirror.Project(cart)
	if err := s.mirrors.Put(ctx, m); err != nil {
		s.logger.Printf("cart: store mirror %s: %v", cart.ID, err)
	}
	if s.listener != nil {
		s.listener.CartChanged(ctx, cart.ID, m.ItemCount)
	}
	return m
}

// Retire forgets cartID: identity mirrors, cart mirror and observed count.
func (s *Service) Retire(ctx context.Context, id Identity, cartID string) error {
	err := id.Clear(ctx)
	if derr := s.mirrors.Delete(ctx, cartID); derr != nil {
		err = errors.Join(err, derr)
	}
	if s.listener != nil {
		s.listener.CartChanged(ctx, cartID, 0)
	}
	return err
}

// refresh re-reads the cart after a mutation; a later request may already
// have changed it. The echoed cart is used only when the re-read fails.
func (s *Service) refresh(ctx context.Context, cartID string, echoed *domain.RemoteCart) *domain.RemoteCart {
	cart, err := s.remote.GetCart(ctx, cartID)
	if err != nil {
		s.logger.Printf("cart: refresh %s: %v", cartID, err)
		cart = echoed
	}
	if cart == nil {
		return nil
	}
	s.Publish(ctx, *cart)
	return cart
}

// optimistic applies change to the stored mirror and returns a func that
// puts the previous mirror back.
func (s *Service) optimistic(ctx context.Context, cartID string, change mirror.Change) func() {
	prev, err := s.mirrors.Get(ctx, cartID)
	if err != nil {
		return func() {}
	}
	if err := s.mirrors.Put(ctx, mirror.ApplyOptimistic(*prev, change)); err != nil {
		s.logger.Printf("cart: optimistic mirror %s: %v", cartID, err)
		return func() {}
	}
	return func() {
		if err := s.mirrors.Put(ctx, *prev); err != nil {
			s.logger.Printf("cart: restore mirror %s: %v", cartID, err)
		}
	}
}
