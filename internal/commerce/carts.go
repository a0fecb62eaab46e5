package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

const storePath = "/store"

// CartUpdate is a partial update of cart fields. Nil/empty fields are left
// untouched, except DiscountCodes, which replaces the list when non-nil.
type CartUpdate struct {
	Email           string
	ShippingAddress *domain.Address
	DiscountCodes   []string
}

type wireAddress struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type wireDiscount struct {
	Code string `json:"code"`
}

type wireCartUpdate struct {
	Email           string          `json:"email,omitempty"`
	ShippingAddress *wireAddress    `json:"shipping_address,omitempty"`
	Discounts       *[]wireDiscount `json:"discounts,omitempty"`
}

func cartPath(cartID string, rest ...string) string {
	p := storePath + "/carts/" + url.PathEscape(cartID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

func (c *Client) norm() normalizer {
	return normalizer{unit: c.unit}
}

func (c *Client) cartCall(ctx context.Context, method, path string, body interface{}, opts ...requestOption) (*domain.RemoteCart, error) {
	resp, err := c.do(ctx, method, path, body, opts...)
	if err != nil {
		return nil, err
	}
	// line item deletes answer with the cart under "parent"
	if parent, ok := resp["parent"].(map[string]interface{}); ok {
		if _, hasCart := resp["cart"]; !hasCart {
			resp = map[string]interface{}{"cart": parent}
		}
	}
	return c.norm().cartFromBody(resp)
}

// CreateCart creates an empty cart.
func (c *Client) CreateCart(ctx context.Context) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, storePath+"/carts", map[string]interface{}{},
		withIdempotencyKey(uuid.NewString()))
}

// GetCart fetches a cart by id. Any not-found answer maps to KindNotFound.
func (c *Client) GetCart(ctx context.Context, cartID string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodGet, cartPath(cartID), nil)
}

// AddLineItem adds quantity of a variant to the cart.
func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "line-items"), map[string]interface{}{
		"variant_id": variantID,
		"quantity":   quantity,
	})
}

// UpdateLineItem sets the quantity of a line item.
func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "line-items", lineItemID), map[string]interface{}{
		"quantity": quantity,
	})
}

// DeleteLineItem removes a line item.
func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineItemID string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodDelete, cartPath(cartID, "line-items", lineItemID), nil)
}

// UpdateCart is the generic cart update call.
func (c *Client) UpdateCart(ctx context.Context, cartID string, in CartUpdate) (*domain.RemoteCart, error) {
	body := wireCartUpdate{Email: strings.TrimSpace(in.Email)}
	if a := in.ShippingAddress; a != nil {
		body.ShippingAddress = &wireAddress{
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Address1:    a.Address1,
			Address2:    a.Address2,
			City:        a.City,
			Province:    a.Province,
			PostalCode:  a.PostalCode,
			CountryCode: strings.ToLower(a.CountryCode),
			Phone:       a.Phone,
		}
	}
	if in.DiscountCodes != nil {
		discounts := make([]wireDiscount, 0, len(in.DiscountCodes))
		for _, code := range in.DiscountCodes {
			discounts = append(discounts, wireDiscount{Code: code})
		}
		body.Discounts = &discounts
	}
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID), body)
}

// AddPromotion applies a code through the dedicated promotions endpoint.
// Older backends do not have it and answer 404 or 405.
func (c *Client) AddPromotion(ctx context.Context, cartID, code string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "promotions"), map[string]interface{}{
		"promo_codes": []string{code},
	})
}

// ListShippingOptions lists options available for the cart's address.
func (c *Client) ListShippingOptions(ctx context.Context, cartID string) ([]domain.ShippingOption, error) {
	resp, err := c.do(ctx, http.MethodGet, storePath+"/shipping-options?cart_id="+url.QueryEscape(cartID), nil)
	if err != nil {
		return nil, err
	}
	return c.norm().shippingOptions(resp), nil
}

// AddShippingMethod selects a shipping option for the cart.
func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "shipping-methods"), map[string]interface{}{
		"option_id": optionID,
	})
}

// InitPaymentSessions creates payment sessions for the cart. The backend
// treats repeated calls as a refresh, so the call is retried freely.
func (c *Client) InitPaymentSessions(ctx context.Context, cartID string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "payment-sessions"), nil,
		withIdempotencyKey(uuid.NewString()))
}

// SelectPaymentSession makes providerID the cart's active payment session.
func (c *Client) SelectPaymentSession(ctx context.Context, cartID, providerID string) (*domain.RemoteCart, error) {
	return c.cartCall(ctx, http.MethodPost, cartPath(cartID, "payment-session"), map[string]interface{}{
		"provider_id": providerID,
	})
}

// CompleteCart asks the backend to turn the cart into an order. The raw
// payload is returned as-is, also alongside error statuses, because its
// shape varies and the order finalizer searches it structurally. The
// idempotency key is derived from the cart so retries cannot double-order.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (map[string]interface{}, error) {
	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte("cart-complete:"+cartID)).String()
	return c.do(ctx, http.MethodPost, cartPath(cartID, "complete"), nil, withIdempotencyKey(key))
}
