package domain

import (
	"strings"
	"time"
)

// RemoteCart is the storefront's canonical view of the cart owned by the
// commerce backend. Amounts are integer minor units of Currency; totals are
// always the backend's, never computed locally.
type RemoteCart struct {
	ID                string             `json:"id"`
	Email             string             `json:"email,omitempty"`
	Items             []LineItem         `json:"items"`
	Subtotal          int64              `json:"subtotal"`
	ShippingTotal     int64              `json:"shippingTotal"`
	TaxTotal          int64              `json:"taxTotal"`
	DiscountTotal     int64              `json:"discountTotal"`
	Total             int64              `json:"total"`
	Currency          string             `json:"currency"`
	ShippingAddress   *Address           `json:"shippingAddress,omitempty"`
	ShippingMethod    *ShippingMethod    `json:"shippingMethod,omitempty"`
	PaymentSession    *PaymentSession    `json:"paymentSession,omitempty"`
	PaymentSessions   []PaymentSession   `json:"paymentSessions,omitempty"`
	PaymentCollection *PaymentCollection `json:"paymentCollection,omitempty"`
	DiscountCodes     []string           `json:"discountCodes"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
}

// LineItem is one variant-and-quantity entry of a RemoteCart.
type LineItem struct {
	ID           string `json:"id"`
	VariantID    string `json:"variantId"`
	ProductID    string `json:"productId,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	Title        string `json:"title"`
	VariantTitle string `json:"variantTitle,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

// ItemCount returns the sum of all line item quantities.
func (c RemoteCart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// HasDiscount reports whether code is applied, ignoring case.
func (c RemoteCart) HasDiscount(code string) bool {
	for _, applied := range c.DiscountCodes {
		if strings.EqualFold(strings.TrimSpace(applied), strings.TrimSpace(code)) {
			return true
		}
	}
	return false
}
