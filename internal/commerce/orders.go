package commerce

import (
	"strings"
	"time"

	"storefront/internal/domain"
)

// Order maps an order object found in a completion payload onto
// domain.Order. The raw object is kept for auditing.
func (c *Client) Order(obj map[string]interface{}) domain.Order {
	return c.norm().order(obj)
}

func (n normalizer) order(obj map[string]interface{}) domain.Order {
	o := domain.Order{
		ID:                firstString(obj, "id"),
		CartID:            firstString(obj, "cart_id"),
		DisplayID:         firstString(obj, "display_id"),
		Email:             firstString(obj, "email"),
		Status:            firstString(obj, "status"),
		PaymentStatus:     firstString(obj, "payment_status"),
		FulfillmentStatus: firstString(obj, "fulfillment_status"),
		Total:             n.amount(obj, "total"),
		Currency:          strings.ToUpper(firstString(obj, "currency_code")),
		Raw:               obj,
	}
	if raw := firstString(obj, "created_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			o.CreatedAt = t
		}
	}
	return o
}
