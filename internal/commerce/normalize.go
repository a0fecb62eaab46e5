package commerce

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
)

// AmountUnit declares how the backend reports money amounts. Everything past
// this package is in minor units.
type AmountUnit string

const (
	// UnitMinor means amounts arrive as integer minor units (cents).
	UnitMinor AmountUnit = "minor"
	// UnitMajor means amounts arrive as decimal whole-currency values.
	UnitMajor AmountUnit = "major"
)

// ParseAmountUnit validates a configured unit; empty means minor.
func ParseAmountUnit(v string) (AmountUnit, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(UnitMinor):
		return UnitMinor, nil
	case string(UnitMajor):
		return UnitMajor, nil
	default:
		return "", fmt.Errorf("unknown amount unit %q", v)
	}
}

// ToMinor converts one raw amount into minor units.
func (u AmountUnit) ToMinor(v float64) int64 {
	if u == UnitMajor {
		return int64(math.Round(v * 100))
	}
	return int64(math.Round(v))
}

type normalizer struct {
	unit AmountUnit
}

// cartFromBody finds the cart object in a response body. Bodies are either
// {"cart": {...}} or the cart object itself.
func (n normalizer) cartFromBody(body map[string]interface{}) (*domain.RemoteCart, error) {
	obj, ok := body["cart"].(map[string]interface{})
	if !ok {
		if _, hasID := body["id"]; !hasID {
			return nil, &domain.Error{
				Kind:    domain.KindMalformed,
				Message: "Something went wrong. Please try again.",
				Detail:  "response carries no cart object",
			}
		}
		obj = body
	}
	cart := n.cart(obj)
	if cart.ID == "" {
		return nil, &domain.Error{
			Kind:    domain.KindMalformed,
			Message: "Something went wrong. Please try again.",
			Detail:  "cart object has no id",
		}
	}
	return &cart, nil
}

func (n normalizer) cart(obj map[string]interface{}) domain.RemoteCart {
	cart := domain.RemoteCart{
		ID:            firstString(obj, "id"),
		Email:         firstString(obj, "email"),
		Subtotal:      n.amount(obj, "subtotal", "item_subtotal"),
		ShippingTotal: n.amount(obj, "shipping_total"),
		TaxTotal:      n.amount(obj, "tax_total"),
		DiscountTotal: n.amount(obj, "discount_total"),
		Total:         n.amount(obj, "total"),
		Currency:      strings.ToUpper(firstString(obj, "currency_code")),
		DiscountCodes: discountCodes(obj),
	}
	if cart.Currency == "" {
		if region, ok := obj["region"].(map[string]interface{}); ok {
			cart.Currency = strings.ToUpper(firstString(region, "currency_code"))
		}
	}

	for _, raw := range list(obj, "items", "line_items") {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		cart.Items = append(cart.Items, n.lineItem(item))
	}
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}

	if addr, ok := obj["shipping_address"].(map[string]interface{}); ok {
		a := address(addr)
		if a.Email == "" {
			a.Email = cart.Email
		}
		cart.ShippingAddress = &a
	}
	if methods := list(obj, "shipping_methods"); len(methods) > 0 {
		if m, ok := methods[len(methods)-1].(map[string]interface{}); ok {
			sm := n.shippingMethod(m)
			cart.ShippingMethod = &sm
		}
	}

	for _, raw := range list(obj, "payment_sessions") {
		if s, ok := raw.(map[string]interface{}); ok {
			cart.PaymentSessions = append(cart.PaymentSessions, paymentSession(s))
		}
	}
	if s, ok := obj["payment_session"].(map[string]interface{}); ok {
		ps := paymentSession(s)
		ps.IsSelected = true
		cart.PaymentSession = &ps
	}
	if pc, ok := obj["payment_collection"].(map[string]interface{}); ok {
		coll := domain.PaymentCollection{
			ID:     firstString(pc, "id"),
			Status: firstString(pc, "status"),
		}
		for _, raw := range list(pc, "payment_sessions") {
			if s, ok := raw.(map[string]interface{}); ok {
				coll.Sessions = append(coll.Sessions, paymentSession(s))
			}
		}
		cart.PaymentCollection = &coll
	}

	if v := firstString(obj, "completed_at"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			cart.CompletedAt = &ts
		}
	}
	return cart
}

func (n normalizer) lineItem(item map[string]interface{}) domain.LineItem {
	li := domain.LineItem{
		ID:           firstString(item, "id"),
		VariantID:    firstString(item, "variant_id"),
		ProductID:    firstString(item, "product_id"),
		Quantity:     int(integer(item, "quantity")),
		UnitPrice:    n.amount(item, "unit_price"),
		Title:        firstString(item, "title", "product_title"),
		VariantTitle: firstString(item, "variant_title"),
		Thumbnail:    firstString(item, "thumbnail"),
	}
	if variant, ok := item["variant"].(map[string]interface{}); ok {
		if li.VariantID == "" {
			li.VariantID = firstString(variant, "id")
		}
		if li.VariantTitle == "" {
			li.VariantTitle = firstString(variant, "title")
		}
		if li.ProductID == "" {
			li.ProductID = firstString(variant, "product_id")
		}
	}
	return li
}

func (n normalizer) shippingMethod(m map[string]interface{}) domain.ShippingMethod {
	sm := domain.ShippingMethod{
		ID:               firstString(m, "id"),
		ShippingOptionID: firstString(m, "shipping_option_id"),
		Name:             firstString(m, "name"),
		Amount:           n.amount(m, "amount", "price", "total"),
	}
	if opt, ok := m["shipping_option"].(map[string]interface{}); ok {
		if sm.ShippingOptionID == "" {
			sm.ShippingOptionID = firstString(opt, "id")
		}
		if sm.Name == "" {
			sm.Name = firstString(opt, "name")
		}
	}
	return sm
}

func (n normalizer) shippingOptions(body map[string]interface{}) []domain.ShippingOption {
	out := []domain.ShippingOption{}
	for _, raw := range list(body, "shipping_options") {
		opt, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, domain.ShippingOption{
			ID:         firstString(opt, "id"),
			Name:       firstString(opt, "name"),
			Amount:     n.amount(opt, "amount", "price_incl_tax", "calculated_price"),
			ProviderID: firstString(opt, "provider_id"),
		})
	}
	return out
}

func paymentSession(s map[string]interface{}) domain.PaymentSession {
	ps := domain.PaymentSession{
		ID:         firstString(s, "id"),
		ProviderID: firstString(s, "provider_id"),
		Status:     firstString(s, "status"),
		IsSelected: boolean(s, "is_selected"),
	}
	if data, ok := s["data"].(map[string]interface{}); ok {
		ps.Data = data
	}
	return ps
}

func address(m map[string]interface{}) domain.Address {
	return domain.Address{
		Email:       firstString(m, "email"),
		FirstName:   firstString(m, "first_name"),
		LastName:    firstString(m, "last_name"),
		Address1:    firstString(m, "address_1"),
		Address2:    firstString(m, "address_2"),
		City:        firstString(m, "city"),
		Province:    firstString(m, "province"),
		PostalCode:  firstString(m, "postal_code"),
		CountryCode: strings.ToUpper(firstString(m, "country_code")),
		Phone:       firstString(m, "phone"),
	}
}

// discountCodes collects applied codes from every known shape: discounts
// and promotions as objects with a code, promo_codes as strings or objects.
func discountCodes(obj map[string]interface{}) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(code string) {
		code = strings.TrimSpace(code)
		key := strings.ToUpper(code)
		if code == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, code)
	}
	for _, field := range []string{"discounts", "promotions", "promo_codes"} {
		for _, raw := range list(obj, field) {
			switch v := raw.(type) {
			case string:
				add(v)
			case map[string]interface{}:
				add(firstString(v, "code"))
			}
		}
	}
	return out
}

func (n normalizer) amount(m map[string]interface{}, keys ...string) int64 {
	for _, k := range keys {
		if v, ok := number(m[k]); ok {
			return n.unit.ToMinor(v)
		}
	}
	return 0
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func integer(m map[string]interface{}, key string) int64 {
	f, _ := number(m[key])
	return int64(math.Round(f))
}

func boolean(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func list(m map[string]interface{}, keys ...string) []interface{} {
	for _, k := range keys {
		if v, ok := m[k].([]interface{}); ok {
			return v
		}
	}
	return nil
}

// firstString returns the first non-empty string (or number rendered as a
// string) found under keys.
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
