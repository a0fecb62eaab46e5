package domain

import (
	"strings"
	"time"
)

// Address is a shipping address as submitted to the commerce backend.
type Address struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`
}

// Validate returns the missing required fields keyed by field name.
func (a Address) Validate() map[string]string {
	required := []struct {
		name  string
		value string
	}{
		{"email", a.Email},
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"address1", a.Address1},
		{"city", a.City},
		{"province", a.Province},
		{"postalCode", a.PostalCode},
		{"countryCode", a.CountryCode},
		{"phone", a.Phone},
	}
	fields := map[string]string{}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields[f.name] = "required"
		}
	}
	if email := strings.TrimSpace(a.Email); email != "" && !strings.Contains(email, "@") {
		fields["email"] = "invalid email"
	}
	if cc := strings.TrimSpace(a.CountryCode); cc != "" && len(cc) != 2 {
		fields["countryCode"] = "must be a two-letter country code"
	}
	return fields
}

// ShippingOption is a shipping choice offered for a cart's address.
type ShippingOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	ProviderID string `json:"providerId,omitempty"`
}

// ShippingMethod is the shipping option selected on a cart.
type ShippingMethod struct {
	ID               string `json:"id"`
	ShippingOptionID string `json:"shippingOptionId"`
	Name             string `json:"name,omitempty"`
	Amount           int64  `json:"amount"`
}

// PaymentSession is a provider-scoped session on the remote cart. Data is the
// provider's opaque payload (client secret, provider status).
type PaymentSession struct {
	ID         string                 `json:"id,omitempty"`
	ProviderID string                 `json:"providerId"`
	Status     string                 `json:"status,omitempty"`
	IsSelected bool                   `json:"isSelected,omitempty"`
	Data       map[string]interface{} `json:"-"`
}

// ClientSecret returns the secret the payment widget needs, if any.
func (p PaymentSession) ClientSecret() string {
	for _, key := range []string{"client_secret", "clientSecret"} {
		if v, ok := p.Data[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// PaymentCollection groups payment sessions on newer backend versions.
type PaymentCollection struct {
	ID       string           `json:"id,omitempty"`
	Status   string           `json:"status,omitempty"`
	Sessions []PaymentSession `json:"sessions,omitempty"`
}

// CheckoutStage is a step of the checkout pipeline. Stages are ordered.
type CheckoutStage int

const (
	StageNone CheckoutStage = iota
	StageAddress
	StageShippingMethod
	StagePayment
)

func (s CheckoutStage) String() string {
	switch s {
	case StageAddress:
		return "ADDRESS"
	case StageShippingMethod:
		return "SHIPPING_METHOD"
	case StagePayment:
		return "PAYMENT"
	default:
		return "NONE"
	}
}

// ParseStage parses a stage name case-insensitively.
func ParseStage(v string) (CheckoutStage, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ADDRESS":
		return StageAddress, true
	case "SHIPPING_METHOD", "SHIPPING":
		return StageShippingMethod, true
	case "PAYMENT":
		return StagePayment, true
	default:
		return StageNone, false
	}
}

// CheckoutSession tracks pipeline progress for one cart. Current may move
// backwards; Reached only grows until an earlier stage is resubmitted.
type CheckoutSession struct {
	CartID            string        `json:"cartId"`
	Current           CheckoutStage `json:"-"`
	Reached           CheckoutStage `json:"-"`
	ShippingOptionID  string        `json:"shippingOptionId,omitempty"`
	PaymentProviderID string        `json:"paymentProviderId,omitempty"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Order is the terminal artifact of a completed cart.
type Order struct {
	ID                string                 `json:"id"`
	CartID            string                 `json:"cartId"`
	DisplayID         string                 `json:"displayId,omitempty"`
	Email             string                 `json:"email,omitempty"`
	Status            string                 `json:"status,omitempty"`
	PaymentStatus     string                 `json:"paymentStatus,omitempty"`
	FulfillmentStatus string                 `json:"fulfillmentStatus,omitempty"`
	Total             int64                  `json:"total"`
	Currency          string                 `json:"currency,omitempty"`
	PaymentIntent     string                 `json:"paymentIntent,omitempty"`
	// Raw is the backend order object. It is stored but never sent to clients.
	Raw               map[string]interface{} `json:"-"`
	CreatedAt         time.Time              `json:"createdAt"`
}
