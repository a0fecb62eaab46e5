package domain

// LocalCartMirror is the display-ready projection of a RemoteCart. It is
// never authoritative: a fresh RemoteCart always replaces it.
type LocalCartMirror struct {
	CartID        string       `json:"cartId"`
	Items         []MirrorItem `json:"items"`
	Subtotal      int64        `json:"subtotal"`
	Total         int64        `json:"total"`
	DiscountTotal int64        `json:"discountTotal"`
	ItemCount     int          `json:"itemCount"`
	Currency      string       `json:"currency"`
	DiscountCodes []string     `json:"discountCodes"`
	Optimistic    bool         `json:"optimistic"`
}

// MirrorItem is one display row of a LocalCartMirror.
type MirrorItem struct {
	Key        int    `json:"key"`
	LineItemID string `json:"lineItemId"`
	VariantID  string `json:"variantId"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unitPrice"`
	Image      string `json:"image,omitempty"`
	Quantity   int    `json:"quantity"`
	Label      string `json:"label,omitempty"`
}
