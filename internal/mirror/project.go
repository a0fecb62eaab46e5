// Package mirror derives the display-ready LocalCartMirror from a RemoteCart
// and holds the current mirrors for fast rendering.
package mirror

import "storefront/internal/domain"

// Project maps a RemoteCart onto its display projection. It is pure: equal
// input yields equal output. Prices and totals are copied verbatim; they are
// already in minor units of the cart currency.
func Project(cart domain.RemoteCart) domain.LocalCartMirror {
	m := domain.LocalCartMirror{
		CartID:        cart.ID,
		Items:         make([]domain.MirrorItem, 0, len(cart.Items)),
		Subtotal:      cart.Subtotal,
		Total:         cart.Total,
		DiscountTotal: cart.DiscountTotal,
		Currency:      cart.Currency,
		DiscountCodes: append([]string{}, cart.DiscountCodes...),
	}
	for i, item := range cart.Items {
		m.Items = append(m.Items, domain.MirrorItem{
			Key:        i + 1,
			LineItemID: item.ID,
			VariantID:  item.VariantID,
			Name:       item.Title,
			UnitPrice:  item.UnitPrice,
			Image:      item.Thumbnail,
			Quantity:   item.Quantity,
			Label:      item.VariantTitle,
		})
		m.ItemCount += item.Quantity
	}
	return m
}

// Change is an optimistic edit applied before the backend answers.
// Quantity 0 removes the row. A change for an unknown line item with a
// VariantID appends a new row (add-to-cart).
type Change struct {
	LineItemID string
	VariantID  string
	Quantity   int
	Name       string
	UnitPrice  int64
	Image      string
	Label      string
}

// ApplyOptimistic returns a copy of m with change applied and subtotal and
// item count recomputed locally. The result is marked Optimistic until the
// next Project replaces it.
func ApplyOptimistic(m domain.LocalCartMirror, change Change) domain.LocalCartMirror {
	out := m
	out.Items = make([]domain.MirrorItem, 0, len(m.Items)+1)
	matched := false
	for _, item := range m.Items {
		if sameRow(item, change) {
			matched = true
			if change.LineItemID == "" {
				// add-to-cart of a variant already present accumulates
				item.Quantity += change.Quantity
			} else {
				item.Quantity = change.Quantity
			}
			if item.Quantity <= 0 {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	if !matched && change.Quantity > 0 && change.VariantID != "" {
		out.Items = append(out.Items, domain.MirrorItem{
			LineItemID: change.LineItemID,
			VariantID:  change.VariantID,
			Name:       change.Name,
			UnitPrice:  change.UnitPrice,
			Image:      change.Image,
			Quantity:   change.Quantity,
			Label:      change.Label,
		})
	}

	out.Subtotal = 0
	out.ItemCount = 0
	for i := range out.Items {
		out.Items[i].Key = i + 1
		out.Subtotal += out.Items[i].UnitPrice * int64(out.Items[i].Quantity)
		out.ItemCount += out.Items[i].Quantity
	}
	out.Total = out.Subtotal - out.DiscountTotal
	out.Optimistic = true
	return out
}

func sameRow(item domain.MirrorItem, change Change) bool {
	if change.LineItemID != "" {
		return item.LineItemID == change.LineItemID
	}
	return change.VariantID != "" && item.VariantID == change.VariantID
}
