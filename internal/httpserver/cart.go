package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/mirror"
	"storefront/internal/service/cart"

	"github.com/gin-gonic/gin"
)

type updateItemRequest struct {
	LineItemID string `json:"lineItemId"`
	Quantity   *int   `json:"quantity"`
}

type cartResponse struct {
	Cart   *domain.RemoteCart      `json:"cart"`
	Mirror *domain.LocalCartMirror `json:"mirror,omitempty"`
}

type clearFailure struct {
	LineItemID string `json:"lineItemId"`
	Message    string `json:"message"`
}

type clearResponse struct {
	Cart    *domain.RemoteCart `json:"cart"`
	Removed []string           `json:"removed"`
	Failed  []clearFailure     `json:"failed"`
	Partial bool               `json:"partial"`
}

func withMirror(cart *domain.RemoteCart) cartResponse {
	m := mirror.Project(*cart)
	return cartResponse{Cart: cart, Mirror: &m}
}

func badRequest(message string, fields map[string]string) error {
	return domain.ValidationError(message, fields)
}

// cartID returns the visitor's cart id, creating the cart when none is
// usable.
func (h *handlers) cartID(c *gin.Context) {
	cart, err := h.deps.Carts.EnsureCart(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cartId": cart.ID})
}

func (h *handlers) cartDetails(c *gin.Context) {
	cart, err := h.deps.Carts.Get(c.Request.Context(), identityFrom(c))
	if errors.Is(err, domain.ErrNotFound) {
		// no cart yet is an empty cart, not an error
		c.JSON(http.StatusOK, gin.H{"cart": nil})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withMirror(cart))
}

func (h *handlers) cartSummary(c *gin.Context) {
	m, err := h.deps.Carts.Summary(c.Request.Context(), identityFrom(c))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"mirror": nil})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mirror": m})
}

func (h *handlers) addItem(c *gin.Context) {
	var req cart.AddInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	updated, err := h.deps.Carts.AddItem(c.Request.Context(), identityFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withMirror(updated))
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	if req.Quantity == nil {
		h.fail(c, badRequest("Missing quantity.", map[string]string{"quantity": "required"}))
		return
	}
	updated, err := h.deps.Carts.UpdateItem(c.Request.Context(), identityFrom(c), req.LineItemID, *req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withMirror(updated))
}

func (h *handlers) removeItem(c *gin.Context) {
	lineItemID := strings.TrimSpace(c.Query("lineItemId"))
	updated, err := h.deps.Carts.RemoveItem(c.Request.Context(), identityFrom(c), lineItemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withMirror(updated))
}

// clearCart answers 200 even when some items stayed; the failed list tells
// the caller what to retry.
func (h *handlers) clearCart(c *gin.Context) {
	res, err := h.deps.Carts.Clear(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := clearResponse{
		Cart:    res.Cart,
		Removed: res.Removed,
		Failed:  make([]clearFailure, 0, len(res.Failed)),
		Partial: res.Partial(),
	}
	if out.Removed == nil {
		out.Removed = []string{}
	}
	for _, f := range res.Failed {
		_, body := describe(f.Err, h.opts.DiagnosticErrors)
		h.logger.Printf("clear: line item %s: %v", f.LineItemID, f.Err)
		out.Failed = append(out.Failed, clearFailure{LineItemID: f.LineItemID, Message: body.Message})
	}
	c.JSON(http.StatusOK, out)
}

// requireCart resolves the cart a checkout request acts on. The visitor's
// own cart wins; a body or query cart id naming another cart is refused.
func (h *handlers) requireCart(c *gin.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	current, ok := identityFrom(c).Current(c.Request.Context())
	if !ok {
		return "", &domain.Error{Kind: domain.KindNotFound, Code: "no_cart", Message: "Your cart is empty."}
	}
	if requested != "" && requested != current {
		return "", &domain.Error{Kind: domain.KindConflict, Code: "cart_mismatch", Message: "This cart no longer belongs to this session. Please reload the page."}
	}
	return current, nil
}
