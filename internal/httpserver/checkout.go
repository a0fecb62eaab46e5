package httpserver

import (
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

type shippingAddressRequest struct {
	CartID string `json:"cartId"`
	domain.Address
}

type shippingMethodRequest struct {
	CartID     string `json:"cartId"`
	OptionID   string `json:"optionId"`
	ProviderID string `json:"providerId"`
}

type paymentSessionRequest struct {
	CartID     string `json:"cartId"`
	ProviderID string `json:"providerId"`
}

type discountRequest struct {
	CartID string `json:"cartId"`
	Code   string `json:"code"`
}

type completeRequest struct {
	CartID        string `json:"cartId"`
	PaymentIntent string `json:"paymentIntent"`
}

type stageRequest struct {
	CartID string `json:"cartId"`
	Stage  string `json:"stage"`
}

func (h *handlers) shippingAddress(c *gin.Context) {
	var req shippingAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.deps.Checkout.SubmitAddress(c.Request.Context(), cartID, req.Address)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) shippingOptions(c *gin.Context) {
	cartID, err := h.requireCart(c, c.Query("cartId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	options, err := h.deps.Checkout.ShippingOptions(c.Request.Context(), cartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if options == nil {
		options = []domain.ShippingOption{}
	}
	c.JSON(http.StatusOK, gin.H{"shippingOptions": options})
}

func (h *handlers) shippingMethod(c *gin.Context) {
	var req shippingMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.deps.Checkout.SelectShippingMethod(c.Request.Context(), cartID, req.OptionID, req.ProviderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) paymentSession(c *gin.Context) {
	var req paymentSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	sess, err := h.deps.Checkout.OpenPayment(c.Request.Context(), cartID, req.ProviderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handlers) applyDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.deps.Discounts.Apply(c.Request.Context(), cartID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) removeDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	cart, err := h.deps.Discounts.Remove(c.Request.Context(), cartID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withMirror(cart))
}

func (h *handlers) completeOrder(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	order, err := h.deps.Orders.Complete(c.Request.Context(), identityFrom(c), cartID, req.PaymentIntent)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// completeRedirect is the return URL of the payment gateway. It always
// answers with a redirect: to the confirmation page with the order id, or
// back to checkout with the failure reason. Once the visitor's identity is
// retired (a repeated redirect) only an already recorded order is looked up.
func (h *handlers) completeRedirect(c *gin.Context) {
	ctx := c.Request.Context()
	requested := strings.TrimSpace(c.Query("cart_id"))

	var (
		order *domain.Order
		err   error
	)
	cartID := requested
	if _, ok := identityFrom(c).Current(ctx); ok || requested == "" {
		cartID, err = h.requireCart(c, requested)
		if err == nil {
			order, err = h.deps.Orders.Complete(ctx, identityFrom(c), cartID, c.Query("payment_intent"))
		}
	} else {
		order, err = h.deps.Orders.Find(ctx, requested)
	}
	if err == nil {
		c.Redirect(http.StatusSeeOther, withQuery(h.opts.OrderConfirmedURL, "order_id", order.ID))
		return
	}
	status, body := describe(err, false)
	h.logger.Printf("complete redirect cart %s: %d %v", cartID, status, err)
	c.Redirect(http.StatusSeeOther, withQuery(h.opts.OrderFailedURL, "reason", body.Code))
}

func withQuery(base, key, value string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *handlers) checkoutStage(c *gin.Context) {
	cartID, err := h.requireCart(c, c.Query("cartId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	state, err := h.deps.Checkout.State(c.Request.Context(), cartID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// enterStage moves checkout to the requested stage; "BACK" steps one stage
// back.
func (h *handlers) enterStage(c *gin.Context) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("Invalid request body.", nil))
		return
	}
	cartID, err := h.requireCart(c, req.CartID)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if strings.EqualFold(strings.TrimSpace(req.Stage), "back") {
		state, cart, err := h.deps.Checkout.Back(ctx, cartID)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state, "cart": cart})
		return
	}

	stage, ok := domain.ParseStage(req.Stage)
	if !ok {
		h.fail(c, badRequest("Unknown checkout stage.", map[string]string{"stage": "invalid"}))
		return
	}
	state, cart, err := h.deps.Checkout.EnterStage(ctx, cartID, stage)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "cart": cart})
}
