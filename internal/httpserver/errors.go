package httpserver

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

var defaultMessages = map[domain.ErrorKind]string{
	domain.KindTransport:     "We could not reach the store. Please try again.",
	domain.KindNotFound:      "Not found.",
	domain.KindMalformed:     "The store sent an unexpected response. Please try again.",
	domain.KindValidation:    "Please check the highlighted fields.",
	domain.KindConflict:      "This request conflicts with the current cart.",
	domain.KindPayment:       "Your payment could not be completed.",
	domain.KindConfiguration: "Checkout is temporarily unavailable. Please try again later.",
	domain.KindStage:         "This checkout step is not available yet.",
	domain.KindRateLimited:   "Too many attempts. Please try again later.",
	domain.KindUpstream:      "The store could not process the request. Please try again.",
}

const genericMessage = "Something went wrong. Please try again."

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindStage:
		return http.StatusConflict
	case domain.KindPayment:
		return http.StatusPaymentRequired
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindTransport, domain.KindMalformed, domain.KindConfiguration, domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// describe splits err into the user-facing body and the status. Internal
// detail only reaches the body in diagnostic mode.
func describe(err error, diagnostic bool) (int, errorBody) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, errorBody{Code: "timeout", Message: "The store took too long to answer. Please try again."}
	}

	kind := domain.KindOf(err)
	body := errorBody{Code: string(kind), Message: defaultMessages[kind]}
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Code != "" {
			body.Code = de.Code
		}
		if de.Message != "" {
			body.Message = de.Message
		}
		body.Fields = de.Fields
	}
	if body.Code == "" {
		body.Code = "internal"
	}
	if body.Message == "" {
		body.Message = genericMessage
	}
	if diagnostic {
		body.Detail = err.Error()
	}
	return statusFor(kind), body
}

func (h *handlers) fail(c *gin.Context, err error) {
	status, body := describe(err, h.opts.DiagnosticErrors)
	h.logger.Printf("%s %s: %d %v", c.Request.Method, c.Request.URL.Path, status, err)
	c.JSON(status, gin.H{"error": body})
}
