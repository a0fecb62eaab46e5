package commerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain"
)

// parseErrorResponse converts a backend error body into a *domain.Error.
// The body is parsed best-effort; Message is left empty when no message
// can be found so callers can substitute their own wording.
func parseErrorResponse(status int, body []byte) error {
	msg, code := errorMessage(body)
	e := &domain.Error{
		Code:    code,
		Message: msg,
		Status:  status,
		Detail:  fmt.Sprintf("backend status %d: %s", status, truncate(body, 512)),
	}
	switch {
	case status == http.StatusNotFound:
		e.Kind = domain.KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		e.Kind = domain.KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = domain.KindConfiguration
		e.Message = "The store is temporarily unavailable. Please try again later."
	case status == http.StatusTooManyRequests:
		e.Kind = domain.KindRateLimited
		e.Message = "Too many requests. Please wait a moment and try again."
	case status == http.StatusPaymentRequired:
		e.Kind = domain.KindPayment
	default:
		e.Kind = domain.KindUpstream
		e.Message = "Something went wrong. Please try again."
	}
	return e
}

// errorMessage walks the known error body shapes in order: a plain message,
// a nested error object, an error string, then the first element of an
// errors array.
func errorMessage(body []byte) (message, code string) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", ""
	}
	code = firstString(raw, "code", "type")
	if m := firstString(raw, "message"); m != "" {
		return m, code
	}
	switch v := raw["error"].(type) {
	case map[string]interface{}:
		if c := firstString(v, "code", "type"); c != "" {
			code = c
		}
		if m := firstString(v, "message", "detail"); m != "" {
			return m, code
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return v, code
		}
	}
	if list, ok := raw["errors"].([]interface{}); ok && len(list) > 0 {
		switch first := list[0].(type) {
		case string:
			return first, code
		case map[string]interface{}:
			if c := firstString(first, "code", "type"); c != "" {
				code = c
			}
			return firstString(first, "message", "detail"), code
		}
	}
	return "", code
}

// IsEndpointUnavailable reports whether err means the endpoint itself is
// missing (404/405), signalling a fallback strategy should be used.
func IsEndpointUnavailable(err error) bool {
	switch domain.RemoteStatus(err) {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return true
	}
	return false
}
