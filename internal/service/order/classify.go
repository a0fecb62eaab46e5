package order

import (
	"strings"
)

// PaymentFailure is the classified reason a completion did not produce an
// order.
type PaymentFailure struct {
	Reason  string
	Message string
}

var failures = map[string]PaymentFailure{
	"missing_payment_method":  {"missing_payment_method", "Your payment method was not accepted. Please enter a different card or payment method."},
	"authentication_required": {"authentication_required", "Your bank needs you to confirm this payment. Please complete the verification and try again."},
	"canceled":                {"canceled", "The payment was canceled. Please try again."},
	"processing":              {"processing", "Your payment is still being processed. Please check back in a moment."},
	"declined":                {"declined", "Your payment was declined. Please try a different payment method."},
	"not_paid":                {"not_paid", "Payment has not been completed. Please try again."},
}

// ClassifyPaymentFailure reads payment status fields of a completion
// payload. Provider statuses win over session statuses, which win over
// collection statuses.
func ClassifyPaymentFailure(payload map[string]interface{}) (PaymentFailure, bool) {
	var st statuses
	st.collect(payload, 0, false)

	for _, s := range st.provider {
		switch s {
		case "requires_payment_method":
			return failures["missing_payment_method"], true
		case "requires_action", "requires_confirmation":
			return failures["authentication_required"], true
		case "canceled", "cancelled":
			return failures["canceled"], true
		case "processing":
			return failures["processing"], true
		}
	}
	for _, s := range st.session {
		switch s {
		case "requires_more":
			return failures["authentication_required"], true
		case "error":
			return failures["declined"], true
		case "canceled", "cancelled":
			return failures["canceled"], true
		}
	}
	for _, s := range st.collection {
		switch s {
		case "not_paid", "awaiting":
			return failures["not_paid"], true
		}
	}
	return PaymentFailure{}, false
}

type statuses struct {
	provider   []string
	session    []string
	collection []string
}

func (st *statuses) collect(v interface{}, depth int, inSession bool) {
	if depth > maxDepth {
		return
	}
	switch x := v.(type) {
	case map[string]interface{}:
		if inSession {
			st.session = appendStatus(st.session, x["status"])
			if data, ok := x["data"].(map[string]interface{}); ok {
				st.provider = appendStatus(st.provider, data["status"])
			}
		}
		if pc, ok := x["payment_collection"].(map[string]interface{}); ok {
			st.collection = appendStatus(st.collection, pc["status"])
		}
		for _, raw := range listOf(x["payment_collections"]) {
			if pc, ok := raw.(map[string]interface{}); ok {
				st.collection = appendStatus(st.collection, pc["status"])
			}
		}
		for _, k := range sortedKeys(x) {
			switch k {
			case "payment_sessions", "payment_session":
				st.collect(x[k], depth+1, true)
			case "data":
				if !inSession {
					st.collect(x[k], depth+1, false)
				}
			default:
				st.collect(x[k], depth+1, false)
			}
		}
	case []interface{}:
		for _, item := range x {
			st.collect(item, depth+1, inSession)
		}
	}
}

func appendStatus(dst []string, v interface{}) []string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return dst
	}
	return append(dst, strings.ToLower(strings.TrimSpace(s)))
}

func listOf(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}
