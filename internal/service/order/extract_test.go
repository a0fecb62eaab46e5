package order

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func TestExtractOrder(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		wantID string
	}{
		{"top-level order", `{"order":{"id":"order_123","display_id":42}}`, "order_123"},
		{"tagged data", `{"data":{"type":"order","data":{"id":"ord_9"}}}`, "ord_9"},
		{"tagged with order", `{"type":"order","order":{"id":"order_7"}}`, "order_7"},
		{"nested order field", `{"result":{"payload":{"order":{"id":"x1"}}}}`, "x1"},
		{"id prefix", `{"result":[{"id":"cart_1"},{"id":"order_55"}]}`, "order_55"},
		{"object tag", `{"data":{"object":"order","id":"abc"}}`, "abc"},
		{"status trio", `{"data":{"id":"o-1","payment_status":"captured","fulfillment_status":"not_fulfilled","display_id":3}}`, "o-1"},
		{"reference only", `{"type":"cart","cart":{"id":"cart_1"},"order_id":"order_ref"}`, "order_ref"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractOrder(decode(t, tc.raw))
			if !ok {
				t.Fatalf("no order found")
			}
			if got["id"] != tc.wantID {
				t.Fatalf("expected %q, got %+v", tc.wantID, got)
			}
		})
	}
}

func TestExtractOrderPriority(t *testing.T) {
	// an explicit order field beats a structurally matching object
	raw := `{"a":{"id":"order_structural"},"z":{"order":{"id":"explicit"}}}`
	got, ok := ExtractOrder(decode(t, raw))
	if !ok || got["id"] != "explicit" {
		t.Fatalf("expected explicit order, got %+v", got)
	}
}

func TestExtractOrderReturnsExactObject(t *testing.T) {
	got, ok := ExtractOrder(decode(t, `{"data":{"type":"order","data":{"id":"ord_9"}}}`))
	if !ok || len(got) != 1 || got["id"] != "ord_9" {
		t.Fatalf("expected {id: ord_9}, got %+v", got)
	}
}

func TestExtractOrderNone(t *testing.T) {
	if _, ok := ExtractOrder(decode(t, `{"type":"cart","cart":{"id":"cart_1","items":[]}}`)); ok {
		t.Fatalf("cart payload must not match")
	}
	if _, ok := ExtractOrder(nil); ok {
		t.Fatalf("nil payload must not match")
	}
}

func TestExtractOrderSurvivesCycles(t *testing.T) {
	a := map[string]interface{}{"id": "cart_1"}
	b := map[string]interface{}{"parent": a}
	a["child"] = b
	if _, ok := ExtractOrder(a); ok {
		t.Fatalf("unexpected match")
	}
	b["order_id"] = "order_cyc"
	got, ok := ExtractOrder(a)
	if !ok || got["id"] != "order_cyc" {
		t.Fatalf("expected reference through cycle, got %+v", got)
	}
}

func TestExtractOrderIsBounded(t *testing.T) {
	root := map[string]interface{}{}
	node := root
	for i := 0; i < maxDepth+5; i++ {
		next := map[string]interface{}{}
		node["next"] = next
		node = next
	}
	node["order"] = map[string]interface{}{"id": "too_deep"}
	if _, ok := ExtractOrder(root); ok {
		t.Fatalf("expected search to stop at max depth")
	}
}

func TestClassifyPaymentFailure(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{
			"provider status wins over collection",
			`{"payment_collection":{"status":"not_paid","payment_sessions":[{"status":"pending","data":{"status":"requires_payment_method"}}]}}`,
			"missing_payment_method",
		},
		{
			"requires action",
			`{"cart":{"payment_session":{"status":"pending","data":{"status":"requires_action"}}}}`,
			"authentication_required",
		},
		{
			"requires confirmation",
			`{"cart":{"payment_sessions":[{"data":{"status":"requires_confirmation"}}]}}`,
			"authentication_required",
		},
		{
			"session error",
			`{"cart":{"payment_sessions":[{"status":"error","data":{}}]}}`,
			"declined",
		},
		{
			"collection only",
			`{"type":"cart","cart":{"payment_collection":{"status":"awaiting"}}}`,
			"not_paid",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ClassifyPaymentFailure(decode(t, tc.raw))
			if !ok || got.Reason != tc.reason {
				t.Fatalf("expected %q, got %+v (%v)", tc.reason, got, ok)
			}
			if got.Message == "" {
				t.Fatalf("expected a user-facing message")
			}
		})
	}
}

func TestClassifyPaymentFailureUnknown(t *testing.T) {
	if _, ok := ClassifyPaymentFailure(decode(t, `{"message":"boom"}`)); ok {
		t.Fatalf("expected no classification")
	}
}
