package commerce

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, unit AmountUnit, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "pk_test",
		AmountUnit: unit,
		Retry:      RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		HTTPClient: srv.Client(),
	}, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return c
}

const cartJSON = `{"cart":{
	"id":"cart_1",
	"region":{"currency_code":"eur"},
	"items":[
		{"id":"li_1","variant_id":"var_1","quantity":2,"unit_price":1500,"title":"Beans","variant":{"title":"250g"}},
		{"id":"li_2","variant":{"id":"var_2","product_id":"prod_2"},"quantity":1,"unit_price":900,"title":"Filter"}
	],
	"subtotal":3900,"discount_total":0,"shipping_total":0,"tax_total":0,"total":3900,
	"promotions":[{"code":"SAVE10"}],
	"promo_codes":["save10","WELCOME"]
}}`

func TestGetCartNormalizesShape(t *testing.T) {
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_test", r.Header.Get(apiKeyHeader))
		assert.Equal(t, "/store/carts/cart_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, cartJSON)
	})

	cart, err := c.GetCart(context.Background(), "cart_1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", cart.Currency)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "250g", cart.Items[0].VariantTitle)
	assert.Equal(t, "var_2", cart.Items[1].VariantID)
	assert.Equal(t, "prod_2", cart.Items[1].ProductID)
	assert.Equal(t, int64(1500), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(3900), cart.Total)
	assert.Equal(t, []string{"SAVE10", "WELCOME"}, cart.DiscountCodes)
}

func TestMajorUnitAmountsAreConvertedOnce(t *testing.T) {
	c := newTestClient(t, UnitMajor, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"cart":{"id":"c","currency_code":"usd","items":[{"id":"li","quantity":1,"unit_price":10.5}],"total":10.5}}`)
	})
	cart, err := c.GetCart(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(1050), cart.Total)
}

func TestErrorBodyCascade(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"plain message", `{"message":"Code expired"}`, "Code expired"},
		{"nested error", `{"error":{"message":"Unknown code"}}`, "Unknown code"},
		{"errors array", `{"errors":[{"message":"Not applicable"}]}`, "Not applicable"},
		{"errors strings", `{"errors":["bad"]}`, "bad"},
		{"not json", `<html>oops</html>`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.AddPromotion(context.Background(), "c", "X")
			var de *domain.Error
			require.True(t, errors.As(err, &de))
			assert.Equal(t, domain.KindValidation, de.Kind)
			assert.Equal(t, tc.want, de.Message)
			assert.Equal(t, http.StatusBadRequest, de.Status)
		})
	}
}

func TestNonJSONSuccessIsMalformed(t *testing.T) {
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	})
	_, err := c.GetCart(context.Background(), "c")
	assert.Equal(t, domain.KindMalformed, domain.KindOf(err))
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Cart not found"}`)
	})
	_, err := c.GetCart(context.Background(), "gone")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetIsRetriedOnUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"cart":{"id":"c"}}`)
	})
	cart, err := c.GetCart(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "c", cart.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPlainMutationIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.AddLineItem(context.Background(), "c", "v", 1)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteCartSendsStableIdempotencyKey(t *testing.T) {
	var keys []string
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		_, _ = io.WriteString(w, `{"type":"order","order":{"id":"order_1"}}`)
	})
	_, err := c.CompleteCart(context.Background(), "cart_1")
	require.NoError(t, err)
	_, err = c.CompleteCart(context.Background(), "cart_1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestCompleteCartReturnsPayloadWithError(t *testing.T) {
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"payment_collection":{"status":"not_paid"}}`)
	})
	payload, err := c.CompleteCart(context.Background(), "cart_1")
	require.Error(t, err)
	assert.Equal(t, domain.KindPayment, domain.KindOf(err))
	require.NotNil(t, payload)
	assert.Contains(t, payload, "payment_collection")
}

func TestDeleteLineItemReadsParentCart(t *testing.T) {
	c := newTestClient(t, UnitMinor, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		_, _ = io.WriteString(w, `{"id":"li_1","deleted":true,"parent":{"id":"cart_1","items":[]}}`)
	})
	cart, err := c.DeleteLineItem(context.Background(), "cart_1", "li_1")
	require.NoError(t, err)
	assert.Equal(t, "cart_1", cart.ID)
	assert.Empty(t, cart.Items)
}

func TestRunStrategiesFallsBackOnlyWhenAllowed(t *testing.T) {
	unavailable := &domain.Error{Kind: domain.KindUpstream, Status: http.StatusMethodNotAllowed}
	out, name, err := RunStrategies(context.Background(), nil, IsEndpointUnavailable,
		Strategy[string]{Name: "first", Run: func(context.Context) (string, error) { return "", unavailable }},
		Strategy[string]{Name: "second", Run: func(context.Context) (string, error) { return "ok", nil }},
	)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "second", name)

	invalid := &domain.Error{Kind: domain.KindValidation, Status: http.StatusBadRequest}
	secondRan := false
	_, name, err = RunStrategies(context.Background(), nil, IsEndpointUnavailable,
		Strategy[string]{Name: "first", Run: func(context.Context) (string, error) { return "", invalid }},
		Strategy[string]{Name: "second", Run: func(context.Context) (string, error) { secondRan = true; return "", nil }},
	)
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, "first", name)
	assert.False(t, secondRan)
}
