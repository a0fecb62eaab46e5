// Package commerce talks to the remote commerce backend that owns carts.
// Every response is normalized here, once, into the domain shapes; no other
// package sees the backend's wire format.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const apiKeyHeader = "x-publishable-api-key"

// Config holds the backend connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	AmountUnit AmountUnit
	Timeout    time.Duration
	Retry      RetryPolicy
	HTTPClient *http.Client
}

// Client is a typed client for the commerce backend store API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	unit       AmountUnit
	retry      RetryPolicy
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	logger     *log.Logger
}

type rawResponse struct {
	status int
	body   []byte
}

// errServerStatus marks 5xx responses so the breaker counts them as failures.
var errServerStatus = errors.New("server error status")

// New creates a Client. The HTTP transport is instrumented with otelhttp.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("commerce base URL is required")
	}
	unit, err := ParseAmountUnit(string(cfg.AmountUnit))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		unit:       unit,
		retry:      cfg.Retry.withDefaults(),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        "commerce",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("circuit %s: %s -> %s", name, from, to)
		},
	})
	return c, nil
}

type requestOptions struct {
	idempotencyKey string
}

type requestOption func(*requestOptions)

// withIdempotencyKey marks a mutation as safe to retry.
func withIdempotencyKey(key string) requestOption {
	return func(o *requestOptions) { o.idempotencyKey = key }
}

// do sends a request and returns the decoded JSON object body. Errors are
// always *domain.Error with a kind from the error taxonomy; for error
// statuses the decoded error body is returned alongside when it is JSON.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, opts ...requestOption) (map[string]interface{}, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		payload = b
	}

	retryable := method == http.MethodGet || o.idempotencyKey != ""
	attempts := 1
	if retryable {
		attempts += c.retry.MaxRetries
	}

	var (
		resp *rawResponse
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Printf("retrying %s %s in %s (attempt %d): %v", method, path, delay, attempt+1, err)
			select {
			case <-ctx.Done():
				return nil, domain.NewError(domain.KindTransport, "The store is not responding. Please try again.", ctx.Err())
			case <-time.After(delay):
			}
		}
		resp, err = c.roundTrip(ctx, method, path, payload, o)
		if !shouldRetry(resp, err) {
			break
		}
	}

	if err != nil && !errors.Is(err, errServerStatus) {
		return nil, transportError(method, path, err)
	}
	if resp.status >= 400 {
		errBody, _ := decodeObject(resp.body)
		return errBody, parseErrorResponse(resp.status, resp.body)
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return map[string]interface{}{}, nil
	}
	decoded, derr := decodeObject(resp.body)
	if derr != nil {
		c.logger.Printf("malformed response from %s %s: %v body=%q", method, path, derr, truncate(resp.body, 256))
		return nil, &domain.Error{
			Kind:    domain.KindMalformed,
			Message: "Something went wrong. Please try again.",
			Detail:  fmt.Sprintf("%s %s returned a non-JSON body", method, path),
			Status:  resp.status,
			Err:     derr,
		}
	}
	return decoded, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, o requestOptions) (*rawResponse, error) {
	return c.breaker.Execute(func() (*rawResponse, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}
		if o.idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", o.idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		raw := &rawResponse{status: resp.StatusCode, body: body}
		if resp.StatusCode >= 500 {
			return raw, errServerStatus
		}
		return raw, nil
	})
}

func shouldRetry(resp *rawResponse, err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if err != nil && !errors.Is(err, errServerStatus) {
		return true
	}
	if resp == nil {
		return false
	}
	switch resp.status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func transportError(method, path string, err error) error {
	msg := "The store is not responding. Please try again."
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		msg = "The store is temporarily unavailable. Please try again in a moment."
	}
	return &domain.Error{
		Kind:    domain.KindTransport,
		Message: msg,
		Detail:  method + " " + path,
		Err:     err,
	}
}

func decodeObject(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
