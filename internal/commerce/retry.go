package commerce

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"
)

// RetryPolicy bounds retries of idempotent requests.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	return p
}

// Backoff returns the delay before retry number attempt (zero based):
// base * 2^attempt capped at MaxDelay, plus up to 50ms of jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt > 16 {
		attempt = 16
	}
	delay := p.BaseDelay << attempt
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(50*time.Millisecond)))
}

// Strategy is one named way of performing an operation. Strategies are tried
// in order; the next one runs only when the previous failed with an error
// the caller's fallback predicate accepts.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// ErrNoStrategies is returned when RunStrategies is given nothing to run.
var ErrNoStrategies = errors.New("no strategies")

// RunStrategies runs strategies in order and returns the first success and
// the name of the strategy that produced it.
func RunStrategies[T any](ctx context.Context, logger *log.Logger, fallback func(error) bool, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, "", ErrNoStrategies
	}
	var lastErr error
	for i, s := range strategies {
		out, err := s.Run(ctx)
		if err == nil {
			return out, s.Name, nil
		}
		lastErr = err
		if i == len(strategies)-1 || !fallback(err) {
			return zero, s.Name, err
		}
		if logger != nil {
			logger.Printf("strategy %s unavailable, falling back to %s: %v", s.Name, strategies[i+1].Name, err)
		}
	}
	return zero, "", lastErr
}
