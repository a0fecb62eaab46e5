package httpserver

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/identity"
	"storefront/internal/service/visitor"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ctxKey string

const (
	visitorCtxKey  ctxKey = "visitor"
	identityCtxKey ctxKey = "identity"
)

func visitorFrom(c *gin.Context) string {
	v, _ := c.Request.Context().Value(visitorCtxKey).(string)
	return v
}

func identityFrom(c *gin.Context) *identity.Store {
	s, _ := c.Request.Context().Value(identityCtxKey).(*identity.Store)
	return s
}

// visitorMiddleware resolves the visitor cookie, issuing a new visitor when
// it is missing or malformed, and binds the cart identity of that visitor to
// the request.
func visitorMiddleware(visitors visitorService, identities identityFactory, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(visitor.CookieName)
		visitorID, issued := visitors.Resolve(raw)
		if issued {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(visitor.CookieName, visitorID, visitors.CookieMaxAgeSeconds(), "/", "", secure, true)
		}

		ctx := context.WithValue(c.Request.Context(), visitorCtxKey, visitorID)
		ctx = context.WithValue(ctx, identityCtxKey, identities.For(c, visitorID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// reconcileMiddleware brings the identity mirrors into agreement before any
// handler reads them. Failures are logged; the request carries on with
// whatever the readable mirrors hold.
func reconcileMiddleware(r reconciler, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := identityFrom(c)
		if r == nil || store == nil {
			c.Next()
			return
		}
		res, err := r.Reconcile(c.Request.Context(), store)
		if err != nil {
			logger.Printf("reconcile visitor %s: %v", store.VisitorID(), err)
		}
		if res.Outcome == identity.OutcomeCopied || res.Outcome == identity.OutcomeOverwritten {
			logger.Printf("reconcile visitor %s: %s cart %s", store.VisitorID(), res.Outcome, res.CartID)
		}
		c.Next()
	}
}

func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// visitorLimiter keeps one token bucket per visitor.
type visitorLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 10 * time.Minute

// newVisitorLimiter allows perMinute requests per visitor per minute. A
// non-positive perMinute disables limiting.
func newVisitorLimiter(perMinute int) *visitorLimiter {
	if perMinute <= 0 {
		return &visitorLimiter{}
	}
	return &visitorLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *visitorLimiter) allow(key string) bool {
	if l.limiters == nil {
		return true
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// limit rejects the request with 429 once the visitor's bucket is empty.
func (h *handlers) limit(l *visitorLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := visitorFrom(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !l.allow(key) {
			c.Header("Retry-After", "60")
			h.fail(c, &domain.Error{
				Kind:    domain.KindRateLimited,
				Code:    "too_many_attempts",
				Message: "Too many attempts. Please wait a minute and try again.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
