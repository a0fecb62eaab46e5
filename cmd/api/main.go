package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/cache"
	"storefront/internal/commerce"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/mirror"
	checkoutrepo "storefront/internal/repository/checkout"
	favoriterepo "storefront/internal/repository/favorite"
	orderrepo "storefront/internal/repository/order"
	visitorcartrepo "storefront/internal/repository/visitorcart"
	cartsvc "storefront/internal/service/cart"
	checkoutsvc "storefront/internal/service/checkout"
	discountsvc "storefront/internal/service/discount"
	favoritesvc "storefront/internal/service/favorite"
	identitysvc "storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	paymentsvc "storefront/internal/service/payment"
	visitorsvc "storefront/internal/service/visitor"

	"github.com/redis/go-redis/v9"
)

const memoryMirrorTTL = 2 * time.Hour

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	deps := httpserver.Deps{}

	var mirrors mirror.Store = mirror.NewMemoryStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		redisCache := cache.NewRedisCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Printf("redis %s not reachable yet: %v", cfg.RedisAddr, err)
		}
		mirrors = redisCache
		deps.Cache = redisCache
	} else {
		logger.Printf("REDIS_ADDR not set, cart mirrors stay in process memory")
	}

	remote, err := commerce.New(commerce.Config{
		BaseURL:    cfg.CommerceBaseURL,
		APIKey:     cfg.CommerceAPIKey,
		AmountUnit: commerce.AmountUnit(cfg.CommerceAmountUnit),
		Timeout:    cfg.CommerceTimeout,
		Retry:      commerce.RetryPolicy{MaxRetries: cfg.CommerceMaxRetries},
	}, logger)
	if err != nil {
		logger.Fatalf("init commerce client: %v", err)
	}

	visitorCarts := visitorcartrepo.NewPostgres(dbpool)
	favorites := favoriterepo.NewPostgres(dbpool)
	sessions := checkoutrepo.NewPostgres(dbpool)
	orders := orderrepo.NewPostgres(dbpool)

	memory := identitysvc.NewMemoryMirrors(memoryMirrorTTL)
	reconciler := identitysvc.NewReconciler(mirrors, logger)
	identities := identitysvc.NewFactory(memory, visitorCarts, identitysvc.CookieOptions{
		MaxAge: time.Duration(cfg.CartCookieMaxAgeDays) * 24 * time.Hour,
		Secure: cfg.CookieSecure,
	}, logger)

	cartService := cartsvc.New(remote, mirrors, reconciler, logger)
	paymentService := paymentsvc.New(remote, cartService, cfg.PaymentProviderID, logger)

	deps.Visitors = visitorsvc.New()
	deps.Identities = identities
	deps.Reconciler = reconciler
	deps.Carts = cartService
	deps.Discounts = discountsvc.New(remote, mirrors, cartService, logger)
	deps.Checkout = checkoutsvc.New(remote, paymentService, sessions, cartService, logger)
	deps.Orders = ordersvc.New(remote, orders, sessions, cartService, logger)
	deps.Favorites = favoritesvc.New(favorites)

	srv := httpserver.New(cfg.HTTPAddr, logger, dbpool, deps, httpserver.Options{
		CORSOrigins:           cfg.CORSOrigins,
		CookieSecure:          cfg.CookieSecure,
		DiagnosticErrors:      cfg.DiagnosticErrors,
		RequestTimeout:        cfg.RequestTimeout,
		OrderConfirmedURL:     cfg.OrderConfirmedURL,
		OrderFailedURL:        cfg.OrderFailedURL,
		DiscountRatePerMinute: cfg.DiscountRatePerMinute,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepIdle(sweepCtx, memory, reconciler, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// sweepIdle periodically drops expired memory mirrors and stale observed
// cart counts.
func sweepIdle(ctx context.Context, memory *identitysvc.MemoryMirrors, reconciler *identitysvc.Reconciler, logger *log.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memory.Sweep(); n > 0 {
				logger.Printf("dropped %d idle memory mirrors", n)
			}
			if n := reconciler.Sweep(); n > 0 {
				logger.Printf("dropped %d stale cart observations", n)
			}
		}
	}
}
