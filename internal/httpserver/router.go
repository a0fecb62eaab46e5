package httpserver

import (
	"context"
	"log"
	"time"

	"storefront/internal/domain"
	favoriterepo "storefront/internal/repository/favorite"
	"storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/discount"
	"storefront/internal/service/identity"
	"storefront/internal/service/payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type visitorService interface {
	Resolve(raw string) (string, bool)
	CookieMaxAgeSeconds() int
}

type identityFactory interface {
	For(jar identity.CookieJar, visitorID string) *identity.Store
}

type reconciler interface {
	Reconcile(ctx context.Context, s *identity.Store) (identity.Result, error)
}

type cartService interface {
	EnsureCart(ctx context.Context, id cart.Identity) (*domain.RemoteCart, error)
	Get(ctx context.Context, id cart.Identity) (*domain.RemoteCart, error)
	Summary(ctx context.Context, id cart.Identity) (*domain.LocalCartMirror, error)
	AddItem(ctx context.Context, id cart.Identity, in cart.AddInput) (*domain.RemoteCart, error)
	UpdateItem(ctx context.Context, id cart.Identity, lineItemID string, quantity int) (*domain.RemoteCart, error)
	RemoveItem(ctx context.Context, id cart.Identity, lineItemID string) (*domain.RemoteCart, error)
	Clear(ctx context.Context, id cart.Identity) (*cart.ClearResult, error)
}

type discountService interface {
	Apply(ctx context.Context, cartID, code string) (*discount.ApplyResult, error)
	Remove(ctx context.Context, cartID, code string) (*domain.RemoteCart, error)
}

type checkoutService interface {
	State(ctx context.Context, cartID string) (*checkout.State, error)
	SubmitAddress(ctx context.Context, cartID string, addr domain.Address) (*checkout.AddressResult, error)
	ShippingOptions(ctx context.Context, cartID string) ([]domain.ShippingOption, error)
	SelectShippingMethod(ctx context.Context, cartID, optionID, providerID string) (*checkout.ShippingResult, error)
	OpenPayment(ctx context.Context, cartID, providerID string) (*payment.Session, error)
	EnterStage(ctx context.Context, cartID string, stage domain.CheckoutStage) (*checkout.State, *domain.RemoteCart, error)
	Back(ctx context.Context, cartID string) (*checkout.State, *domain.RemoteCart, error)
}

type orderService interface {
	Complete(ctx context.Context, id cart.Identity, cartID, paymentIntent string) (*domain.Order, error)
	Find(ctx context.Context, cartID string) (*domain.Order, error)
}

type favoriteService interface {
	Add(ctx context.Context, visitorID, productID string) error
	Remove(ctx context.Context, visitorID, productID string) error
	List(ctx context.Context, visitorID string) ([]favoriterepo.Favorite, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups the services the handlers call.
type Deps struct {
	Visitors   visitorService
	Identities identityFactory
	Reconciler reconciler
	Carts      cartService
	Discounts  discountService
	Checkout   checkoutService
	Orders     orderService
	Favorites  favoriteService
	// Cache is pinged by /readyz when set.
	Cache pinger
}

// Options are the HTTP-facing settings taken from config.
type Options struct {
	CORSOrigins           []string
	CookieSecure          bool
	DiagnosticErrors      bool
	RequestTimeout        time.Duration
	OrderConfirmedURL     string
	OrderFailedURL        string
	DiscountRatePerMinute int
}

type handlers struct {
	deps       Deps
	opts       Options
	logger     *log.Logger
	discountRL *visitorLimiter
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, deps.Cache))

	h := &handlers{
		deps:       deps,
		opts:       opts,
		logger:     logger,
		discountRL: newVisitorLimiter(opts.DiscountRatePerMinute),
	}

	api := router.Group("/")
	api.Use(
		timeoutMiddleware(opts.RequestTimeout),
		visitorMiddleware(deps.Visitors, deps.Identities, opts.CookieSecure),
		reconcileMiddleware(deps.Reconciler, logger),
	)

	carts := api.Group("/cart")
	carts.GET("/id", h.cartID)
	carts.GET("/details", h.cartDetails)
	carts.GET("/summary", h.cartSummary)
	carts.POST("/add", h.addItem)
	carts.POST("/update", h.updateItem)
	carts.DELETE("/remove", h.removeItem)
	carts.POST("/clear", h.clearCart)

	co := api.Group("/checkout")
	co.POST("/shipping-address", h.shippingAddress)
	co.GET("/shipping-options", h.shippingOptions)
	co.POST("/shipping-method", h.shippingMethod)
	co.POST("/payment-session", h.paymentSession)
	co.POST("/apply-discount", h.limit(h.discountRL), h.applyDiscount)
	co.POST("/remove-discount", h.removeDiscount)
	co.POST("/complete", h.completeOrder)
	co.GET("/complete", h.completeRedirect)
	co.GET("/stage", h.checkoutStage)
	co.POST("/stage", h.enterStage)

	favs := api.Group("/favorites")
	favs.GET("", h.listFavorites)
	favs.POST("", h.addFavorite)
	favs.DELETE("/:productId", h.removeFavorite)

	return router
}
