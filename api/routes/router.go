package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkforge/studio-backend/api/controllers"
	"github.com/inkforge/studio-backend/api/middleware"
	authsvc "github.com/inkforge/studio-backend/internal/auth"
	checkoutsvc "github.com/inkforge/studio-backend/internal/checkout"
	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/internal/discounts"
	ordersvc "github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/redis"
)

// Services groups everything the router wires into handlers.
type Services struct {
	Auth         authsvc.Service
	Checkout     *checkoutsvc.Service
	Orders       *ordersvc.Service
	Discounts    *discounts.Service
	DesignOrders *designorders.Service

	Products        products.Repository
	Designs         designs.Repository
	DesignOrderRepo designorders.Repository
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/claim-account", controllers.AuthClaimAccount(svcs.Auth, logg))
	})

	// Public storefront surface: the catalog, the guest-capable express
	// flow, and the payment callback.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(svcs.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svcs.Products, logg))

		r.With(middleware.OptionalAuth(cfg.JWT, logg)).
			Post("/checkout/express", controllers.ExpressCheckout(svcs.Checkout, logg))
		r.Post("/checkout/verify", controllers.VerifyPayment(svcs.Checkout, logg))
		r.Get("/guest-orders", controllers.GuestOrderLookup(svcs.Orders, logg))
	})

	r.Route("/api/v1/account", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/designs", func(r chi.Router) {
			r.Get("/", controllers.DesignList(svcs.Designs, logg))
			r.Post("/", controllers.DesignCreate(svcs.Designs, logg))
			r.Get("/{designId}", controllers.DesignDetail(svcs.Designs, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderStatus(svcs.Orders, logg))
			r.Patch("/{orderId}/payment-status", controllers.AdminOrderPaymentStatus(svcs.Orders, logg))
			r.Post("/{orderId}/refund", controllers.AdminOrderRefund(svcs.Checkout, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(svcs.Products, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(svcs.Products, logg))
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", controllers.AdminDiscountList(svcs.Discounts, logg))
			r.Post("/", controllers.AdminDiscountCreate(svcs.Discounts, logg))
			r.Patch("/{discountId}", controllers.AdminDiscountUpdate(svcs.Discounts, logg))
			r.Post("/{discountId}/usage", controllers.AdminDiscountAdjustUsage(svcs.Discounts, logg))
		})

		r.Route("/design-orders", func(r chi.Router) {
			r.Get("/", controllers.AdminDesignOrderList(svcs.DesignOrderRepo, logg))
			r.Patch("/{designOrderId}/status", controllers.AdminDesignOrderStatus(svcs.DesignOrders, logg))
		})
	})

	return r
}
