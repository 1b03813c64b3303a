package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/inkforge/studio-backend/api/routes"
	"github.com/inkforge/studio-backend/internal/auth"
	"github.com/inkforge/studio-backend/internal/challan"
	"github.com/inkforge/studio-backend/internal/checkout"
	"github.com/inkforge/studio-backend/internal/designorders"
	"github.com/inkforge/studio-backend/internal/designs"
	"github.com/inkforge/studio-backend/internal/discounts"
	"github.com/inkforge/studio-backend/internal/identity"
	"github.com/inkforge/studio-backend/internal/notifications"
	"github.com/inkforge/studio-backend/internal/orders"
	"github.com/inkforge/studio-backend/internal/payments"
	"github.com/inkforge/studio-backend/internal/pricing"
	"github.com/inkforge/studio-backend/internal/products"
	"github.com/inkforge/studio-backend/pkg/config"
	"github.com/inkforge/studio-backend/pkg/db"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/mail"
	"github.com/inkforge/studio-backend/pkg/migrate"
	"github.com/inkforge/studio-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, payment verification runs unguarded")
	}

	usersRepo := identity.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	designsRepo := designs.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	discountsRepo := discounts.NewRepository(dbClient.DB())
	designOrdersRepo := designorders.NewRepository(dbClient.DB())

	resolver, err := identity.NewService(identity.ServiceParams{Repo: usersRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create identity resolver", err)
		os.Exit(1)
	}

	discountService, err := discounts.NewService(discounts.ServiceParams{Repo: discountsRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create discount service", err)
		os.Exit(1)
	}

	linker, err := designorders.NewService(designorders.ServiceParams{Repo: designOrdersRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create design order service", err)
		os.Exit(1)
	}

	engine, err := pricing.NewEngine(cfg.Pricing, cfg.Shipping)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing engine", err)
		os.Exit(1)
	}

	assembler, err := orders.NewAssembler(orders.AssemblerParams{
		Repo:      ordersRepo,
		Products:  productsRepo,
		Designs:   designsRepo,
		Discounts: discountService,
		Linker:    linker,
		Engine:    engine,
		Pricing:   cfg.Pricing,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order assembler", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{Repo: ordersRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	gateway, err := payments.NewAdapter(payments.AdapterParams{Config: cfg.Razorpay, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway adapter", err)
		os.Exit(1)
	}

	// Email is optional: without SMTP config checkout still works, payment
	// verification just reports email_sent=false.
	var notifier *notifications.Service
	if cfg.SMTP.Host != "" {
		sender, err := mail.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logg.Error(context.Background(), "failed to create smtp sender", err)
			os.Exit(1)
		}
		notifier, err = notifications.NewService(notifications.ServiceParams{Sender: sender, Logger: logg})
		if err != nil {
			logg.Error(context.Background(), "failed to create notification service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "smtp not configured, order confirmation email disabled")
	}

	challans, err := challan.NewGenerator(cfg.Challan, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create challan generator", err)
		os.Exit(1)
	}

	var guard checkout.VerificationGuard
	if redisClient != nil {
		guard = redisClient
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Resolver:  resolver,
		Assembler: assembler,
		Orders:    ordersRepo,
		Users:     usersRepo,
		Gateway:   gateway,
		Discounts: discountService,
		Linker:    linker,
		Notifier:  notifier,
		Challans:  challans,
		Guard:     guard,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Users:          usersRepo,
		Resolver:       resolver,
		Orders:         orderService,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Auth:            authService,
			Checkout:        checkoutService,
			Orders:          orderService,
			Discounts:       discountService,
			DesignOrders:    linker,
			Products:        productsRepo,
			Designs:         designsRepo,
			DesignOrderRepo: designOrdersRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
