package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoStans-Co/gostans-backend/api/routes"
	"github.com/GoStans-Co/gostans-backend/internal/booking"
	cartsvc "github.com/GoStans-Co/gostans-backend/internal/cart"
	checkoutsvc "github.com/GoStans-Co/gostans-backend/internal/checkout"
	"github.com/GoStans-Co/gostans-backend/internal/payment"
	"github.com/GoStans-Co/gostans-backend/pkg/config"
	"github.com/GoStans-Co/gostans-backend/pkg/db"
	"github.com/GoStans-Co/gostans-backend/pkg/env"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/metrics"
	"github.com/GoStans-Co/gostans-backend/pkg/migrate"
	"github.com/GoStans-Co/gostans-backend/pkg/paypal"
	"github.com/GoStans-Co/gostans-backend/pkg/redis"
	"github.com/GoStans-Co/gostans-backend/pkg/stripe"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cartRepo := cartsvc.NewRepository(dbClient.DB())
	userStore, err := cartsvc.NewUserStore(cartRepo, dbClient)
	requireResource(logg, "user cart store", err)

	guestStore, err := cartsvc.NewGuestStore(redisClient, cfg.Checkout.GuestCartTTL)
	requireResource(logg, "guest cart store", err)

	cartService, err := cartsvc.NewService(userStore, guestStore)
	requireResource(logg, "cart service", err)

	syncService, err := cartsvc.NewSyncService(cartService, redisClient, cfg.Checkout.SyncCooldown, logg)
	requireResource(logg, "cart sync service", err)

	bookingService, err := booking.NewService(booking.NewRepository(dbClient.DB()), cfg.Checkout.BookingRefBytes)
	requireResource(logg, "booking service", err)

	sessionStore, err := payment.NewSessionStore(redisClient, cfg.Checkout.SessionTTL)
	requireResource(logg, "payment session store", err)

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	requireResource(logg, "paypal client", err)

	redirectStrategy, err := payment.NewRedirectStrategy(paypalClient, cfg.Checkout.ReturnBaseURL)
	requireResource(logg, "redirect strategy", err)

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	requireResource(logg, "stripe client", err)

	intentStrategy, err := payment.NewIntentStrategy(stripeClient)
	requireResource(logg, "intent strategy", err)

	payMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	orchestrator, err := payment.NewOrchestrator(
		sessionStore,
		redisClient,
		cartService,
		bookingService,
		payMetrics,
		logg,
		redirectStrategy,
		intentStrategy,
	)
	requireResource(logg, "payment orchestrator", err)

	machine, err := checkoutsvc.NewMachine(cartService, orchestrator, bookingService, logg)
	requireResource(logg, "checkout state machine", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Carts:        cartService,
			CartSync:     syncService,
			Machine:      machine,
			Orchestrator: orchestrator,
			Bookings:     bookingService,
			Metrics:      prometheus.DefaultGatherer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}
