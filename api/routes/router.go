package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoStans-Co/gostans-backend/api/controllers"
	"github.com/GoStans-Co/gostans-backend/api/middleware"
	"github.com/GoStans-Co/gostans-backend/internal/booking"
	cartsvc "github.com/GoStans-Co/gostans-backend/internal/cart"
	checkoutsvc "github.com/GoStans-Co/gostans-backend/internal/checkout"
	"github.com/GoStans-Co/gostans-backend/internal/payment"
	"github.com/GoStans-Co/gostans-backend/pkg/config"
	"github.com/GoStans-Co/gostans-backend/pkg/db"
	"github.com/GoStans-Co/gostans-backend/pkg/logger"
	"github.com/GoStans-Co/gostans-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redis.Pinger
	Carts        cartsvc.Service
	CartSync     *cartsvc.SyncService
	Machine      *checkoutsvc.Machine
	Orchestrator *payment.Orchestrator
	Bookings     booking.Service
	Metrics      prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(p.Config.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(p.Config.JWT, p.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(p.Carts, p.Logger))
			r.Post("/", controllers.CartAdd(p.Carts, p.Logger))
			r.Delete("/", controllers.CartClear(p.Carts, p.Logger))
			r.Patch("/package-mode", controllers.CartSetPackageMode(p.Carts, p.Logger))
			r.With(middleware.RequireUser(p.Logger)).Post("/sync", controllers.CartSync(p.CartSync, p.Logger))

			r.Route("/{tourID}", func(r chi.Router) {
				r.Delete("/", controllers.CartRemove(p.Carts, p.Logger))
				r.Patch("/quantity", controllers.CartSetQuantity(p.Carts, p.Logger))
				r.Patch("/guests", controllers.CartAdjustGuests(p.Carts, p.Logger))
				r.Patch("/date", controllers.CartSetDate(p.Carts, p.Logger))
			})
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/resolve", controllers.CheckoutResolve(p.Machine, p.Logger))
			r.Post("/begin", controllers.CheckoutBegin(p.Machine, p.Logger))

			r.Route("/payment", func(r chi.Router) {
				r.Post("/", controllers.PaymentInitialize(p.Orchestrator, p.Logger))
				r.Post("/finalize", controllers.PaymentFinalize(p.Orchestrator, p.Logger))
				r.Post("/teardown", controllers.PaymentTeardown(p.Machine, p.Logger))
			})
		})

		r.Get("/bookings/{reference}", controllers.BookingByReference(p.Bookings, p.Logger))
	})

	return r
}
