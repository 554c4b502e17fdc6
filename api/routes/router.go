package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockledger/api/controllers"
	"github.com/angelmondragon/stockledger/api/middleware"
	"github.com/angelmondragon/stockledger/internal/inventory"
	"github.com/angelmondragon/stockledger/internal/notifications"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
	pkgredis "github.com/angelmondragon/stockledger/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP surface relies on.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

// Params carries everything the router mounts. Gatherer defaults to the
// prometheus default registry.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         RedisStore
	Outbox        controllers.BacklogCounter
	Permissions   middleware.PermissionChecker
	Inventory     inventory.Service
	Notifications notifications.Service
	Gatherer      prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessChecks{
			DB:     p.DB,
			Redis:  p.Redis,
			Outbox: p.Outbox,
		}))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mutationPolicy := middleware.NewRateLimitPolicy("mutations", cfg.HTTP.MutationRateWindow, cfg.HTTP.MutationRateLimit)
	idempotent := middleware.Idempotency(p.Redis, middleware.IdempotencyOptions{RequireKey: cfg.FeatureFlags.RequireIdemKeys}, logg)
	canRead := middleware.RequirePermission(p.Permissions, logg, enums.PermissionInventoryRead)
	canWrite := middleware.RequirePermission(p.Permissions, logg, enums.PermissionInventoryWrite)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(canRead)
				r.Get("/", controllers.InventoryList(p.Inventory, logg))
				r.Get("/low-stock", controllers.InventoryLowStock(p.Inventory, logg))
				r.Get("/variant/{variantId}", controllers.InventoryGetByVariant(p.Inventory, logg))
				r.Get("/variant/{variantId}/availability", controllers.InventoryAvailability(p.Inventory, logg))
				r.Get("/{id}/history", controllers.InventoryHistory(p.Inventory, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(canWrite)
				r.Use(middleware.RateLimit(mutationPolicy, p.Redis, logg))
				r.Use(idempotent)
				r.Post("/", controllers.InventoryInitialize(p.Inventory, logg))
				r.Patch("/variant/{variantId}/settings", controllers.InventoryUpdateSettings(p.Inventory, logg))
				r.Post("/adjust", controllers.InventoryAdjust(p.Inventory, logg))
				r.Post("/reserve", controllers.InventoryReserve(p.Inventory, logg))
				r.Post("/release", controllers.InventoryRelease(p.Inventory, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	return r
}
