package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supplylink/groupbuy-backend/api/controllers"
	groupordercontrollers "github.com/supplylink/groupbuy-backend/api/controllers/grouporders"
	"github.com/supplylink/groupbuy-backend/api/middleware"
	grouporders "github.com/supplylink/groupbuy-backend/internal/grouporders"
	"github.com/supplylink/groupbuy-backend/pkg/config"
	"github.com/supplylink/groupbuy-backend/pkg/db"
	"github.com/supplylink/groupbuy-backend/pkg/logger"
	"github.com/supplylink/groupbuy-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	groupOrderService grouporders.Service,
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

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/group-orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/", groupordercontrollers.Create(groupOrderService, logg))
		r.Get("/recommended", groupordercontrollers.Recommended(groupOrderService, logg))
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", groupordercontrollers.Detail(groupOrderService, logg))
			r.Post("/join", groupordercontrollers.Join(groupOrderService, logg))
			r.Post("/leave", groupordercontrollers.Leave(groupOrderService, logg))
			r.Post("/close", groupordercontrollers.Close(groupOrderService, logg))
			r.Post("/deliver", groupordercontrollers.Deliver(groupOrderService, logg))
		})
	})

	return r
}
