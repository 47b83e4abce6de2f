package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/taxsync/api/controllers"
	"github.com/angelmondragon/taxsync/api/middleware"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/enums"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

type queueCounter interface {
	Counts(ctx context.Context) (map[enums.SyncStatus]int64, error)
}

// OpsParams wires the worker's operational endpoints.
type OpsParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Queue    queueCounter
	Gatherer prometheus.Gatherer
}

// NewOpsRouter serves health probes, metrics and queue status.
func NewOpsRouter(params OpsParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger, "/health/live", "/health/ready", "/metrics"),
	)

	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, params.Logger, deps))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if params.Queue != nil {
		r.Get("/queue/status", controllers.QueueStatus(params.Logger, params.Queue))
	}
	return r
}
