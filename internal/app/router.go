package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cobranza-crm/cobranza/internal/alerts"
	"github.com/cobranza-crm/cobranza/internal/collections"
	"github.com/cobranza-crm/cobranza/internal/crm"
	"github.com/cobranza-crm/cobranza/internal/dashboard"
	"github.com/cobranza-crm/cobranza/internal/observability"
	"github.com/cobranza-crm/cobranza/internal/payments"
	"github.com/cobranza-crm/cobranza/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AlertsHandler      *alerts.Handler
	PaymentsHandler    *payments.Handler
	CRMHandler         *crm.Handler
	CollectionsHandler *collections.Handler
	DashboardHandler   *dashboard.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the default stack.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/collections", func(r chi.Router) {
		params.AlertsHandler.MountRoutes(r)
		params.PaymentsHandler.MountRoutes(r)
	})
	r.Route("/clients", func(r chi.Router) {
		params.CRMHandler.MountRoutes(r)
		params.CollectionsHandler.MountClientRoutes(r)
	})
	r.Route("/actions", params.CollectionsHandler.MountActionRoutes)
	r.Route("/dashboard", params.DashboardHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
