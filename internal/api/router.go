package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pilotgb/control-tower/internal/events"
	"github.com/pilotgb/control-tower/internal/lifecycle"
	"github.com/pilotgb/control-tower/internal/metrics"
	"github.com/pilotgb/control-tower/internal/store"
)

type Deps struct {
	Store   store.Store
	Gate    *lifecycle.Gate
	Events  events.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	CORSOrigins        []string
	RateLimitPerMinute int
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(RateLimitMiddleware(d.RateLimitPerMinute))

	initiatives := NewInitiativesHandler(d.Store, d.Gate, d.Events, d.Logger)
	records := NewRecordsHandler(d.Store, d.Events, d.Logger)
	team := NewTeamHandler(d.Store, d.Events, d.Logger)
	ov := NewOverviewHandler(d.Store, d.Logger)

	r.Get("/health", healthHandler(d.Store))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/initiatives", func(r chi.Router) {
			r.Get("/", initiatives.List)
			r.Post("/", initiatives.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", initiatives.Get)
				r.Patch("/", initiatives.Update)
				r.Post("/transition", initiatives.Transition)
				r.Patch("/checklists/{checklistID}", initiatives.UpdateChecklist)
				r.Get("/sow", initiatives.GetScope)
				r.Patch("/sow", initiatives.UpdateScope)
				r.Patch("/approvals/{approvalID}", initiatives.UpdateApproval)

				r.Get("/assets", records.ListAssets)
				r.Post("/assets", records.CreateAsset)
				r.Get("/risks", records.ListRisks)
				r.Post("/risks", records.CreateRisk)
				r.Patch("/risks/{riskID}", records.UpdateRisk)
				r.Get("/dependencies", records.ListDependencies)
				r.Post("/dependencies", records.CreateDependency)

				r.Post("/assignments", team.Assign)
				r.Patch("/team-members/{memberID}", team.UpdateOnboarding)
				r.Post("/access", team.RequestAccess)
				r.Patch("/access/{accessID}", team.UpdateAccess)
			})
		})

		r.Get("/assets", records.ListAllAssets)
		r.Get("/team-members", team.ListMembers)
		r.Post("/team-members", team.CreateMember)
		r.Get("/metrics/overview", ov.Get)
	})

	return r
}

// NewMetricsRouter serves health and Prometheus metrics on the metrics port.
// A nil gatherer uses the default registry.
func NewMetricsRouter(s store.Store, g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", healthHandler(s))
	if g == nil {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return r
}

func healthHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s != nil {
			if err := s.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
