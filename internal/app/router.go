package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/praetor-io/praetor/internal/httpapi"
	"github.com/praetor-io/praetor/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AuthzHandler *httpapi.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with praetord defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Config) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)
	r.Use(httpapi.ActorContext)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/permissions/check", params.AuthzHandler.Check)
		r.Post("/roles/assign", params.AuthzHandler.Assign)
		r.Post("/roles/revoke", params.AuthzHandler.Revoke)
		r.Post("/grants/revoke", params.AuthzHandler.RevokeGrant)
	})

	return r
}
