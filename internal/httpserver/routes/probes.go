package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/mw"
)

func init() { Register("probes", registerProbes) }

func registerProbes(r chi.Router, d deps.Deps) {
	guard := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)

	r.With(guard).Get("/healthz", handlers.Healthz(d))
	r.With(guard).Get("/readyz", handlers.Readyz(d))
	r.With(guard).Get("/infra", handlers.Infra(d))
	r.With(guard).Handle("/metrics", d.Metrics.Handler())
}
