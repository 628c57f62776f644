package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/mw"
)

func init() { Register("api", registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(middleware.Timeout(15 * time.Second))
		if d.RateLimit > 0 {
			r.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:           d.RateLimit,
				RefillPerMinute: d.RateLimit,
				MaxEntries:      10000,
				TrustProxy:      d.TrustProxy,
			}))
		}

		r.Get("/library", handlers.Library(d))
		r.Post("/library/load", handlers.LoadLibrary(d))
		r.Post("/backfill", handlers.Backfill(d))

		r.Post("/categories", handlers.CreateCategory(d))
		r.Patch("/categories/{id}", handlers.UpdateCategory(d))

		r.Post("/links", handlers.CreateLink(d))
		r.Patch("/links/{id}", handlers.UpdateLink(d))
		r.Post("/links/{id}/favorite", handlers.Favorite(d))
		r.Delete("/links/{id}", handlers.RemoveLink(d))
	})
}
