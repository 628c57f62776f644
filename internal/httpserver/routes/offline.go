package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/mw"
)

func init() { Register("offline", registerOffline) }

// registerOffline serves every other path of the app origin through the
// offline controller.
func registerOffline(r chi.Router, d deps.Deps) {
	hosts := mw.EnforceHost(d.AllowedHosts, d.Logger)

	r.With(hosts).Post("/sw/message", handlers.Message(d))
	r.With(hosts).Handle("/*", d.Offline.Handler())
}
