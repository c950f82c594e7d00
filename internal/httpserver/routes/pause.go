package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/pause/internal/httpserver/mw"
)

func init() { Register(registerPause) }

func registerPause(r chi.Router, d deps.Deps) {
	r.Route("/api/pause", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Get("/", handlers.Pause(d))
		r.Put("/snooze", handlers.Snooze(d))
		r.Delete("/snooze", handlers.Unsnooze(d))
		r.Put("/close", handlers.Close(d))
	})
}
