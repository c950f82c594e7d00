package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/pause/internal/httpserver/mw"
)

func init() { Register(registerLifecycle) }

func registerLifecycle(r chi.Router, d deps.Deps) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(middleware.Timeout(d.RequestTimeout))

		r.Get("/", handlers.Products(d))
		r.Get("/{key}", handlers.Product(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.RateBurst,
				RefillPerIPPerMin: d.RatePerMin,
				Name:              "lifecycle",
				MaxEntries:        1024,
				TrustProxy:        d.TrustProxy,
			}))
			r.Post("/dont-need-it", handlers.DontNeedIt(d))
			r.Post("/sleep-on-it", handlers.SleepOnIt(d))
			r.Post("/need-it", handlers.NeedIt(d))
			r.Post("/changed-my-mind", handlers.ChangedMyMind(d))
		})
	})
}
