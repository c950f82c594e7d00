package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/pause/internal/httpserver/mw"
)

func init() { Register(registerDecision) }

func registerDecision(r chi.Router, d deps.Deps) {
	api := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger))
	api.With(middleware.Timeout(d.RequestTimeout)).Get("/api/tab-id", handlers.TabID(d))
	api.With(middleware.Timeout(d.RequestTimeout)).Post("/api/decision", handlers.Decision(d))
	// long-lived, no request timeout
	api.Get("/api/decision/stream", handlers.DecisionStream(d))
}
