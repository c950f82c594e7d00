package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/pause/internal/httpserver/mw"
)

func init() { Register(registerReminders) }

func registerReminders(r chi.Router, d deps.Deps) {
	api := r.With(mw.EnforceHost(d.AllowedHosts, d.Logger), middleware.Timeout(d.RequestTimeout))
	api.Get("/api/reminders", handlers.Reminders(d))
	api.Post("/api/due-check", handlers.DueCheck(d))

	api.Get("/api/notifications/{id}", handlers.Notification(d))
	api.Get("/api/notifications/{id}/click", handlers.NotificationClick(d))
	api.Delete("/api/notifications/{id}", handlers.DismissNotification(d))
}
