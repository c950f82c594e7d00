package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/logger"
)

// Notification returns a pending notification by id.
func Notification(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Notifications.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

// NotificationClick clears the notification and sends the user to the
// product summary.
func NotificationClick(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Notifications.Clear(r.Context(), id); err != nil {
			// the redirect still happens, a stale notification expires on its own
			d.Logger.Warn("failed to clear clicked notification",
				logger.String("notification_id", id),
				logger.Error(err))
		}
		http.Redirect(w, r, d.SummaryURL, http.StatusFound)
	}
}

// DismissNotification clears a notification without opening anything.
func DismissNotification(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Notifications.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
