package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
)

type productsResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

type remindersResponse struct {
	Reminders []domain.Reminder `json:"reminders"`
	Count     int               `json:"count"`
}

// Products lists every product, newest capture first. This is the summary
// a notification click leads to.
func Products(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Entities.ProductList(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, productsResponse{Products: list, Count: len(list)})
	}
}

// Product returns one product by key.
func Product(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		p, ok, err := d.Entities.Product(r.Context(), key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if !ok {
			writeError(w, d.Logger, domain.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, productResponse{Product: p})
	}
}

// Reminders lists reminders in creation order. ?status=pending keeps only
// the pending ones.
func Reminders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			list []domain.Reminder
			err  error
		)
		if r.URL.Query().Get("status") == string(domain.ReminderPending) {
			list, err = d.Entities.PendingReminders(r.Context())
		} else {
			list, err = d.Entities.Reminders(r.Context())
		}
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if list == nil {
			list = []domain.Reminder{}
		}
		writeJSON(w, http.StatusOK, remindersResponse{Reminders: list, Count: len(list)})
	}
}
