package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
)

type tabIDResponse struct {
	TabID string `json:"tabId"`
}

// TabID hands out a fresh tab identifier. Content scripts call it once per
// page load and send the id back with every decision and sleep-on-it.
func TabID(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tabIDResponse{TabID: uuid.NewString()})
	}
}
