package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/logger"
)

type dueCheckResponse struct {
	Completed int `json:"completed"`
}

// DueCheck completes every reminder already past its time, without
// waiting for the next sweep. Extensions call it on browser startup.
func DueCheck(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Sweeper.Sweep(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("manual due check",
			logger.Int("completed", n),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusOK, dueCheckResponse{Completed: n})
	}
}
