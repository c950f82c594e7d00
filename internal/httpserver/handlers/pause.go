package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/logger"
)

type snoozeRequest struct {
	// Until is the end of the snooze (epoch millis). ForMs is an
	// alternative relative form; exactly one must be set.
	Until int64 `json:"until,omitempty"`
	ForMs int64 `json:"forMs,omitempty"`
}

type closeRequest struct {
	Closed bool `json:"closed"`
}

// Pause returns the device-wide suppression flags.
func Pause(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gp, err := d.Entities.GlobalPause(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, gp)
	}
}

// Snooze suppresses every prompt until a point in the future.
func Snooze(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req snoozeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		now := d.Now()
		var until time.Time
		switch {
		case req.Until != 0 && req.ForMs == 0:
			until = time.UnixMilli(req.Until)
		case req.ForMs > 0 && req.Until == 0:
			until = now.Add(time.Duration(req.ForMs) * time.Millisecond)
		default:
			writeError(w, d.Logger, fmt.Errorf("%w: set either until or forMs", errBadRequest))
			return
		}
		if !until.After(now) {
			writeError(w, d.Logger, fmt.Errorf("%w: snooze must end in the future", errBadRequest))
			return
		}

		if err := d.Entities.SetSnoozeUntil(r.Context(), until); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("prompts snoozed", logger.Time("until", until))
		respondPause(w, r, d)
	}
}

// Unsnooze removes the snooze flag.
func Unsnooze(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Entities.ClearSnooze(r.Context()); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("snooze cleared")
		respondPause(w, r, d)
	}
}

// Close switches prompts off (or back on) on every page.
func Close(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req closeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Entities.SetGlobalClosed(r.Context(), req.Closed); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("global close updated", logger.Bool("closed", req.Closed))
		respondPause(w, r, d)
	}
}

func respondPause(w http.ResponseWriter, r *http.Request, d deps.Deps) {
	gp, err := d.Entities.GlobalPause(r.Context())
	if err != nil {
		writeError(w, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, gp)
}
