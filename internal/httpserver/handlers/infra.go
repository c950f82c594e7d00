package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pause/internal/domain"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Driver  string `json:"driver,omitempty"`
	Armed   *int   `json:"armed,omitempty"`
	Pending *int   `json:"pending,omitempty"`
	NextDue string `json:"next_due,omitempty"`
	Overdue *int   `json:"overdue,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of the store, the timers and the reminder queue.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		store := checkStore(ctx, d)
		components := map[string]componentStatus{
			"store":     store,
			"reminders": checkReminders(ctx, d),
		}

		armed := d.Timers.Len()
		components["timers"] = componentStatus{OK: true, Armed: &armed}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Store down = every decision falls back to hidden
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	// Overdue reminders = timers are not keeping up, the sweeper catches them
	if rem, ok := components["reminders"]; ok && (!rem.OK || (rem.Overdue != nil && *rem.Overdue > 0)) {
		return "degraded"
	}
	return "optimal"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Entities.Backend().Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Driver: d.StoreDriver,
			Impact: "decisions-fall-back-to-hidden",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Driver: d.StoreDriver}
}

func checkReminders(ctx context.Context, d deps.Deps) componentStatus {
	pending, err := d.Entities.PendingReminders(ctx)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}

	now := d.Now()
	count, overdue := len(pending), 0
	var next *domain.Reminder
	for i := range pending {
		if pending[i].IsDue(now) {
			overdue++
			continue
		}
		if next == nil || pending[i].ReminderTime < next.ReminderTime {
			next = &pending[i]
		}
	}

	status := componentStatus{OK: true, Pending: &count, Overdue: &overdue}
	if next != nil {
		status.NextDue = "in " + domain.HumanDuration(next.When().Sub(now))
	}
	return status
}
