package domain

import "time"

// ReminderStatus is the lifecycle status of a reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderCompleted ReminderStatus = "completed"
	ReminderDismissed ReminderStatus = "dismissed"
)

// Reminder is a deferred purchase decision ("sleep on it").
//
// Status only moves pending -> completed, or the reminder is deleted.
type Reminder struct {
	ID         string `json:"id"`
	ProductKey string `json:"productKey"`

	// ReminderTime is the absolute wake-up time (epoch millis).
	ReminderTime int64 `json:"reminderTime"`

	// Duration is the delay originally chosen by the user (millis).
	Duration int64 `json:"duration"`

	Status ReminderStatus `json:"status"`
}

// NewReminder builds a pending reminder due duration after now.
func NewReminder(id, productKey string, now time.Time, duration time.Duration) Reminder {
	return Reminder{
		ID:           id,
		ProductKey:   productKey,
		ReminderTime: now.Add(duration).UnixMilli(),
		Duration:     duration.Milliseconds(),
		Status:       ReminderPending,
	}
}

// When returns ReminderTime as a time.Time.
func (r Reminder) When() time.Time {
	return time.UnixMilli(r.ReminderTime)
}

// Elapsed returns the originally chosen delay.
func (r Reminder) Elapsed() time.Duration {
	return time.Duration(r.Duration) * time.Millisecond
}

// Pending reports whether the reminder is still waiting.
func (r Reminder) Pending() bool {
	return r.Status == ReminderPending
}

// IsDue reports whether the reminder is pending and its time has come.
func (r Reminder) IsDue(now time.Time) bool {
	return r.Pending() && r.ReminderTime <= now.UnixMilli()
}

// Complete moves a pending reminder to completed.
// It returns false (and changes nothing) for any other status.
func (r *Reminder) Complete() bool {
	if !r.Pending() {
		return false
	}
	r.Status = ReminderCompleted
	return true
}
