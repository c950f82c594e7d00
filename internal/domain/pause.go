package domain

import "time"

// GlobalPause holds the two device-wide suppression flags.
type GlobalPause struct {
	// SnoozeUntil suppresses every prompt until the given time (epoch millis).
	SnoozeUntil *int64 `json:"snoozeUntil"`

	// GlobalPluginClosed suppresses every prompt until cleared.
	GlobalPluginClosed bool `json:"globalPluginClosed"`
}

// SnoozeActive reports whether snoozeUntil is set and still in the future.
func SnoozeActive(snoozeUntil *int64, now time.Time) bool {
	return snoozeUntil != nil && *snoozeUntil > now.UnixMilli()
}

// SnoozeExpired reports whether snoozeUntil is set but already in the past.
func SnoozeExpired(snoozeUntil *int64, now time.Time) bool {
	return snoozeUntil != nil && *snoozeUntil <= now.UnixMilli()
}

// TabSession is the ephemeral per-tab state.
type TabSession struct {
	// JustCreatedReminderID is the reminder this tab created last, so it
	// shows its own confirmation instead of an "early return" prompt.
	JustCreatedReminderID string `json:"justCreatedReminderId,omitempty"`
}

// Empty reports whether the session carries no marker.
func (s TabSession) Empty() bool {
	return s.JustCreatedReminderID == ""
}
