package domain

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// HumanDuration renders d the way notifications talk about waiting time:
// "1 minute", "3 days", "1 week".
func HumanDuration(d time.Duration) string {
	if d < time.Second {
		return "a moment"
	}
	ref := time.Unix(0, 0)
	return strings.TrimSpace(humanize.RelTime(ref, ref.Add(d), "", ""))
}
