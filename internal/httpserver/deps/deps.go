package deps

import (
	"time"

	"github.com/MrSnakeDoc/pause/internal/gate"
	"github.com/MrSnakeDoc/pause/internal/lifecycle"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/notify"
	"github.com/MrSnakeDoc/pause/internal/scheduler"
	"github.com/MrSnakeDoc/pause/internal/sources/marketplace"
	"github.com/MrSnakeDoc/pause/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers allowed to access the server
	AllowedCIDRS   []string         // IPs allowed to access healthz/readyz/infra endpoints
	AllowedOrigins []string         // CORS origins (extension pages)
	TrustProxy     bool             // true if running behind a trusted reverse proxy
	RateBurst      int              // mutating endpoints: burst per client IP
	RatePerMin     int              // mutating endpoints: refill per client IP per minute
	RequestTimeout time.Duration    // per-request timeout of the JSON endpoints
	SummaryURL     string           // where a notification click leads

	StoreDriver   string                // "redis" | "sqlite"
	Entities      *store.Entities       // typed repository over the backend
	Notifier      store.Notifier        // change feed for decision streams
	Marketplaces  *marketplace.Registry // supported marketplaces
	Gate          *gate.Service         // decision gate
	Lifecycle     *lifecycle.Manager    // user transitions
	Notifications *notify.StoreSender   // stored notifications
	Timers        *scheduler.Timers     // armed wake-ups
	Sweeper       *scheduler.DueSweeper
}

// Now returns the configured clock or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
