package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	StoreDriver string // "redis" | "sqlite"
	SQLitePath  string // database file when StoreDriver is sqlite

	MarketplaceFile  string        // optional marketplaces.yaml, empty = built-in list
	SummaryURL       string        // where a notification click leads (the summary UI)
	NotificationIcon string        // icon attached to every notification
	DueSweepInterval time.Duration // how often due reminders are swept (default: 1m)
	GateTimeout      time.Duration // decision watchdog (default: 2s)
	TabSessionTTL    time.Duration // lifetime of an unconsumed tab marker (default: 24h)

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "127.0.0.1/32, ::1/128")
	TrustProxy   bool     // true => trust X-Forwarded-For headers

	AllowedOrigins []string // CORS origins of the browser extension
	RateBurst      int      // mutating endpoints: burst per client IP
	RatePerMin     int      // mutating endpoints: refill per client IP per minute
}

// DefaultAllowedOrigins covers extension pages and a local summary UI.
var DefaultAllowedOrigins = []string{"chrome-extension://*", "moz-extension://*", "http://localhost:*"}

// Load reads the configuration from the environment, seeded from a .env
// file in the working directory when one exists. It panics on invalid
// required settings.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("PAUSE_LISTEN_PORT", "127.0.0.1:8787"),
		ShutdownTimeout: mustDuration("PAUSE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("PAUSE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PAUSE_PRETTY_LOG", true),

		// Store
		StoreDriver: strings.ToLower(getenv("PAUSE_STORE_DRIVER", DriverRedis)),
		SQLitePath:  getenv("PAUSE_SQLITE_PATH", "pause.db"),

		// Engine
		MarketplaceFile:  getenv("PAUSE_MARKETPLACE_FILE", ""),
		SummaryURL:       getenv("PAUSE_SUMMARY_URL", "/api/products"),
		NotificationIcon: getenv("PAUSE_NOTIFICATION_ICON", "icons/pause-128.png"),
		DueSweepInterval: mustDuration("PAUSE_DUE_SWEEP_INTERVAL", time.Minute),
		GateTimeout:      mustDuration("PAUSE_GATE_TIMEOUT", 2*time.Second),
		TabSessionTTL:    mustDuration("PAUSE_TAB_SESSION_TTL", 24*time.Hour),

		// Redis settings
		RedisUser:           getenv("PAUSE_REDIS_USERNAME", ""),
		RedisPassword:       getenv("PAUSE_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("PAUSE_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("PAUSE_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("PAUSE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("PAUSE_TRUST_PROXY", false),

		AllowedOrigins: splitAndTrim(getenv("PAUSE_ALLOWED_ORIGINS", "")),
		RateBurst:      getenvInt("PAUSE_RATE_BURST", 30),
		RatePerMin:     getenvInt("PAUSE_RATE_PER_MIN", 120),
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}

	switch cfg.StoreDriver {
	case DriverRedis:
		cfg.RedisAddr = requireEnv("PAUSE_REDIS_ADDR")
	case DriverSQLite:
	default:
		panic(fmt.Sprintf("❌ FATAL: unknown PAUSE_STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverRedis, DriverSQLite))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
