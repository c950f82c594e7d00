package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/pause/internal/config"
	"github.com/MrSnakeDoc/pause/internal/gate"
	"github.com/MrSnakeDoc/pause/internal/httpserver"
	"github.com/MrSnakeDoc/pause/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pause/internal/lifecycle"
	"github.com/MrSnakeDoc/pause/internal/logger"
	"github.com/MrSnakeDoc/pause/internal/notify"
	"github.com/MrSnakeDoc/pause/internal/redis"
	"github.com/MrSnakeDoc/pause/internal/scheduler"
	"github.com/MrSnakeDoc/pause/internal/sources/marketplace"
	"github.com/MrSnakeDoc/pause/internal/store"
	redisstore "github.com/MrSnakeDoc/pause/internal/store/redis"
	"github.com/MrSnakeDoc/pause/internal/store/sqlite"
	"github.com/MrSnakeDoc/pause/internal/utils"
	"github.com/MrSnakeDoc/pause/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	closers  []io.Closer // closed in order on shutdown
	cancel   context.CancelFunc
	timers   *scheduler.Timers
	restorer *scheduler.Restorer
	sweeper  *scheduler.DueSweeper
}

// substrate is what a store driver provides to the engine.
type substrate struct {
	backend  store.Backend
	notifier store.Notifier
	purger   scheduler.Purger
	closers  []io.Closer
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// background work (change feed, timer completions) lives until shutdown
	bgCtx, cancel := context.WithCancel(context.Background())

	sub, err := openStore(bgCtx, cfg, loggerClient)
	if err != nil {
		cancel()
		return nil, err
	}

	entities := store.NewEntities(sub.backend).WithTabSessionTTL(cfg.TabSessionTTL)

	timers, err := scheduler.NewTimers(loggerClient)
	if err != nil {
		cancel()
		closeAll(sub.closers, loggerClient)
		return nil, fmt.Errorf("failed to create timers: %w", err)
	}

	sender := notify.NewStoreSender(sub.backend, loggerClient, cfg.NotificationIcon)
	completer := lifecycle.NewCompleter(entities, sender, loggerClient)
	timers.OnFire(completer.OnFire(bgCtx))

	manager := lifecycle.NewManager(entities, timers, loggerClient)

	registry, err := marketplace.Load(cfg.MarketplaceFile)
	if err != nil {
		cancel()
		closeAll(sub.closers, loggerClient)
		return nil, fmt.Errorf("failed to load marketplaces: %w", err)
	}
	loggerClient.Info("marketplaces loaded", logger.Strings("ids", registry.IDs()))

	gateService := gate.NewService(entities, registry, loggerClient, cfg.GateTimeout)
	restorer := scheduler.NewRestorer(entities, timers, completer, loggerClient)
	sweeper := scheduler.NewDueSweeper(entities, completer, sub.purger, loggerClient, cfg.DueSweepInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		SummaryURL:     cfg.SummaryURL,
		StoreDriver:    cfg.StoreDriver,
		Entities:       entities,
		Notifier:       sub.notifier,
		Marketplaces:   registry,
		Gate:           gateService,
		Lifecycle:      manager,
		Notifications:  sender,
		Timers:         timers,
		Sweeper:        sweeper,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   server,
		closers:  sub.closers,
		cancel:   cancel,
		timers:   timers,
		restorer: restorer,
		sweeper:  sweeper,
	}, nil
}

// openStore connects the configured driver. Redis gets its own change
// feed over pub/sub; SQLite publishes in-process and purges expired rows.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (substrate, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		log.Info("opening sqlite store", logger.String("path", cfg.SQLitePath))
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return substrate{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return substrate{backend: db, notifier: db, purger: db, closers: []io.Closer{db}}, nil

	default:
		// Initialize Redis early - fail fast if unavailable
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			Username:       cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return substrate{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Redis initialized successfully")

		notifier := redisstore.NewNotifier(client, log)
		if err := notifier.Start(ctx); err != nil {
			utils.Close(client)
			return substrate{}, err
		}
		return substrate{
			backend:  redisstore.NewStore(client),
			notifier: notifier,
			closers:  []io.Closer{notifier, client},
		}, nil
	}
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting Pause v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	// Re-arm reminders persisted by a previous run before anything can fire
	if err := a.restorer.Restore(ctx); err != nil {
		a.logger.Warn("reminder restore failed, the due sweeper will catch up",
			logger.Error(err))
	}
	a.timers.Start()
	a.logger.Info("timers started", logger.Int("armed", a.timers.Len()))

	a.sweeper.Start(ctx)
	a.logger.Info("due sweeper started",
		logger.Duration("interval", a.cfg.DueSweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.sweeper.Stop()

	if err := a.timers.Stop(); err != nil {
		a.logger.Warn("failed to stop timers", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.cancel()
	closeAll(a.closers, a.logger)

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ Pause stopped cleanly")
	return nil
}

func closeAll(closers []io.Closer, log logger.Logger) {
	for _, c := range closers {
		utils.CloseLogged(c, fmt.Sprintf("%T", c), log)
	}
}
