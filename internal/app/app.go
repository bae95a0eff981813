package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/appvault/internal/blob"
	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/config"
	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/httpserver"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/appvault/internal/logger"
	"github.com/MrSnakeDoc/appvault/internal/probe"
	"github.com/MrSnakeDoc/appvault/internal/redis"
	"github.com/MrSnakeDoc/appvault/internal/sources/seed"
	"github.com/MrSnakeDoc/appvault/internal/store"
	"github.com/MrSnakeDoc/appvault/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/appvault/internal/store/redis"
	"github.com/MrSnakeDoc/appvault/internal/store/sqlite"
	"github.com/MrSnakeDoc/appvault/internal/utils"
	"github.com/MrSnakeDoc/appvault/internal/version"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	server     *httpserver.Server
	collection *collection.Collection
	closers    []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// backend is the document store selected by configuration.
type backend struct {
	docs        store.DocumentStore
	redisClient *goredis.Client // set for the redis backend only
	closers     []namedCloser
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := build(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize: %v", err)
		os.Exit(1)
	}
	return a
}

func build(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	// Fail fast if the document store is unavailable
	be, err := openBackend(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	var blobs store.BlobStore
	uploads := false
	if cfg.Minio.Enabled() {
		ms, err := blob.NewMinioStore(ctx, blob.Config{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			UseSSL:        cfg.Minio.UseSSL,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			PublicBaseURL: cfg.Minio.PublicURL,
			Namespace:     cfg.Minio.Namespace,
			PublicRead:    cfg.Minio.PublicRead,
		}, logger.Component(loggerClient, "blob"))
		if err != nil {
			closeAll(be.closers, loggerClient)
			return nil, fmt.Errorf("blob store: %w", err)
		}
		blobs = ms
		uploads = true
	} else {
		loggerClient.Info("blob store not configured, uploads disabled")
	}

	seedApps, err := loadSeed(cfg, loggerClient)
	if err != nil {
		closeAll(be.closers, loggerClient)
		return nil, err
	}

	coll := collection.New(be.docs, blobs, seedApps, logger.Component(loggerClient, "collection"))

	// Dependencies passed to routes.
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		StoreBackend:   cfg.Store.Backend,
		Catalog:        coll,
		Prober:         probe.New(cfg.ScreenshotEndpoint, cfg.ProbeTimeout, logger.Component(loggerClient, "probe")),
		UploadsEnabled: uploads,
		MaxUploadBytes: probe.MaxImageBytes,
		RedisClient:    be.redisClient,
	}

	return &App{
		cfg:        cfg,
		logger:     loggerClient,
		server:     httpserver.New(cfg, loggerClient, d),
		collection: coll,
		closers:    be.closers,
	}, nil
}

func openBackend(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (backend, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		loggerClient.Infof("Connecting to Redis at %s", cfg.Redis.Addr)
		client, err := redis.Connect(ctx, redis.Options{
			Addr:           cfg.Redis.Addr,
			User:           cfg.Redis.User,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			DialTimeout:    cfg.Redis.DialTimeout,
			ReadTimeout:    cfg.Redis.ReadTimeout,
			WriteTimeout:   cfg.Redis.WriteTimeout,
			PoolSize:       cfg.Redis.PoolSize,
			ConnectTimeout: cfg.Redis.ConnectTimeout,
			RetryInterval:  cfg.Redis.RetryInterval,
			MaxWait:        cfg.Redis.MaxWait,
			PingTimeout:    cfg.Redis.PingTimeout,
			WarnThreshold:  cfg.Redis.WarnThreshold,
		}, logger.Component(loggerClient, "redis"))
		if err != nil {
			return backend{}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		loggerClient.Info("Redis initialized successfully")
		return backend{
			docs:        redisstore.NewStore(client, cfg.Redis.Prefix, redisstore.WithHealthInterval(cfg.Redis.HealthInterval)),
			redisClient: client,
			closers:     []namedCloser{{"redis", client}},
		}, nil

	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.Store.SQLitePath, logger.Component(loggerClient, "sqlite"))
		if err != nil {
			return backend{}, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		loggerClient.Info("SQLite store opened", logger.String("path", cfg.Store.SQLitePath))
		return backend{docs: s, closers: []namedCloser{{"sqlite", s}}}, nil

	case config.StoreMemory:
		loggerClient.Warn("using in-memory store, data is lost on restart")
		s := memory.New()
		return backend{docs: s, closers: []namedCloser{{"memory", s}}}, nil

	default:
		return backend{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// loadSeed returns the default catalog, or nil when seeding is disabled.
func loadSeed(cfg *config.Config, loggerClient logger.Logger) ([]domain.AppFields, error) {
	if !cfg.SeedEnabled {
		loggerClient.Info("seeding disabled")
		return nil, nil
	}

	catalog, err := seed.NewLoader(cfg.SeedFile).Load()
	if err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	apps, err := seed.NewMapper().MapApps(catalog)
	if err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	source := cfg.SeedFile
	if source == "" {
		source = "embedded"
	}
	loggerClient.Info("seed catalog loaded",
		logger.String("source", source),
		logger.Int("apps", len(apps)))
	return apps, nil
}

func closeAll(closers []namedCloser, loggerClient logger.Logger) {
	for _, nc := range closers {
		utils.MustClose(nc.c, loggerClient, nc.name)
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting AppVault v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("AppVault %s (store=%s)", version.String(), a.cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Subscribe and seed before accepting traffic; readyz reports the state.
	if err := a.collection.Start(ctx); err != nil {
		closeAll(a.closers, a.logger)
		return fmt.Errorf("failed to start collection: %w", err)
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Stop the listener before closing the store it reads from.
	a.collection.Stop()
	closeAll(a.closers, a.logger)

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ AppVault stopped cleanly")
	return nil
}
