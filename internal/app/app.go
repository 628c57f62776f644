package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stacklink/internal/backfill"
	"github.com/MrSnakeDoc/stacklink/internal/config"
	"github.com/MrSnakeDoc/stacklink/internal/dal"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver"
	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/library"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
	"github.com/MrSnakeDoc/stacklink/internal/metrics"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
	"github.com/MrSnakeDoc/stacklink/internal/preview"
	"github.com/MrSnakeDoc/stacklink/internal/redis"
	"github.com/MrSnakeDoc/stacklink/internal/scheduler"
	"github.com/MrSnakeDoc/stacklink/internal/store"
	"github.com/MrSnakeDoc/stacklink/internal/store/local"
	redisstore "github.com/MrSnakeDoc/stacklink/internal/store/redis"
	"github.com/MrSnakeDoc/stacklink/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	layer       *dal.Layer
	controller  *offline.Controller
	backfill    *scheduler.BackfillWorker
	sweeper     *scheduler.CacheSweeper
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	m := metrics.New()

	a := &App{cfg: cfg, logger: loggerClient}

	// Backend selection happens once. Any remote failure means local for
	// the whole process lifetime.
	layer, err := dal.Select(context.Background(), a.initRemote, a.initLocal, loggerClient, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data layer: %w", err)
	}
	a.layer = layer

	// Preview chain: metadata endpoint first (if configured), then Microlink
	previewClient := &http.Client{Timeout: cfg.PreviewTimeout}
	providers := make([]preview.Provider, 0, 2)
	if cfg.PreviewEndpoint != "" {
		providers = append(providers, preview.NewMetaProvider(cfg.PreviewEndpoint, previewClient))
	}
	providers = append(providers, preview.NewMicrolinkProvider(cfg.MicrolinkEndpoint, previewClient))
	previews := preview.NewChain(loggerClient, providers...)

	// Background preview backfill, fed by library loads
	a.backfill = scheduler.NewBackfillWorker(
		layer,
		backfill.New(previews, layer, loggerClient, m),
		loggerClient,
		cfg.BackfillInterval,
	)
	lib := library.New(layer, previews, a.backfill, loggerClient,
		library.WithSnapshotTTL(cfg.SnapshotTTL))
	a.backfill.OnUpdate(func(ctx context.Context) { lib.RefreshLinks(ctx) })

	controller, err := a.initOffline(m)
	if err != nil {
		return nil, err
	}
	a.controller = controller
	a.sweeper = scheduler.NewCacheSweeper(map[string]scheduler.Pruner{
		"buckets":   controller,
		"snapshots": lib,
	}, loggerClient, cfg.SweepInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RateLimit:    cfg.RateLimit,
		OwnerHeader:  cfg.OwnerHeader,
		OwnerProxies: cfg.OwnerProxies,
		Backend:      layer.Backend(),
		RedisClient:  a.redisClient,
		Library:      lib,
		Offline:      controller,
		Metrics:      m,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

// initRemote connects to Redis. Without an address it fails immediately
// with redis.ErrNotConfigured.
func (a *App) initRemote(ctx context.Context) (store.Store, error) {
	if a.cfg.RedisAddr != "" {
		a.logger.Infof("Connecting to Redis at %s", a.cfg.RedisAddr)
	}
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           a.cfg.RedisAddr,
		User:           a.cfg.RedisUser,
		Password:       a.cfg.RedisPassword,
		RedisDB:        a.cfg.RedisDB,
		DialTimeout:    a.cfg.RedisDT,
		ReadTimeout:    a.cfg.RedisRT,
		WriteTimeout:   a.cfg.RedisWT,
		PoolSize:       a.cfg.RedisPoolSize,
		ConnectTimeout: a.cfg.RedisConnectTimeout,
		RetryInterval:  a.cfg.RedisRetryInterval,
		MaxWait:        a.cfg.RedisMaxWait,
		PingTimeout:    a.cfg.RedisPingTimeout,
		WarnThreshold:  a.cfg.RedisWarnThreshold,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.redisClient = client
	a.logger.Info("Redis initialized successfully")
	return redisstore.NewStore(client), nil
}

func (a *App) initLocal() (store.Store, error) {
	space, err := local.NewFileKeySpace(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local data dir: %w", err)
	}
	a.logger.Info("local backend ready", logger.String("dir", a.cfg.DataDir))
	return local.NewStore(space), nil
}

func (a *App) initOffline(m *metrics.Metrics) (*offline.Controller, error) {
	manifest, err := offline.LoadManifest(a.cfg.ManifestFile)
	if err != nil {
		return nil, err
	}
	if a.cfg.CacheVersion != "" {
		manifest.Version = a.cfg.CacheVersion
	}

	var storage offline.Storage = offline.NewMemoryStorage()
	if a.cfg.CacheStorage == "redis" {
		if a.redisClient != nil {
			storage = offline.NewRedisStorage(a.redisClient)
		} else {
			a.logger.Warn("redis cache storage requested without a redis backend, using memory")
		}
	}

	controller, err := offline.New(offline.Options{
		Origin:            a.cfg.OriginURL,
		Manifest:          manifest,
		Storage:           storage,
		RevalidateTimeout: a.cfg.RevalidateTimeout,
		PrimeConcurrency:  a.cfg.PrimeConcurrency,
		Logger:            a.logger,
		Metrics:           m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create offline controller: %w", err)
	}
	return controller, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting StackLink v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("StackLink %s, backend=%s", version.String(), a.layer.Backend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Install + activate the offline cache. A failed install leaves the
	// controller redundant: requests still reach the origin uncached.
	if err := a.controller.Start(ctx); err != nil {
		a.logger.Error("offline cache controller failed to start",
			logger.Error(err))
	} else {
		a.logger.Info("offline cache controller active",
			logger.String("bucket", a.controller.Bucket()))
	}

	a.backfill.Start(ctx)
	a.logger.Info("preview backfill worker started",
		logger.Duration("interval", a.cfg.BackfillInterval))

	a.sweeper.Start(ctx)
	a.logger.Info("cache sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

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
		a.logger.Error("http server failed, shutting down", logger.Error(runErr))
	}

	if err := a.shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// shutdown stops every component in order. A failing step does not skip
// the following ones.
func (a *App) shutdown() error {
	var errs []error

	a.sweeper.Stop()
	a.backfill.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}

	// Let in-flight revalidations reach the cache before closing storage
	a.controller.Wait()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if len(errs) == 0 {
		a.logger.Info("✅ StackLink stopped cleanly")
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
