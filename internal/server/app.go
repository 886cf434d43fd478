// Package server wires configuration, storage, the auth core and both
// network boundaries into one runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/config"
	gs "github.com/dmitrijs2005/vipclub/internal/server/grpc"
	"github.com/dmitrijs2005/vipclub/internal/server/health"
	"github.com/dmitrijs2005/vipclub/internal/server/httpapi"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/dmitrijs2005/vipclub/internal/server/objectstore"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipclub/internal/server/revocation"
	"github.com/dmitrijs2005/vipclub/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Seams for tests.
var (
	openDB         = repomanager.OpenDB
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newObjectStore = func(ctx context.Context, c objectstore.Config) (objectstore.Store, error) {
		return objectstore.NewS3Store(ctx, c)
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	rdb      redis.UniversalClient
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	users    *services.UserService
	barcodes *services.BarcodeService
	janitor  *revocation.Janitor
	health   *health.Checker

	closeOnce sync.Once
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.registry = prometheus.NewRegistry()
	app.metrics = metrics.NewMetrics(app.registry)

	durable := revocation.NewDurableStore(rm.RevokedTokens(app.db), app.metrics)
	var (
		store  revocation.Store  = durable
		purger revocation.Purger = durable
		mirror revocation.Resyncer
	)

	if c.RedisEnabled() {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		app.rdb = redis.NewClient(opts)

		cached := revocation.NewCachedStore(app.rdb, durable, app.logger, app.metrics)
		store, purger, mirror = cached, cached, cached
	}

	hasher, err := auth.NewBcryptHasher(c.BcryptCost, c.HashWorkers)
	if err != nil {
		return fmt.Errorf("hasher: %w", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(c.SecretKey),
		TTL:    c.AccessTokenTTL,
		Leeway: c.ClockSkewLeeway,
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	var objects objectstore.Store
	if c.S3Enabled() {
		objects, err = newObjectStore(ctx, objectstore.Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			PresignTTL:   c.S3PresignTTL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
	}

	app.users = services.NewUserService(app.db, rm, hasher, tokens, store, app.logger, app.metrics)
	app.barcodes = services.NewBarcodeService(objects, app.logger, app.metrics)
	app.janitor = revocation.NewJanitor(purger, mirror, c.PurgeSchedule, app.logger)
	app.health = health.NewChecker(app.db, app.rdb)

	return nil
}

// Router returns the HTTP handler serving every route.
func (app *App) Router() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Users:    app.users,
		Barcodes: app.barcodes,
		Health:   app.health,
		Metrics:  metrics.Handler(app.registry),
		Log:      app.logger,
		Recorder: app.metrics,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC and runs the revocation janitor until ctx is
// cancelled, a signal arrives or one of them fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	httpServer := httpapi.NewServer(app.config.HTTPAddr, app.Router(), app.config.ShutdownTimeout, app.logger)
	g.Go(func() error { return httpServer.Run(gctx) })

	if app.config.GRPCAddr != "" {
		grpcServer := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.users, app.metrics)
		g.Go(func() error { return grpcServer.Run(gctx) })
	}

	g.Go(func() error { return app.janitor.Run(gctx) })

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the database pool and the Redis client. Calls after the
// first do nothing.
func (app *App) Close() {
	app.closeOnce.Do(func() {
		if app.rdb != nil {
			_ = app.rdb.Close()
		}
		if app.db != nil {
			_ = app.db.Close()
		}
	})
}
