package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	redisclient "github.com/yungbote/tastelab-backend/internal/clients/redis"
	"github.com/yungbote/tastelab-backend/internal/data/db"
	"github.com/yungbote/tastelab-backend/internal/http"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"github.com/yungbote/tastelab-backend/internal/realtime"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *db.PostgresService
	Cache   redisclient.UserCache
	Metrics *observability.Metrics

	Repos    Repos
	Services Services
	Realtime Realtime
	Server   *http.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := observability.Init(log, cfg.MetricsEnabled)
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel())

	pg, err := db.NewPostgresService(cfg.DB(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := db.EnsureRecipeIndexes(pg.DB()); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	cache, err := redisclient.NewUserCache(log, cfg.UserCache(), metrics)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("init user cache: %w", err)
	}

	reposet := wireRepos(pg.DB(), log)
	rt := wireRealtime(log, metrics)
	serviceset := wireServices(pg.DB(), log, cfg, metrics, cache, reposet, rt)
	rt.Gateway = realtime.NewGateway(realtime.GatewayDeps{
		Log:         log,
		Registry:    rt.Registry,
		Broadcaster: rt.Broadcaster,
		Auth:        serviceset.Auth,
		Access:      serviceset.Recipe,
		Metrics:     metrics,
		Config:      cfg.Realtime(),
	})

	handlerset := wireHandlers(log, serviceset, rt, pg, cache)
	middleware := wireMiddleware(log, serviceset)
	server := http.NewServer(cfg.Addr(), routerConfig(log, cfg, metrics, handlerset, middleware))

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           pg,
		Cache:        cache,
		Metrics:      metrics,
		Repos:        reposet,
		Services:     serviceset,
		Realtime:     rt,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and the metrics endpoint until ctx is cancelled or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB.DB())
	a.Metrics.StartRedisCollector(gctx, a.Log, a.Cache.Client())

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr())
		return a.Server.Run(gctx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Log.Warn("user cache close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
