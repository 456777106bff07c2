package app

import (
	"context"

	redisclient "github.com/yungbote/tastelab-backend/internal/clients/redis"
	"github.com/yungbote/tastelab-backend/internal/data/db"
	"github.com/yungbote/tastelab-backend/internal/http"
	httpH "github.com/yungbote/tastelab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tastelab-backend/internal/http/middleware"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	User     *httpH.UserHandler
	Recipe   *httpH.RecipeHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, services Services, rt Realtime, pg *db.PostgresService, cache redisclient.UserCache) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := pg.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb := cache.Client(); rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Auth:     httpH.NewAuthHandler(services.Auth),
		User:     httpH.NewUserHandler(services.User),
		Recipe:   httpH.NewRecipeHandler(log, services.Recipe),
		Realtime: httpH.NewRealtimeHandler(rt.Gateway),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func routerConfig(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) http.RouterConfig {
	tracing := ""
	if cfg.OtelEnabled {
		tracing = cfg.OtelServiceName
	}
	return http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		TracingService:  tracing,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		AuthMiddleware:  middleware.Auth,
		UserHandler:     handlers.User,
		RecipeHandler:   handlers.Recipe,
		RealtimeHandler: handlers.Realtime,
	}
}
