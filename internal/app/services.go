package app

import (
	"gorm.io/gorm"

	redisclient "github.com/yungbote/tastelab-backend/internal/clients/redis"
	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"github.com/yungbote/tastelab-backend/internal/services"
)

type Services struct {
	Auth   services.AuthService
	User   services.UserService
	Recipe services.RecipeService

	RecipeAggregate domainagg.RecipeAggregate
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	metrics *observability.Metrics,
	cache redisclient.UserCache,
	reposet Repos,
	rt Realtime,
) Services {
	log.Info("Wiring services...")
	agg := aggregates.NewRecipeAggregate(aggregates.RecipeAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Recipes:  reposet.Recipe,
		Versions: reposet.RecipeVersion,
	})
	return Services{
		Auth:            services.NewAuthService(log, reposet.User, cache, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		User:            services.NewUserService(log, reposet.User),
		Recipe:          services.NewRecipeService(log, reposet.Recipe, reposet.RecipeVersion, reposet.User, agg, rt.Broadcaster),
		RecipeAggregate: agg,
	}
}
