package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tastelab-backend/internal/http/handlers"
	httpMW "github.com/yungbote/tastelab-backend/internal/http/middleware"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// TracingService enables otelgin spans under this service name when set.
	TracingService string
	AllowedOrigins []string

	AuthHandler     *httpH.AuthHandler
	AuthMiddleware  *httpMW.AuthMiddleware
	UserHandler     *httpH.UserHandler
	RecipeHandler   *httpH.RecipeHandler
	RealtimeHandler *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

const realtimeRoute = "/api/realtime/ws"

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingService != "" {
		r.Use(otelgin.Middleware(cfg.TracingService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, realtimeRoute))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}

		// Realtime (the gateway verifies the credential before upgrading)
		if cfg.RealtimeHandler != nil {
			r.GET(realtimeRoute, cfg.RealtimeHandler.Serve)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		// Recipes
		if cfg.RecipeHandler != nil {
			protected.GET("/recipes", cfg.RecipeHandler.List)
			protected.POST("/recipes", cfg.RecipeHandler.Create)
			protected.GET("/recipes/:id", cfg.RecipeHandler.Get)
			protected.PUT("/recipes/:id", cfg.RecipeHandler.Update)
			protected.DELETE("/recipes/:id", cfg.RecipeHandler.Delete)

			protected.POST("/recipes/:id/version", cfg.RecipeHandler.SaveVersion)
			protected.GET("/recipes/:id/versions", cfg.RecipeHandler.ListVersions)
			protected.POST("/recipes/:id/restore/:versionId", cfg.RecipeHandler.RestoreVersion)

			protected.POST("/recipes/:id/invite", cfg.RecipeHandler.Invite)
			protected.DELETE("/recipes/:id/collaborator/:userId", cfg.RecipeHandler.RemoveCollaborator)
		}
	}

	return r
}
