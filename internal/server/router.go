package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/emineral/emineral-backend/internal/handlers"
	"github.com/emineral/emineral-backend/internal/middleware"
	"github.com/emineral/emineral-backend/internal/observability"
	"github.com/emineral/emineral-backend/internal/services"
)

type RouterDeps struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Record       *handlers.RecordHandler
	Public       *handlers.PublicHandler
	FormTemplate *handlers.FormTemplateHandler
	AuthService  services.AuthService
	Metrics      *observability.Metrics
	CORSOrigins  []string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("emineral-backend"))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	corsConfig := cors.DefaultConfig()
	if len(deps.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = deps.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Session-Id")
	router.Use(cors.New(corsConfig))

	router.GET("/healthcheck", deps.Health.HealthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Verification page data source; this is the path QR codes resolve to.
	router.GET("/records/:idOrToken", deps.Public.GetByTokenOrID)

	api := router.Group("/api")
	{
		api.POST("/register", deps.Auth.Register)
		api.POST("/login", deps.Auth.Login)
		api.GET("/form-template", deps.FormTemplate.Get)
		api.GET("/public/records/:publicToken", deps.Public.GetByToken)

		protected := api.Group("")
		protected.Use(middleware.RequireAuth(deps.AuthService))
		{
			protected.GET("/me", deps.User.Me)
			protected.POST("/records", deps.Record.Create)
			protected.GET("/records", deps.Record.List)
			protected.GET("/records/:id", deps.Record.Get)
			protected.DELETE("/records/:id", deps.Record.Delete)
			protected.POST("/records/:id/archive", deps.Record.Archive)
			protected.GET("/records/:id/scans", deps.Record.Scans)
			protected.GET("/records/:id/artifacts/:kind", deps.Record.DownloadArtifact)
			protected.GET("/stats", deps.Record.Stats)
		}
	}

	return router
}
