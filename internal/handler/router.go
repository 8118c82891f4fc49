package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/middleware"
	"github.com/finlink/reports-api/internal/service"
	"github.com/finlink/reports-api/pkg/config"
	"github.com/finlink/reports-api/pkg/logger"
	"github.com/finlink/reports-api/pkg/middleware/cors"
	"github.com/finlink/reports-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Health    *HealthHandler
	Reports   *ReportHandler
	Schedules *ScheduleHandler
	Scheduler *SchedulerHandler
}

// NewRouter assembles the gin engine with middleware, probes and all API
// routes under the configured prefix.
func NewRouter(cfg *config.Config, log *zap.Logger, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(logger.GinMiddleware(log))
	router.Use(cors.New(cfg.CORS.AllowedOrigins))
	if metrics != nil {
		router.Use(middleware.Metrics(metrics))
	}

	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if cfg.Env != config.EnvProduction {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Signed download links live outside the API prefix so emailed URLs
	// stay short and stable.
	router.GET("/export/:token", h.Reports.Download)

	api := router.Group(cfg.APIPrefix)
	{
		reports := api.Group("/reports")
		{
			reports.POST("/generate", h.Reports.Generate)
			reports.POST("/export", h.Reports.CreateExport)
			reports.GET("/export/:id", h.Reports.GetExport)
		}

		schedules := api.Group("/scheduled-reports")
		{
			schedules.POST("", h.Schedules.Create)
			schedules.GET("", h.Schedules.List)
			schedules.GET("/:id", h.Schedules.Get)
			schedules.PATCH("/:id", h.Schedules.Update)
			schedules.DELETE("/:id", h.Schedules.Delete)
			schedules.GET("/:id/runs", h.Schedules.Runs)
		}

		if cfg.Scheduler.Enabled {
			scheduler := api.Group("/scheduler")
			scheduler.Use(middleware.TriggerAuth(cfg.Scheduler.TriggerToken))
			scheduler.POST("/tick", h.Scheduler.Tick)
		}
	}

	return router
}
