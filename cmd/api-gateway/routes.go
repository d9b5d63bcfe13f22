package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, app *application) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(app.metrics))

	metricsHandler := handler.NewMetricsHandler(app.metrics, app.generator)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	timetableHandler := handler.NewScheduleGeneratorHandler(app.generator)
	domainHandler := handler.NewDomainHandler(app.generator)
	runHandler := handler.NewRunHandler(app.runs)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(app.tokens))
	manage := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	api.GET("/domain", domainHandler.Get)
	api.PUT("/domain", manage, domainHandler.Replace)

	timetables := api.Group("/timetables")
	timetables.POST("/generate", manage, timetableHandler.Generate)
	timetables.POST("/generate-all", manage, timetableHandler.GenerateAll)
	timetables.DELETE("", manage, timetableHandler.Clear)
	timetables.GET("", timetableHandler.List)
	timetables.GET("/validation", timetableHandler.Validate)
	timetables.GET("/log", timetableHandler.Log)
	timetables.GET("/teachers/:id", timetableHandler.TeacherTimetable)
	timetables.GET("/rooms/:id", timetableHandler.RoomTimetable)
	timetables.POST("/runs", manage, runHandler.Create)
	timetables.GET("/runs/:id", runHandler.Get)
	timetables.GET("/:group", timetableHandler.Group)

	return r
}
