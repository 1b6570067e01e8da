package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/competency-api/api/swagger"
	"github.com/noah-isme/competency-api/internal/handler"
	"github.com/noah-isme/competency-api/internal/middleware"
	"github.com/noah-isme/competency-api/internal/models"
	"github.com/noah-isme/competency-api/internal/repository"
	"github.com/noah-isme/competency-api/internal/service"
	"github.com/noah-isme/competency-api/pkg/cache"
	"github.com/noah-isme/competency-api/pkg/config"
	"github.com/noah-isme/competency-api/pkg/database"
	"github.com/noah-isme/competency-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/competency-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/competency-api/pkg/middleware/requestid"
)

// @title Competency API
// @version 1.0.0
// @description Rubric versioning and competency grading service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	templateRepo := repository.NewTemplateRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	thresholdRepo := repository.NewThresholdRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	cohortRepo := repository.NewCohortRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, cfg.JWT, logr)
	thresholdSvc := service.NewThresholdService(thresholdRepo, rubricRepo, templateRepo, logr)
	snapshotSvc := service.NewSnapshotService(templateRepo, rubricRepo, snapshotRepo, thresholdRepo, logr)
	templateSvc := service.NewTemplateService(templateRepo, rubricRepo, thresholdRepo, logr)
	cohortSvc := service.NewCohortService(cohortRepo, userRepo, studentRepo, snapshotSvc, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, rubricRepo, thresholdRepo, studentRepo, cohortRepo, cacheRepo, metricsSvc, cfg.Evaluation, cfg.Reports, logr)
	exportSvc := service.NewExportService(logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc, thresholdSvc)
	snapshotHandler := handler.NewSnapshotHandler(snapshotSvc)
	cohortHandler := handler.NewCohortHandler(cohortSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc, exportSvc, metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	manager := middleware.RequireRoles(models.RoleManager)
	staff := middleware.RequireRoles(models.RoleManager, models.RoleTeacher)

	authed.POST("/templates", manager, templateHandler.Create)
	authed.GET("/templates", staff, templateHandler.List)
	authed.GET("/templates/:id", staff, templateHandler.Get)
	authed.DELETE("/templates/:id", manager, templateHandler.Delete)
	authed.GET("/templates/:id/structure", staff, templateHandler.Structure)
	authed.PUT("/templates/:id/structure", manager, templateHandler.ImportStructure)
	authed.POST("/templates/:id/capabilities", manager, templateHandler.AddCapability)
	authed.POST("/capabilities/:id/criteria", manager, templateHandler.AddCriterion)
	authed.POST("/templates/:id/thresholds", manager, templateHandler.GenerateThresholds)
	authed.GET("/templates/:id/coverage-gaps", staff, templateHandler.CoverageGaps)
	authed.GET("/thresholds/preview", staff, templateHandler.PreviewThresholds)

	authed.POST("/templates/:id/snapshots", manager, snapshotHandler.Build)
	authed.GET("/templates/:id/snapshots", staff, snapshotHandler.ListByTemplate)
	authed.GET("/snapshots/:id", staff, snapshotHandler.Structure)
	authed.DELETE("/snapshots/:id", manager, snapshotHandler.Delete)

	authed.POST("/cohorts", manager, cohortHandler.Create)
	authed.GET("/cohorts", staff, cohortHandler.List)
	authed.GET("/cohorts/:id", staff, cohortHandler.Get)
	authed.PUT("/cohorts/:id", manager, cohortHandler.Update)
	authed.DELETE("/cohorts/:id", manager, cohortHandler.Delete)
	authed.PUT("/cohorts/:id/snapshot", manager, cohortHandler.RebindSnapshot)
	authed.POST("/cohorts/:id/students", manager, cohortHandler.EnrollStudent)
	authed.POST("/cohorts/:id/students/import", manager, cohortHandler.ImportRoster)
	authed.GET("/cohorts/:id/students", staff, cohortHandler.Roster)

	authed.POST("/evaluations", staff, evaluationHandler.Record)
	authed.GET("/students/:id/level", staff, evaluationHandler.StudentLevel)
	authed.POST("/students/:id/finalize", staff, evaluationHandler.Finalize)
	authed.POST("/students/:id/reopen", staff, evaluationHandler.Reopen)
	authed.POST("/cohorts/:id/finalize", staff, evaluationHandler.FinalizeCohort)
	authed.GET("/cohorts/:id/report", staff, evaluationHandler.Report)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
