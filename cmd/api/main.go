package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/handler"
	"github.com/classtrack/classtrack-api/internal/middleware"
	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/repository"
	"github.com/classtrack/classtrack-api/internal/service"
	"github.com/classtrack/classtrack-api/pkg/cache"
	"github.com/classtrack/classtrack-api/pkg/config"
	"github.com/classtrack/classtrack-api/pkg/database"
	"github.com/classtrack/classtrack-api/pkg/jobs"
	"github.com/classtrack/classtrack-api/pkg/logger"
	corsmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/requestid"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheEnabled = false
	}
	var cacheStore service.CacheStore
	if cacheEnabled {
		cacheStore = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheStore, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	validate := validator.New()

	attendanceRepo := repository.NewAttendanceRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lessonRepo := repository.NewLessonRepository(db, logr)
	reportRepo := repository.NewReportRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
		Issuer:        "classtrack-api",
	})
	classSvc := service.NewClassService(classRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, studentRepo, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, classRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, lessonRepo, classRepo, attendanceSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(classRepo, studentRepo, attendanceRepo, lessonRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	blobStore, err := storage.NewBlobStore(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("export storage init failed", "error", err)
	}
	signer := storage.NewSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(attendanceSvc, reportSvc, classSvc, blobStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	worker := service.NewExportWorker(exportJobRepo, exportSvc, metricsSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportJobSvc := service.NewExportJobService(exportJobRepo, queue, exportSvc, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	router := buildRouter(cfg, logr, routerDeps{
		db:         db,
		metrics:    metricsSvc,
		auth:       handler.NewAuthHandler(authSvc),
		classes:    handler.NewClassHandler(classSvc),
		students:   handler.NewStudentHandler(studentSvc),
		attendance: handler.NewAttendanceHandler(attendanceSvc),
		lessons:    handler.NewLessonHandler(lessonSvc),
		reports:    handler.NewReportHandler(reportSvc),
		exports:    handler.NewExportHandler(exportJobSvc),
		dashboard:  handler.NewDashboardHandler(dashboardSvc),
		authSvc:    authSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

type routerDeps struct {
	db         *sqlx.DB
	metrics    *service.MetricsService
	auth       *handler.AuthHandler
	classes    *handler.ClassHandler
	students   *handler.StudentHandler
	attendance *handler.AttendanceHandler
	lessons    *handler.LessonHandler
	reports    *handler.ReportHandler
	exports    *handler.ExportHandler
	dashboard  *handler.DashboardHandler
	authSvc    *service.AuthService
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := deps.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(deps.metrics.Handler()))

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.auth.Login)
	auth.POST("/refresh", deps.auth.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.authSvc))

	protected.POST("/auth/logout", deps.auth.Logout)
	protected.GET("/auth/me", deps.auth.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	classes := protected.Group("/classes")
	classes.GET("", staff, deps.classes.List)
	classes.POST("", adminOnly, deps.classes.Create)
	classes.GET("/:id", staff, deps.classes.Get)
	classes.PUT("/:id", adminOnly, deps.classes.Update)
	classes.GET("/:id/attendance-matrix", staff, deps.attendance.Matrix)
	classes.GET("/:id/schedule-dates", staff, deps.attendance.ScheduleDates)
	classes.GET("/:id/attendance-summary", staff, deps.attendance.Summaries)
	classes.GET("/:id/comment-sheet", staff, deps.lessons.GetByClassAndDate)
	classes.GET("/:id/reports", staff, deps.reports.ListByClass)

	students := protected.Group("/students")
	students.GET("", staff, deps.students.List)
	students.POST("", staff, deps.students.Create)
	students.GET("/:id", staff, deps.students.Get)
	students.PUT("/:id", staff, deps.students.Update)

	attendance := protected.Group("/attendance")
	attendance.GET("", staff, deps.attendance.List)
	attendance.POST("", staff, deps.attendance.Mark)
	attendance.POST("/bulk", staff, deps.attendance.BulkMark)
	attendance.DELETE("/:id", staff, deps.attendance.Delete)

	sheets := protected.Group("/comment-sheets")
	sheets.GET("", staff, deps.lessons.List)
	sheets.POST("", staff, deps.lessons.Save)
	sheets.GET("/:id", staff, deps.lessons.Get)
	sheets.DELETE("/:id", staff, deps.lessons.Delete)

	reports := protected.Group("/reports")
	reports.POST("/generate", staff, deps.reports.Generate)
	reports.POST("/preview", staff, deps.reports.Preview)
	reports.GET("/:id", staff, deps.reports.Get)
	reports.PUT("/:id", staff, deps.reports.Update)
	reports.DELETE("/:id", adminOnly, deps.reports.Delete)

	exports := protected.Group("/exports")
	exports.POST("", staff, deps.exports.Create)
	exports.GET("/:id", staff, deps.exports.Status)

	// Download authenticates via the signed token itself so result URLs can
	// be opened directly from a browser.
	api.GET("/exports/download/:token", deps.exports.Download)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/stats", staff, deps.dashboard.Stats)
	}

	return r
}
