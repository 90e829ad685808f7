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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noor-academy/school-api/api/swagger"
	"github.com/noor-academy/school-api/internal/handler"
	"github.com/noor-academy/school-api/internal/middleware"
	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/internal/repository"
	"github.com/noor-academy/school-api/internal/service"
	"github.com/noor-academy/school-api/pkg/cache"
	"github.com/noor-academy/school-api/pkg/config"
	"github.com/noor-academy/school-api/pkg/database"
	"github.com/noor-academy/school-api/pkg/jobs"
	"github.com/noor-academy/school-api/pkg/logger"
	corsmiddleware "github.com/noor-academy/school-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noor-academy/school-api/pkg/middleware/requestid"
	"github.com/noor-academy/school-api/pkg/storage"
)

// @title Noor Academy School API
// @version 1.0.0
// @description Administration backend for students, teachers, courses, enrollments, attendance, grades and parent follow-ups
// @BasePath /api
// @schemes http

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, report cache disabled", zap.Error(err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close() //nolint:errcheck
		}
	}()

	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	followupRepo := repository.NewFollowupRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	counter := service.NewCourseCounter(enrollmentRepo, courseRepo, jobs.QueueConfig{
		Workers:    cfg.Counters.Workers,
		BufferSize: cfg.Counters.BufferSize,
		MaxRetries: cfg.Counters.MaxRetries,
		RetryDelay: cfg.Counters.RetryDelay,
	}, logr)
	metricsService := service.NewMetricsService()
	counter.SetMetrics(metricsService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counter.Start(ctx)
	defer counter.Stop()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		AccessExpiry:      cfg.JWT.Expiration,
		RefreshExpiry:     cfg.JWT.RefreshExpiration,
		Issuer:            cfg.JWT.Issuer,
		AllowRegistration: cfg.JWT.AllowRegistration,
	})
	studentService := service.NewStudentService(studentRepo, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, teacherRepo, counter, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, counter, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, validate, logr)
	followupService := service.NewFollowupService(followupRepo, validate, logr)
	reportService := service.NewReportService(service.ReportServiceDeps{
		Reports:     reportRepo,
		Students:    studentRepo,
		Teachers:    teacherRepo,
		Courses:     courseRepo,
		Attendance:  attendanceRepo,
		Grades:      gradeRepo,
		Followups:   followupRepo,
		Enrollments: enrollmentRepo,
		Cache:       cacheRepo,
		CacheTTL:    cfg.Reports.CacheTTL,
		Storage:     exportStorage,
		Signer:      signer,
		Logger:      logr,
	})

	studentService.SetMetrics(metricsService)
	teacherService.SetMetrics(metricsService)
	courseService.SetMetrics(metricsService)
	reportService.SetMetrics(metricsService)

	router := buildRouter(cfg, logr, routerDeps{
		auth:        handler.NewAuthHandler(authService),
		students:    handler.NewStudentHandler(studentService),
		teachers:    handler.NewTeacherHandler(teacherService),
		courses:     handler.NewCourseHandler(courseService),
		enrollments: handler.NewEnrollmentHandler(enrollmentService),
		attendance:  handler.NewAttendanceHandler(attendanceService),
		grades:      handler.NewGradeHandler(gradeService),
		followups:   handler.NewFollowupHandler(followupService),
		reports:     handler.NewReportHandler(reportService),
		metrics:     handler.NewMetricsHandler(metricsService),
		authService: authService,
		metricsSvc:  metricsService,
	})

	go cleanupExports(ctx, exportStorage, cfg.Reports, logr)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown failed", zap.Error(err))
	}
}

type routerDeps struct {
	auth        *handler.AuthHandler
	students    *handler.StudentHandler
	teachers    *handler.TeacherHandler
	courses     *handler.CourseHandler
	enrollments *handler.EnrollmentHandler
	attendance  *handler.AttendanceHandler
	grades      *handler.GradeHandler
	followups   *handler.FollowupHandler
	reports     *handler.ReportHandler
	metrics     *handler.MetricsHandler
	authService *service.AuthService
	metricsSvc  *service.MetricsService
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Health)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)
		auth.POST("/logout", middleware.JWT(deps.authService), deps.auth.Logout)
		auth.POST("/register", middleware.JWT(deps.authService), middleware.RequireRoles(models.RoleAdmin), deps.auth.Register)
		auth.POST("/change-password", middleware.JWT(deps.authService), deps.auth.ChangePassword)
		auth.GET("/me", middleware.JWT(deps.authService), deps.auth.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.authService))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleTeacher)

	students := protected.Group("/students")
	{
		students.GET("", anyRole, deps.students.List)
		students.GET("/stats", anyRole, deps.students.Stats)
		students.GET("/:id", anyRole, deps.students.Get)
		students.POST("", staff, deps.students.Create)
		students.POST("/bulk", staff, deps.students.BulkImport)
		students.PUT("/:id", staff, deps.students.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.students.Delete)
	}

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", anyRole, deps.teachers.List)
		teachers.GET("/stats", anyRole, deps.teachers.Stats)
		teachers.GET("/:id", anyRole, deps.teachers.Get)
		teachers.POST("", staff, deps.teachers.Create)
		teachers.PUT("/:id", staff, deps.teachers.Update)
		teachers.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.teachers.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", anyRole, deps.courses.List)
		courses.GET("/available", anyRole, deps.courses.Available)
		courses.GET("/stats", anyRole, deps.courses.Stats)
		courses.GET("/:id", anyRole, deps.courses.Get)
		courses.POST("", staff, deps.courses.Create)
		courses.PUT("/:id", staff, deps.courses.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.courses.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", anyRole, deps.enrollments.List)
		enrollments.GET("/:id", anyRole, deps.enrollments.Get)
		enrollments.POST("", staff, deps.enrollments.Enroll)
		enrollments.PUT("/:id", staff, deps.enrollments.UpdateStatus)
		enrollments.DELETE("/:id", staff, deps.enrollments.Delete)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.GET("", anyRole, deps.attendance.List)
		attendance.GET("/stats", anyRole, deps.attendance.Stats)
		attendance.GET("/:id", anyRole, deps.attendance.Get)
		attendance.POST("", anyRole, deps.attendance.Mark)
		attendance.POST("/bulk", anyRole, deps.attendance.MarkBulk)
		attendance.PUT("/:id", anyRole, deps.attendance.Update)
		attendance.DELETE("/:id", staff, deps.attendance.Delete)
	}

	grades := protected.Group("/grades")
	{
		grades.GET("", anyRole, deps.grades.List)
		grades.GET("/:id", anyRole, deps.grades.Get)
		grades.GET("/student/:id/summary", anyRole, deps.grades.StudentSummary)
		grades.POST("", anyRole, deps.grades.Create)
		grades.PUT("/:id", anyRole, deps.grades.Update)
		grades.DELETE("/:id", staff, deps.grades.Delete)
	}

	followups := protected.Group("/followups")
	{
		followups.GET("", anyRole, deps.followups.List)
		followups.GET("/overdue", anyRole, deps.followups.Overdue)
		followups.GET("/stats", anyRole, deps.followups.Stats)
		followups.GET("/:id", anyRole, deps.followups.Get)
		followups.POST("", anyRole, deps.followups.Create)
		followups.PUT("/:id", anyRole, deps.followups.Update)
		followups.POST("/:id/complete", anyRole, deps.followups.Complete)
		followups.DELETE("/:id", staff, deps.followups.Delete)
	}

	reports := protected.Group("/reports")
	{
		reports.GET("/overview", anyRole, deps.reports.Overview)
		reports.GET("/students", anyRole, deps.reports.Students)
		reports.GET("/attendance", anyRole, deps.reports.Attendance)
		reports.GET("/grades", anyRole, deps.reports.Grades)
		reports.GET("/comprehensive", staff, deps.reports.Comprehensive)
		reports.GET("/student/:id", anyRole, deps.reports.StudentDashboard)
		reports.GET("/teacher/:id", anyRole, deps.reports.TeacherDashboard)
		reports.POST("/export", staff, deps.reports.Export)
	}
	// the signed token is the credential here; a bearer token, when present,
	// only enriches the access log
	api.GET("/reports/download", middleware.OptionalJWT(deps.authService), deps.reports.Download)

	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), deps.metrics.Snapshot)

	return r
}

// cleanupExports prunes exported report files past the signed URL lifetime.
func cleanupExports(ctx context.Context, store *storage.LocalStorage, cfg config.ReportsConfig, logr *zap.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOlderThan(cfg.SignedURLTTL)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("pruned expired exports", zap.Int("count", len(removed)))
			}
		}
	}
}
