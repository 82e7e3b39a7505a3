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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openheritage/arkmesh/api/swagger"
	"github.com/openheritage/arkmesh/internal/handler"
	"github.com/openheritage/arkmesh/internal/middleware"
	"github.com/openheritage/arkmesh/internal/repository"
	"github.com/openheritage/arkmesh/internal/service"
	"github.com/openheritage/arkmesh/pkg/cache"
	"github.com/openheritage/arkmesh/pkg/config"
	"github.com/openheritage/arkmesh/pkg/database"
	"github.com/openheritage/arkmesh/pkg/jobs"
	"github.com/openheritage/arkmesh/pkg/logger"
	corsmiddleware "github.com/openheritage/arkmesh/pkg/middleware/cors"
	reqidmiddleware "github.com/openheritage/arkmesh/pkg/middleware/requestid"
	"github.com/openheritage/arkmesh/pkg/publish"
	"github.com/openheritage/arkmesh/pkg/storage"
)

// @title ArkMesh API
// @version 0.1.0
// @description Crowdsourced heritage reconstruction: contribution intake, run lifecycle and ARK resolution
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		}
	}

	mediaStore, err := storage.NewMediaStore(cfg.Media.Root)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media store", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher service.ArtifactPublisher
	if cfg.Publish.Enabled {
		pub, err := publish.New(cfg.Publish)
		if err != nil {
			logr.Sugar().Fatalw("failed to init publisher", "error", err)
		}
		if err := pub.EnsureBucket(ctx); err != nil {
			logr.Sugar().Fatalw("failed to ensure artifact bucket", "error", err)
		}
		publisher = pub
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	meshRepo := repository.NewMeshRepository(db)
	contributionRepo := repository.NewContributionRepository(db)
	imageRepo := repository.NewImageRepository(db)
	contributorRepo := repository.NewContributorRepository(db)
	runRepo := repository.NewRunRepository(db)
	arkRepo := repository.NewARKRepository(db)
	userRepo := repository.NewUserRepository(db)
	listingCache := repository.NewListingCache(redisClient, logr)

	cacheSvc := service.NewCacheService(listingCache, metricsSvc, cfg.Media.ListingCacheTTL, logr, cfg.Redis.Enabled && redisClient != nil)
	meshSvc := service.NewMeshService(meshRepo, mediaStore, cacheSvc, validate, logr,
		cfg.Media.ThumbnailMinDim, cfg.Media.ThumbnailQuality, cfg.Media.ListingCacheTTL)
	contributorSvc := service.NewContributorService(contributorRepo, validate, logr)
	intakeSvc := service.NewIntakeService(contributionRepo, imageRepo, mediaStore, metricsSvc, logr)
	arkSvc := service.NewARKService(arkRepo, cfg.ARK, metricsSvc, logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)

	engine := service.NewExecEngine(cfg.Reconstruction.EngineCommand, mediaStore, logr)
	runSvc := service.NewRunService(runRepo, meshRepo, imageRepo, arkSvc, engine, publisher, mediaStore,
		metricsSvc, logr, cfg.Reconstruction.MinImages, cfg.Reconstruction.WorkerRetries, cfg.Publish.PublicBaseURL)

	queue := jobs.NewQueue("reconstruction", runSvc.HandleReconstruction, jobs.QueueConfig{
		Workers:    cfg.Reconstruction.WorkerConcurrency,
		MaxRetries: cfg.Reconstruction.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	runSvc.AttachQueue(queue)

	scheduler := service.NewSchedulerService(meshRepo, runSvc, cfg.Reconstruction.SweepSchedule, logr)
	if cfg.Reconstruction.Enabled {
		if err := scheduler.Start(); err != nil {
			logr.Sugar().Fatalw("failed to start reconstruction sweep", "error", err)
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	meshHandler := handler.NewMeshHandler(meshSvc)
	contributorHandler := handler.NewContributorHandler(contributorSvc)
	contributionHandler := handler.NewContributionHandler(intakeSvc)
	runHandler := handler.NewRunHandler(runSvc)
	arkHandler := handler.NewARKHandler(arkSvc)
	authHandler := handler.NewAuthHandler(authSvc)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	// Resolver lives at the root so minted ARKs stay stable across API
	// versions. Wildcard because the identifier contains slashes.
	r.GET("/ark/*ark", arkHandler.Resolve)

	r.Static("/media", cfg.Media.Root)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		api.GET("/meshes", meshHandler.ListPublic)
		api.GET("/meshes/:id", meshHandler.Get)
		api.GET("/meshes/:id/runs", runHandler.ListByMesh)
		api.POST("/meshes/:id/contributions", contributionHandler.Submit)

		api.GET("/contributions/:id", contributionHandler.Get)
		api.POST("/contributors", contributorHandler.Register)
		api.GET("/contributors/:id", contributorHandler.Get)

		api.GET("/runs/:id", runHandler.Get)
		api.GET("/runs/:id/citation", runHandler.Citation)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authSvc))
	{
		admin.GET("/meshes", meshHandler.List)
		admin.POST("/meshes", meshHandler.Create)
		admin.PUT("/meshes/:id", meshHandler.Update)
		admin.PUT("/meshes/:id/completed", meshHandler.SetCompleted)
		admin.PUT("/meshes/:id/hidden", meshHandler.SetHidden)
		admin.PUT("/meshes/:id/thumbnail", meshHandler.UploadThumbnail)
		admin.PUT("/meshes/:id/preview", meshHandler.UploadPreview)
		admin.GET("/meshes/:id/contributions", contributionHandler.ListByMesh)
		admin.POST("/meshes/:id/runs", runHandler.Start)
		admin.POST("/meshes/:id/runs/retry", runHandler.Retry)

		admin.PUT("/images/:id/label", contributionHandler.LabelImage)
		admin.POST("/contributions/:id/processed", contributionHandler.MarkProcessed)

		admin.POST("/runs/:id/cancel", runHandler.Cancel)
		admin.DELETE("/runs/:id", runHandler.Delete)

		admin.GET("/contributors", contributorHandler.List)
		admin.POST("/contributors/:id/ban", contributorHandler.Ban)
		admin.DELETE("/contributors/:id/ban", contributorHandler.Unban)

		admin.PUT("/ark/*ark", arkHandler.UpdateBinding)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	scheduler.Stop()
	queue.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	listingCache.Close() //nolint:errcheck
}
