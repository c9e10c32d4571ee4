package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/antonybarran/Sam-Search-WA-3/internal/cache"
	"github.com/antonybarran/Sam-Search-WA-3/internal/client/sam"
	"github.com/antonybarran/Sam-Search-WA-3/internal/config"
	cronrunner "github.com/antonybarran/Sam-Search-WA-3/internal/cron"
	"github.com/antonybarran/Sam-Search-WA-3/internal/db"
	"github.com/antonybarran/Sam-Search-WA-3/internal/handler"
	"github.com/antonybarran/Sam-Search-WA-3/internal/logger"
	gormrepository "github.com/antonybarran/Sam-Search-WA-3/internal/repository/gorm"
	"github.com/antonybarran/Sam-Search-WA-3/internal/service"

	_ "github.com/antonybarran/Sam-Search-WA-3/docs"
)

func main() {
	cfgPath := os.Getenv("SAM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SAM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	samClient := sam.NewClient(&http.Client{Timeout: cfg.API.Timeout}, sam.Options{
		Host:        cfg.API.BaseURL,
		APIKey:      cfg.API.Key,
		MaxTries:    cfg.API.MaxTries,
		BackoffBase: cfg.API.BackoffBase,
		BackoffMax:  cfg.API.BackoffMax,
		Logger:      log,
	})
	store := gormrepository.New(dbConn.Gorm, log, cfg.DB.PositionalBinds)
	syncService := &service.OpportunitySyncService{
		Store:        store,
		Client:       samClient,
		Logger:       log,
		Scope:        cfg.Ingest.Scope,
		LookbackDays: cfg.Ingest.LookbackDays,
		PageSize:     cfg.Ingest.PageSize,
		MaxRecords:   cfg.Ingest.MaxRecords,
		PagePause:    cfg.Ingest.PagePause,
		ZipPause:     cfg.Ingest.ZipPause,
		Zips:         cfg.Ingest.Zips,
		NAICS:        cfg.Ingest.NAICS,
		SetAside:     cfg.Ingest.SetAside,
		Cleanup:      cfg.Ingest.Cleanup,
		KeepRaw:      cfg.Ingest.KeepRaw,
	}
	queryService := &service.OpportunityQueryService{Repo: store}
	cacheStore := cache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, log)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	oppsHandler := &handler.OpportunityHandler{
		Query:    queryService,
		Cache:    cacheStore,
		CacheTTL: cfg.Cache.TTL,
		Logger:   log,
	}
	oppsHandler.Register(engine)
	ingestHandler := &handler.IngestHandler{Sync: syncService, Logger: log}
	ingestHandler.Register(engine)
	maintenanceHandler := &handler.MaintenanceHandler{
		Repo:       store,
		AdminToken: cfg.Admin.Token,
		Logger:     log,
	}
	maintenanceHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(log, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add("ingest", cfg.Cron.Ingest, func(ctx context.Context) {
			result, err := syncService.SyncOnce(ctx)
			if err != nil {
				if errors.Is(err, service.ErrSyncBusy) {
					log.Info("cron ingest skipped, previous run still active")
					return
				}
				log.Warn("cron ingest failed", zap.Error(err))
				return
			}
			log.Info("cron ingest ok",
				zap.String("run_id", result.RunID),
				zap.Int("pages", result.Pages),
				zap.Int("fetched", result.Fetched),
				zap.Int("upserted", result.Upserted),
				zap.Int64("deleted", result.Deleted),
			)
		})
		if err != nil {
			log.Warn("cron register ingest failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Admin-Token")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
