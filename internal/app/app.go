package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emineral/emineral-backend/internal/data/db"
	"github.com/emineral/emineral-backend/internal/data/repos"
	"github.com/emineral/emineral-backend/internal/handlers"
	"github.com/emineral/emineral-backend/internal/observability"
	"github.com/emineral/emineral-backend/internal/platform/gcp"
	"github.com/emineral/emineral-backend/internal/platform/logger"
	"github.com/emineral/emineral-backend/internal/platform/rediscache"
	"github.com/emineral/emineral-backend/internal/server"
	"github.com/emineral/emineral-backend/internal/services"
)

type Repos struct {
	User         repos.UserRepo
	Record       repos.RecordRepo
	ScanLog      repos.ScanLogRepo
	AuditLog     repos.AuditLogRepo
	FormTemplate repos.FormTemplateRepo
}

type Services struct {
	Auth         services.AuthService
	User         services.UserService
	Record       services.RecordService
	Scan         services.ScanService
	Analytics    services.AnalyticsService
	QRCode       services.QRCodeService
	Document     services.DocumentService
	FormTemplate services.FormTemplateService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	cache        *rediscache.Cache
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "emineral-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	var metrics *observability.Metrics
	if observability.MetricsEnabled() {
		metrics = observability.NewMetrics()
	}

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("auto migration: %w", err)
	}
	theDB := dbService.DB()

	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	cache, err := rediscache.New(log)
	if err != nil {
		log.Warn("Redis init failed, continuing without cache", "error", err)
		cache = nil
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(ctx, theDB, log, cfg, reposet, bucketService, cache, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	router := wireRouter(log, dbService, cfg, serviceset, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		cache:        cache,
		otelShutdown: otelShutdown,
	}, nil
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		Record:       repos.NewRecordRepo(db, log),
		ScanLog:      repos.NewScanLogRepo(db, log),
		AuditLog:     repos.NewAuditLogRepo(db, log),
		FormTemplate: repos.NewFormTemplateRepo(db, log),
	}
}

func wireServices(
	ctx context.Context,
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	reposet Repos,
	bucket gcp.BucketService,
	cache *rediscache.Cache,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	authService, err := services.NewAuthService(log, reposet.User, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}
	userService := services.NewUserService(log, reposet.User)

	templateService, err := services.NewFormTemplateService(ctx, log, reposet.FormTemplate)
	if err != nil {
		return Services{}, fmt.Errorf("init form template service: %w", err)
	}

	qrService := services.NewQRCodeService(log, bucket, cfg.PublicBaseURL)
	docService := services.NewDocumentService(log, bucket)

	recordService := services.NewRecordService(
		log,
		db,
		reposet.Record,
		reposet.ScanLog,
		reposet.AuditLog,
		qrService,
		docService,
		bucket,
		cache,
		templateService,
		metrics,
		services.RecordServiceConfig{DefaultValidityHours: cfg.PassValidityHours},
	)
	scanService := services.NewScanService(log, reposet.Record, reposet.ScanLog, cache, metrics)
	analyticsService := services.NewAnalyticsService(log, reposet.Record, reposet.ScanLog, recordService)

	return Services{
		Auth:         authService,
		User:         userService,
		Record:       recordService,
		Scan:         scanService,
		Analytics:    analyticsService,
		QRCode:       qrService,
		Document:     docService,
		FormTemplate: templateService,
	}, nil
}

func wireRouter(log *logger.Logger, dbService *db.Service, cfg Config, serviceset Services, metrics *observability.Metrics) *gin.Engine {
	log.Info("Wiring router...")
	return server.NewRouter(server.RouterDeps{
		Health:       handlers.NewHealthHandler(dbService),
		Auth:         handlers.NewAuthHandler(serviceset.Auth),
		User:         handlers.NewUserHandler(serviceset.User),
		Record:       handlers.NewRecordHandler(serviceset.Record, serviceset.Scan, serviceset.Analytics),
		Public:       handlers.NewPublicHandler(log, serviceset.Record, serviceset.Scan),
		FormTemplate: handlers.NewFormTemplateHandler(serviceset.FormTemplate),
		AuthService:  serviceset.Auth,
		Metrics:      metrics,
		CORSOrigins:  cfg.CORSOrigins,
	})
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Log.Warn("Redis close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
