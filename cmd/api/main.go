package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/ferp/backend/docs"
	"github.com/ferp/backend/internal/auth"
	"github.com/ferp/backend/internal/cache"
	"github.com/ferp/backend/internal/config"
	"github.com/ferp/backend/internal/formats"
	"github.com/ferp/backend/internal/handlers"
	"github.com/ferp/backend/internal/logger"
	"github.com/ferp/backend/internal/middleware"
	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/services"
	"github.com/ferp/backend/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Media Studio API
// @version 1.0
// @description API for uploading videos and images and rendering images into social media formats
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token issued by the identity provider, as "Bearer <token>"
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Media Studio API")

	// Load render formats so a broken formats file fails fast
	formatSet, err := formats.Load(cfg.Media.FormatsFile)
	if err != nil {
		logger.Logger.Fatal("Failed to load formats", zap.Error(err))
	}
	logger.Logger.Info("Render formats loaded", zap.Strings("formats", formatSet.Names()))

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize storage
	fileStorage, err := newStorage(cfg.Storage)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Initialize session validation (tokens are issued by the identity provider)
	tokenGenerator := auth.NewTokenGenerator(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	sessionService := auth.NewSessionService(tokenGenerator, auth.NewRedisRevocationStore(rdb))

	// Initialize repositories
	videoRepo := repositories.NewVideoRepository(db, logger.Logger)
	imageRepo := repositories.NewImageRepository(db, logger.Logger)

	// Initialize services; compression itself runs in the worker
	videoService := services.NewVideoService(videoRepo, fileStorage, asynqClient, nil, cfg.Media.MaxVideoSize, logger.Logger)
	imageService := services.NewImageService(imageRepo, fileStorage, cfg.Media.BaseURL, cfg.Media.MaxImageSize, logger.Logger)
	renderService := services.NewRenderService(
		imageRepo,
		fileStorage,
		cache.NewRenderCache(rdb, cfg.Media.RenderCacheTTL),
		logger.Logger,
	)
	mediaService := services.NewMediaService(videoRepo, imageRepo, fileStorage)

	// Initialize handlers
	videoHandler := handlers.NewVideoHandler(videoService, logger.Logger, middleware.RequestSizeLimitMiddleware(cfg.Media.MaxVideoSize))
	imageHandler := handlers.NewImageHandler(imageService, renderService, logger.Logger, middleware.RequestSizeLimitMiddleware(cfg.Media.MaxImageSize))
	mediaHandler := handlers.NewMediaHandler(mediaService, logger.Logger)
	sessionHandler := handlers.NewSessionHandler(sessionService, logger.Logger)
	healthHandler := handlers.NewHealthHandler(logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		// Everything else requires a valid session
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(sessionService))
			videoHandler.RegisterRoutes(r)
			imageHandler.RegisterRoutes(r)
			mediaHandler.RegisterRoutes(r)
			sessionHandler.RegisterRoutes(r)
		})
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Minute, // Long timeout for video uploads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// newStorage selects the blob storage backend
func newStorage(cfg config.StorageConfig) (services.Storage, error) {
	switch cfg.Driver {
	case "s3":
		s3Storage, err := storage.NewS3Storage(storage.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return s3Storage, nil
	default:
		return storage.NewLocalStorage(cfg.BasePath), nil
	}
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "media_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Get the working directory or use migrations folder relative to the binary
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directories if running from cmd/api
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
