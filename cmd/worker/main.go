package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferp/backend/internal/config"
	"github.com/ferp/backend/internal/logger"
	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/services"
	"github.com/ferp/backend/internal/storage"
	"github.com/ferp/backend/internal/tasks"
	"github.com/ferp/backend/internal/transcoder"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

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

	logger.Logger.Info("Starting Media Worker")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize storage
	var fileStorage services.Storage = storage.NewLocalStorage(cfg.Storage.BasePath)
	if cfg.Storage.Driver == "s3" {
		s3Storage, err := storage.NewS3Storage(storage.S3Config{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
		})
		if err != nil {
			logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		fileStorage = s3Storage
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	videoService := services.NewVideoService(
		repositories.NewVideoRepository(db, logger.Logger),
		fileStorage,
		nil, // the worker never enqueues
		transcoder.New(cfg.Transcoder.FFmpegPath, cfg.Transcoder.FFprobePath),
		cfg.Media.MaxVideoSize,
		logger.Logger,
	)

	// Create Asynq server
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2, // ffmpeg is CPU bound
		Queues: map[string]int{
			tasks.QueueMedia: 1,
		},
	})

	// Register task handlers
	worker := NewWorker(logger.Logger, videoService)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeVideoCompress, worker.HandleVideoCompress)

	// Start worker
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Logger.Fatal("Failed to start worker", zap.Error(err))
		}
	}()

	logger.Logger.Info("Worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Logger.Info("Worker exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
