package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/tasks"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// VideoCompressor defines the compression step of the video service
type VideoCompressor interface {
	// Compress transcodes the video stored under publicID and records the result.
	//
	// If some error occurs the video is marked failed and the error is returned.
	Compress(ctx context.Context, publicID string) error
}

// Worker processes media background jobs
type Worker struct {
	logger *zap.Logger
	videos VideoCompressor
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, videos VideoCompressor) *Worker {
	return &Worker{
		logger: logger,
		videos: videos,
	}
}

// HandleVideoCompress handles video compression tasks
func (w *Worker) HandleVideoCompress(ctx context.Context, t *asynq.Task) error {
	publicID, err := tasks.VideoCompressPublicID(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Compressing video", zap.String("public_id", publicID))

	if err := w.videos.Compress(ctx, publicID); err != nil {
		// Video was deleted before processing, nothing left to compress
		if errors.Is(err, repositories.ErrNotFound) {
			w.logger.Warn("Video not found, dropping compression task", zap.String("public_id", publicID))
			return nil
		}
		w.logger.Error("Failed to compress video", zap.String("public_id", publicID), zap.Error(err))
		return err
	}

	return nil
}
