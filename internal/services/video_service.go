package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/storage"
	"github.com/ferp/backend/internal/tasks"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VideoRepository is the interface that wraps methods for Videos table data access
type VideoRepository interface {
	// Create inserts a new video record
	Create(ctx context.Context, video *models.Video) error
	// GetAll returns every video, newest first. An empty table yields an empty, non-nil slice.
	GetAll(ctx context.Context) ([]models.Video, error)
	// GetByPublicID returns the video stored under publicID or an error matching repositories.ErrNotFound
	GetByPublicID(ctx context.Context, publicID string) (*models.Video, error)
	// UpdateStatus sets the compression status of a video
	UpdateStatus(ctx context.Context, publicID string, status models.VideoStatus) error
	// UpdateCompression stores the compressed size and duration and marks the video ready
	UpdateCompression(ctx context.Context, publicID string, compressedSize int64, duration float64) error
	// GetStale returns videos in one of statuses not updated since olderThan
	GetStale(ctx context.Context, statuses []models.VideoStatus, olderThan time.Time) ([]models.Video, error)
}

// Transcoder compresses and probes video files on local disk
type Transcoder interface {
	Compress(ctx context.Context, inputPath, outputPath string) error
	Duration(ctx context.Context, inputPath string) (float64, error)
}

// VideoUpload carries a video upload request
type VideoUpload struct {
	Title       string
	Description string
	FileName    string
	// ReportedSize is the size the client claims; the stored size is measured.
	ReportedSize int64
	Content      io.Reader
}

type videoService struct {
	repo       VideoRepository
	storage    Storage
	queue      tasks.Enqueuer
	transcoder Transcoder
	maxSize    int64
	logger     *zap.Logger
}

// NewVideoService creates a new video service.
// transcoder may be nil in processes that never compress (the API server).
func NewVideoService(repo VideoRepository, storage Storage, queue tasks.Enqueuer, transcoder Transcoder, maxSize int64, logger *zap.Logger) *videoService {
	return &videoService{
		repo:       repo,
		storage:    storage,
		queue:      queue,
		transcoder: transcoder,
		maxSize:    maxSize,
		logger:     logger,
	}
}

// List returns all videos, newest first
func (s *videoService) List(ctx context.Context) ([]models.Video, error) {
	return s.repo.GetAll(ctx)
}

// Upload stores the original video, records it as queued and enqueues its compression.
// A failure to enqueue is logged only; the requeue scheduler picks the video up later.
func (s *videoService) Upload(ctx context.Context, in VideoUpload) (*models.Video, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Content == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}
	if in.ReportedSize > s.maxSize {
		return nil, ErrFileTooLarge
	}

	ext := storage.ExtensionOf(in.FileName)
	if ext == "" {
		ext = ".mp4"
	}
	publicID := storage.GenerateFileName(ext)
	mediaType := string(models.MediaTypeVideo)

	size, err := writeBlob(s.storage, publicID, mediaType, in.Content, s.maxSize)
	if err != nil {
		return nil, err
	}

	if in.ReportedSize > 0 && in.ReportedSize != size {
		s.logger.Warn("reported video size differs from received size",
			zap.String("public_id", publicID),
			zap.Int64("reported", in.ReportedSize),
			zap.Int64("received", size),
		)
	}

	now := time.Now().UTC()
	video := &models.Video{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  in.Description,
		PublicID:     publicID,
		OriginalSize: size,
		Status:       models.VideoStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, video); err != nil {
		s.storage.Delete(publicID, mediaType)
		return nil, fmt.Errorf("failed to create video: %w", err)
	}

	if _, err := tasks.EnqueueVideoCompress(s.queue, publicID); err != nil {
		s.logger.Error("failed to enqueue video compression", zap.String("public_id", publicID), zap.Error(err))
	}

	return video, nil
}

// Requeue enqueues compression for videos stuck in queued or processing for longer than staleAfter.
// It returns how many jobs were newly queued.
func (s *videoService) Requeue(ctx context.Context, staleAfter time.Duration) (int, error) {
	stale, err := s.repo.GetStale(ctx,
		[]models.VideoStatus{models.VideoStatusQueued, models.VideoStatusProcessing},
		time.Now().UTC().Add(-staleAfter),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get stale videos: %w", err)
	}

	count := 0
	for _, v := range stale {
		queued, err := tasks.EnqueueVideoCompress(s.queue, v.PublicID)
		if err != nil {
			s.logger.Error("failed to requeue video", zap.String("public_id", v.PublicID), zap.Error(err))
			continue
		}
		if queued {
			count++
		}
	}

	return count, nil
}

// Compress produces the compressed rendition of a video and records its size and duration.
// The video is marked failed when any step fails.
func (s *videoService) Compress(ctx context.Context, publicID string) error {
	if s.transcoder == nil {
		return fmt.Errorf("video compression is not configured")
	}

	video, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	if video.Status == models.VideoStatusReady {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, publicID, models.VideoStatusProcessing); err != nil {
		return err
	}

	compressedSize, duration, err := s.compress(ctx, publicID)
	if err != nil {
		if statusErr := s.repo.UpdateStatus(context.WithoutCancel(ctx), publicID, models.VideoStatusFailed); statusErr != nil {
			s.logger.Error("failed to mark video failed", zap.String("public_id", publicID), zap.Error(statusErr))
		}
		return err
	}

	if err := s.repo.UpdateCompression(ctx, publicID, compressedSize, duration); err != nil {
		return err
	}

	s.logger.Info("video compressed",
		zap.String("public_id", publicID),
		zap.Int64("original_size", video.OriginalSize),
		zap.Int64("compressed_size", compressedSize),
		zap.Float64("duration", duration),
	)
	return nil
}

func (s *videoService) compress(ctx context.Context, publicID string) (int64, float64, error) {
	workDir, err := os.MkdirTemp("", "compress-*")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "original"+filepath.Ext(publicID))
	outputPath := filepath.Join(workDir, "compressed.mp4")

	if err := s.download(publicID, inputPath); err != nil {
		return 0, 0, err
	}

	if err := s.transcoder.Compress(ctx, inputPath, outputPath); err != nil {
		return 0, 0, fmt.Errorf("failed to compress video: %w", err)
	}

	duration, err := s.transcoder.Duration(ctx, outputPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to probe video: %w", err)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	size, err := writeBlob(s.storage, publicID, string(models.MediaTypeVideoCompressed), f, 0)
	if err != nil {
		return 0, 0, err
	}

	return size, duration, nil
}

func (s *videoService) download(publicID, path string) error {
	src, err := s.storage.Open(publicID, string(models.MediaTypeVideo))
	if err != nil {
		return fmt.Errorf("failed to open original video: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy original video: %w", err)
	}
	return dst.Close()
}

// writeBlob copies content into storage while counting its size.
// A positive maxSize aborts the copy once exceeded. The blob is removed on failure.
func writeBlob(store Storage, id, mediaType string, content io.Reader, maxSize int64) (int64, error) {
	sizeWriter := storage.NewSizeWriter()

	reader := content
	if maxSize > 0 {
		reader = io.LimitReader(content, maxSize+1)
	}
	teeReader := io.TeeReader(reader, sizeWriter)

	writeCloser, err := store.Create(id, mediaType)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(writeCloser, teeReader)
	closeErr := writeCloser.Close()
	if err == nil && maxSize > 0 && sizeWriter.Size() > maxSize {
		err = ErrFileTooLarge
	}
	if err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		store.Delete(id, mediaType)
		if err == ErrFileTooLarge {
			return 0, err
		}
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return sizeWriter.Size(), nil
}
