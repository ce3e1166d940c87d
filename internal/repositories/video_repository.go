package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ferp/backend/internal/models"
	"go.uber.org/zap"
)

const videoColumns = `id, title, description, public_id, original_size, compressed_size, duration, status, created_at, updated_at`

type videoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *sql.DB, logger *zap.Logger) *videoRepository {
	return &videoRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new video record
func (r *videoRepository) Create(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, title, description, public_id, original_size, compressed_size, duration, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.PublicID,
		video.OriginalSize,
		video.CompressedSize,
		video.Duration,
		video.Status,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert video", zap.String("public_id", video.PublicID), zap.Error(err))
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetAll returns every video, newest first
func (r *videoRepository) GetAll(ctx context.Context) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query videos", zap.Error(err))
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	return scanVideos(rows)
}

// GetByPublicID returns the video stored under publicID
func (r *videoRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE public_id = ? LIMIT 1`

	video, err := scanVideo(r.db.QueryRowContext(ctx, query, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", publicID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video by public id: %w", err)
	}

	return video, nil
}

// UpdateStatus sets the compression status of a video
func (r *videoRepository) UpdateStatus(ctx context.Context, publicID string, status models.VideoStatus) error {
	query := `UPDATE videos SET status = ?, updated_at = ? WHERE public_id = ?`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), publicID)
	if err != nil {
		return fmt.Errorf("failed to update video status: %w", err)
	}

	return checkAffected(result, "video "+publicID)
}

// UpdateCompression records a finished compression and marks the video ready
func (r *videoRepository) UpdateCompression(ctx context.Context, publicID string, compressedSize int64, duration float64) error {
	query := `
		UPDATE videos
		SET compressed_size = ?, duration = ?, status = ?, updated_at = ?
		WHERE public_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, compressedSize, duration, models.VideoStatusReady, time.Now().UTC(), publicID)
	if err != nil {
		return fmt.Errorf("failed to update video compression: %w", err)
	}

	return checkAffected(result, "video "+publicID)
}

// GetStale returns videos in one of statuses that have not been updated since olderThan
func (r *videoRepository) GetStale(ctx context.Context, statuses []models.VideoStatus, olderThan time.Time) ([]models.Video, error) {
	if len(statuses) == 0 {
		return []models.Video{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE status IN (%s) AND updated_at < ? ORDER BY updated_at`, videoColumns, placeholders)

	args := make([]any, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, olderThan)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query stale videos", zap.Error(err))
		return nil, fmt.Errorf("failed to query stale videos: %w", err)
	}
	defer rows.Close()

	return scanVideos(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var v models.Video
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Description,
		&v.PublicID,
		&v.OriginalSize,
		&v.CompressedSize,
		&v.Duration,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanVideos(rows *sql.Rows) ([]models.Video, error) {
	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}
	return videos, nil
}

func checkAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
