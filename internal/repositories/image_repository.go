package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ferp/backend/internal/models"
	"go.uber.org/zap"
)

const imageColumns = `id, title, description, url, public_id, created_at`

type imageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *sql.DB, logger *zap.Logger) *imageRepository {
	return &imageRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new image record
func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (id, title, description, url, public_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		image.ID,
		image.Title,
		image.Description,
		image.URL,
		image.PublicID,
		image.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert image", zap.String("public_id", image.PublicID), zap.Error(err))
		return fmt.Errorf("failed to create image: %w", err)
	}

	return nil
}

// GetAll returns every image, newest first
func (r *imageRepository) GetAll(ctx context.Context) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query images", zap.Error(err))
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.Title, &img.Description, &img.URL, &img.PublicID, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// GetByPublicID returns the image stored under publicID
func (r *imageRepository) GetByPublicID(ctx context.Context, publicID string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE public_id = ? LIMIT 1`

	var img models.Image
	err := r.db.QueryRowContext(ctx, query, publicID).Scan(&img.ID, &img.Title, &img.Description, &img.URL, &img.PublicID, &img.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", publicID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image by public id: %w", err)
	}

	return &img, nil
}
