package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageRepository is the interface that wraps methods for Images table data access
type ImageRepository interface {
	// Create inserts a new image record
	Create(ctx context.Context, image *models.Image) error
	// GetAll returns every image, newest first. An empty table yields an empty, non-nil slice.
	GetAll(ctx context.Context) ([]models.Image, error)
	// GetByPublicID returns the image stored under publicID or an error matching repositories.ErrNotFound
	GetByPublicID(ctx context.Context, publicID string) (*models.Image, error)
}

// ImageUpload carries an image upload request
type ImageUpload struct {
	Title       string
	Description string
	FileName    string
	Content     io.Reader
}

// imageExtensions maps the sniffed content types the renderer can decode to file extensions
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

type imageService struct {
	repo    ImageRepository
	storage Storage
	baseURL string
	maxSize int64
	logger  *zap.Logger
}

// NewImageService creates a new image service
func NewImageService(repo ImageRepository, storage Storage, baseURL string, maxSize int64, logger *zap.Logger) *imageService {
	return &imageService{
		repo:    repo,
		storage: storage,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		logger:  logger,
	}
}

// List returns all images, newest first
func (s *imageService) List(ctx context.Context) ([]models.Image, error) {
	return s.repo.GetAll(ctx)
}

// Upload stores an image and returns its record.
// The content type is sniffed from the data, not trusted from the client.
func (s *imageService) Upload(ctx context.Context, in ImageUpload) (*models.Image, error) {
	if in.Content == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}

	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}

	publicID := storage.GenerateFileName(ext)
	mediaType := string(models.MediaTypeImage)

	if _, err := writeBlob(s.storage, publicID, mediaType, io.MultiReader(bytes.NewReader(head), in.Content), s.maxSize); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(in.FileName, storage.ExtensionOf(in.FileName))
	}

	image := &models.Image{
		ID:          uuid.New().String(),
		Title:       title,
		Description: in.Description,
		URL:         fmt.Sprintf("%s/api/media/%s/%s", s.baseURL, mediaType, publicID),
		PublicID:    publicID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, image); err != nil {
		s.storage.Delete(publicID, mediaType)
		return nil, fmt.Errorf("failed to create image: %w", err)
	}

	s.logger.Info("image uploaded", zap.String("public_id", publicID), zap.String("content_type", contentType))
	return image, nil
}
