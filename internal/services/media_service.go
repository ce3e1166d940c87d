package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/storage"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
}

// MediaFile is an opened stored blob
type MediaFile struct {
	io.ReadCloser
	ContentType string
	Name        string
}

type mediaService struct {
	videos  VideoRepository
	images  ImageRepository
	storage Storage
}

// NewMediaService creates a service serving stored originals and compressed renditions
func NewMediaService(videos VideoRepository, images ImageRepository, storage Storage) *mediaService {
	return &mediaService{
		videos:  videos,
		images:  images,
		storage: storage,
	}
}

// Open opens the blob of a known record. Unknown records, and compressed
// renditions that do not exist yet, yield repositories.ErrNotFound.
func (s *mediaService) Open(ctx context.Context, mediaType models.MediaType, publicID string) (*MediaFile, error) {
	if !mediaType.Valid() {
		return nil, fmt.Errorf("%w: unknown media type %q", ErrValidation, mediaType)
	}

	switch mediaType {
	case models.MediaTypeImage:
		if _, err := s.images.GetByPublicID(ctx, publicID); err != nil {
			return nil, err
		}
	default:
		video, err := s.videos.GetByPublicID(ctx, publicID)
		if err != nil {
			return nil, err
		}
		if mediaType == models.MediaTypeVideoCompressed && video.Status != models.VideoStatusReady {
			return nil, fmt.Errorf("compressed rendition of %s: %w", publicID, repositories.ErrNotFound)
		}
	}

	rc, err := s.storage.Open(publicID, string(mediaType))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("%s %s: %w", mediaType, publicID, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	name := publicID
	contentType, ok := contentTypes[filepath.Ext(publicID)]
	if !ok {
		contentType = mime.TypeByExtension(filepath.Ext(publicID))
	}
	if mediaType == models.MediaTypeVideoCompressed {
		name = publicID[:len(publicID)-len(filepath.Ext(publicID))] + ".mp4"
		contentType = "video/mp4"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &MediaFile{ReadCloser: rc, ContentType: contentType, Name: name}, nil
}
