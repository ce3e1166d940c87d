// Package storage provides blob storage backends for uploaded media
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotExist is returned when the requested object does not exist
var ErrNotExist = os.ErrNotExist

// localStorage keeps media on the local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) *localStorage {
	return &localStorage{
		basePath: basePath,
	}
}

// generatePath builds the file path for id and mediaType.
// Underscores in mediaType become path separators, so "video_compressed"
// lives under video/compressed.
func (s *localStorage) generatePath(id, mediaType string) string {
	typePath := strings.ReplaceAll(mediaType, "_", string(filepath.Separator))
	return filepath.Join(s.basePath, typePath, filepath.Base(id))
}

// Create creates a new file and returns a WriteCloser
func (s *localStorage) Create(id, mediaType string) (io.WriteCloser, error) {
	path := s.generatePath(id, mediaType)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	return os.Create(path)
}

// Open opens a file for reading
func (s *localStorage) Open(id, mediaType string) (io.ReadCloser, error) {
	return os.Open(s.generatePath(id, mediaType))
}

// Delete removes a file. Deleting a missing file is not an error.
func (s *localStorage) Delete(id, mediaType string) error {
	err := os.Remove(s.generatePath(id, mediaType))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
