package services

import (
	"errors"
	"io"
)

var (
	// ErrValidation marks errors caused by invalid client input
	ErrValidation = errors.New("validation failed")
	// ErrFileTooLarge is returned when an upload exceeds its size ceiling
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedMedia is returned when an upload is not a recognised media type
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// Storage is the interface that wraps blob storage operations.
// Blobs are addressed by a file id and a media type namespace.
type Storage interface {
	// Create creates a new blob and returns a WriteCloser.
	// The blob is only guaranteed to be stored once Close returns nil.
	Create(id, mediaType string) (io.WriteCloser, error)
	// Open opens a blob for reading.
	// A missing blob yields an error matching storage.ErrNotExist.
	Open(id, mediaType string) (io.ReadCloser, error)
	// Delete removes a blob
	Delete(id, mediaType string) error
}
