package storage

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateFileName generates a UUID-based file name with the given extension
func GenerateFileName(extension string) string {
	newUUID := uuid.New().String()
	if extension != "" && extension[0] != '.' {
		return newUUID + "." + extension
	}
	return newUUID + extension
}

// ExtensionOf returns the lower-cased extension of a client file name
func ExtensionOf(fileName string) string {
	return strings.ToLower(filepath.Ext(fileName))
}

// sizeWriter counts the bytes written through it
type sizeWriter struct {
	size int64
}

func (sw *sizeWriter) Write(p []byte) (int, error) {
	n := len(p)
	sw.size += int64(n)
	return n, nil
}

// Size returns the total number of bytes written
func (sw *sizeWriter) Size() int64 {
	return sw.size
}

// NewSizeWriter creates a new byte-counting writer
func NewSizeWriter() *sizeWriter {
	return &sizeWriter{}
}
