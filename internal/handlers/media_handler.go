package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MediaService opens stored media for download
type MediaService interface {
	// Method Open opens the blob of a known record.
	//
	// Unknown records yield an error matching repositories.ErrNotFound.
	Open(ctx context.Context, mediaType models.MediaType, publicID string) (*services.MediaFile, error)
}

// MediaHandler serves original and compressed media files
type MediaHandler struct {
	BaseHandler
	mediaService MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		mediaService: mediaService,
	}
}

// RegisterRoutes registers all media handler routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/media/{mediaType}/{publicId}", h.DownloadFile)
}

// DownloadFile handles GET /media/{mediaType}/{publicId}
// @Summary Download media file
// @Description Download an uploaded image, original video or compressed video
// @Tags media
// @Produce application/octet-stream
// @Security BearerAuth
// @Param mediaType path string true "Media type" Enums(image, video, video_compressed)
// @Param publicId path string true "Reference handle"
// @Success 200 "File content"
// @Failure 400 {object} map[string]string "Invalid media type"
// @Failure 404 {object} map[string]string "File not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media/{mediaType}/{publicId} [get]
func (h *MediaHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	mediaType := models.MediaType(chi.URLParam(r, "mediaType"))
	publicID := chi.URLParam(r, "publicId")

	file, err := h.mediaService.Open(r.Context(), mediaType, publicID)
	if err != nil {
		h.respondServiceError(w, err, "failed to open file")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))

	if _, err := io.Copy(w, file); err != nil {
		h.Logger.Error("failed to copy file to response", zap.Error(err))
	}
}
