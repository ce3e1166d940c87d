package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartMemory is how much of a multipart form is kept in memory before spilling to disk
const multipartMemory = 32 << 20

// VideoService is the interface that wraps video operations
type VideoService interface {
	// Method List returns all videos, newest first.
	//
	// An empty collection is an empty slice, never nil.
	List(ctx context.Context) ([]models.Video, error)
	// Method Upload stores a video and queues its compression.
	//
	// Errors matching services.ErrValidation or services.ErrFileTooLarge are caused by the request.
	Upload(ctx context.Context, in services.VideoUpload) (*models.Video, error)
}

// VideoHandler handles video-related HTTP requests
type VideoHandler struct {
	BaseHandler
	videoService VideoService
	// sizeLimit wraps upload routes with the body size ceiling
	sizeLimit func(http.Handler) http.Handler
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(videoService VideoService, logger *zap.Logger, sizeLimit func(http.Handler) http.Handler) *VideoHandler {
	return &VideoHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		videoService: videoService,
		sizeLimit:    sizeLimit,
	}
}

// RegisterRoutes registers all video handler routes
func (h *VideoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/videos", h.ListVideos)
	r.With(h.sizeLimit).Post("/video-upload", h.UploadVideo)
}

// ListVideos handles GET /videos
// @Summary List videos
// @Description Retrieve all uploaded videos, newest first
// @Tags videos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Video
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos [get]
func (h *VideoHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videoService.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "failed to list videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	h.RespondJSON(w, http.StatusOK, videos)
}

// UploadVideo handles POST /video-upload
// @Summary Upload a video
// @Description Upload a video file with metadata. The video is compressed in the background.
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Video file"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param originalSize formData string true "Size of the file in bytes"
// @Success 200 {object} models.Video
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 413 {object} map[string]string "File too large"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /video-upload [post]
func (h *VideoHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.Logger.Info("failed to parse multipart form", zap.Error(err))
		if isMaxBytesError(err) {
			h.RespondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.RespondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	var reportedSize int64
	if raw := r.FormValue("originalSize"); raw != "" {
		reportedSize, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || reportedSize < 0 {
			h.RespondError(w, http.StatusBadRequest, "invalid originalSize")
			return
		}
	}

	video, err := h.videoService.Upload(r.Context(), services.VideoUpload{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		FileName:     fileHeader.Filename,
		ReportedSize: reportedSize,
		Content:      file,
	})
	if err != nil {
		h.respondServiceError(w, err, "failed to upload video")
		return
	}

	h.Logger.Info("video uploaded", zap.String("public_id", video.PublicID), zap.Int64("size", video.OriginalSize))
	h.RespondJSON(w, http.StatusOK, video)
}
