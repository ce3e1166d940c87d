package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ferp/backend/internal/models"
	"github.com/ferp/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ImageService is the interface that wraps image operations
type ImageService interface {
	// Method List returns all images, newest first.
	List(ctx context.Context) ([]models.Image, error)
	// Method Upload stores an image and returns its record.
	Upload(ctx context.Context, in services.ImageUpload) (*models.Image, error)
}

// RenderService produces renderings of uploaded images
type RenderService interface {
	Render(ctx context.Context, req models.RenderRequest) (*services.Rendering, error)
}

// ImageHandler handles image-related HTTP requests
type ImageHandler struct {
	BaseHandler
	imageService  ImageService
	renderService RenderService
	sizeLimit     func(http.Handler) http.Handler
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService ImageService, renderService RenderService, logger *zap.Logger, sizeLimit func(http.Handler) http.Handler) *ImageHandler {
	return &ImageHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		imageService:  imageService,
		renderService: renderService,
		sizeLimit:     sizeLimit,
	}
}

// RegisterRoutes registers all image handler routes
func (h *ImageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/images", h.ListImages)
	r.Get("/images/{publicId}/render", h.RenderImage)
	r.With(h.sizeLimit).Post("/image-upload", h.UploadImage)
}

// ListImages handles GET /images
// @Summary List images
// @Description Retrieve all uploaded images, newest first
// @Tags images
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Image
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /images [get]
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.imageService.List(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "failed to list images")
		return
	}
	if images == nil {
		images = []models.Image{}
	}

	h.RespondJSON(w, http.StatusOK, images)
}

// UploadImage handles POST /image-upload
// @Summary Upload an image
// @Description Upload an image and receive its reference handle
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Success 200 {object} models.ImageUploadResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 413 {object} map[string]string "File too large"
// @Failure 415 {object} map[string]string "Not an image"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /image-upload [post]
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
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

	image, err := h.imageService.Upload(r.Context(), services.ImageUpload{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		FileName:    fileHeader.Filename,
		Content:     file,
	})
	if err != nil {
		h.respondServiceError(w, err, "failed to upload image")
		return
	}

	h.RespondJSON(w, http.StatusOK, models.ImageUploadResponse{PublicID: image.PublicID})
}

// RenderImage handles GET /images/{publicId}/render
// @Summary Render an image
// @Description Render an uploaded image into the requested dimensions as PNG
// @Tags images
// @Produce image/png
// @Security BearerAuth
// @Param publicId path string true "Image reference handle"
// @Param w query int false "Width"
// @Param h query int false "Height"
// @Param ar query string false "Aspect ratio, e.g. 16:9"
// @Param c query string false "Crop mode: fill, fit, scale" default(fill)
// @Param g query string false "Gravity: auto, center, north, south, east, west, north_east, north_west, south_east, south_west" default(auto)
// @Param If-None-Match header string false "ETag of a cached rendering"
// @Success 200 {file} binary "PNG rendering"
// @Success 304 "Not modified"
// @Failure 400 {object} map[string]string "Invalid parameters"
// @Failure 404 {object} map[string]string "Image not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /images/{publicId}/render [get]
func (h *ImageHandler) RenderImage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	width, err := optionalInt(query.Get("w"))
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := optionalInt(query.Get("h"))
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid height")
		return
	}

	rendering, err := h.renderService.Render(r.Context(), models.RenderRequest{
		PublicID:    chi.URLParam(r, "publicId"),
		Width:       width,
		Height:      height,
		AspectRatio: query.Get("ar"),
		Crop:        query.Get("c"),
		Gravity:     query.Get("g"),
	})
	if err != nil {
		h.respondServiceError(w, err, "failed to render image")
		return
	}

	etag := `"` + rendering.ETag + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(rendering.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rendering.Data); err != nil {
		h.Logger.Error("failed to write rendering", zap.Error(err))
	}
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
