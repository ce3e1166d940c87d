// Package handlers exposes the media API over HTTP
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferp/backend/internal/repositories"
	"github.com/ferp/backend/internal/services"
	"go.uber.org/zap"
)

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP statuses.
// fallback is the message used for unexpected errors, which are logged.
func (h *BaseHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, services.ErrValidation):
		h.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnsupportedMedia):
		h.RespondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, services.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		h.RespondError(w, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, repositories.ErrNotFound):
		h.RespondError(w, http.StatusNotFound, "not found")
	default:
		h.Logger.Error(fallback, zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
