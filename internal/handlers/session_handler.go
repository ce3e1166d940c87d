package handlers

import (
	"context"
	"net/http"

	"github.com/ferp/backend/internal/auth"
	"github.com/ferp/backend/internal/middleware"
	"github.com/ferp/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionService signs sessions out
type SessionService interface {
	SignOut(ctx context.Context, token string) error
}

// SessionHandler reports on and ends the caller's session.
// Its routes sit behind the auth middleware.
type SessionHandler struct {
	BaseHandler
	sessionService SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		sessionService: sessionService,
	}
}

// RegisterRoutes registers all session handler routes
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Post("/sign-out", h.SignOut)
	})
}

// GetSession handles GET /auth/session
// @Summary Check session
// @Description Report whether the caller's session is valid
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SessionInfo
// @Failure 401 {object} map[string]string "Authentication required"
// @Router /auth/session [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	h.RespondJSON(w, http.StatusOK, models.SessionInfo{Valid: true, UserID: userID})
}

// SignOut handles POST /auth/sign-out
// @Summary Sign out
// @Description Revoke the caller's session and clear its cookie
// @Tags auth
// @Security BearerAuth
// @Success 204 "Signed out"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /auth/sign-out [post]
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if err := h.sessionService.SignOut(r.Context(), token); err != nil {
		h.Logger.Error("failed to sign out", zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
