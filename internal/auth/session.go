package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrSessionRevoked is returned for tokens that were signed out
var ErrSessionRevoked = errors.New("session revoked")

// AccessTokenCookie is the cookie the identity provider stores the access token in
const AccessTokenCookie = "access_token"

// RevocationStore defines storage for signed-out tokens
type RevocationStore interface {
	// Revoke marks tokenID as revoked until the given time
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	// IsRevoked reports whether tokenID was revoked
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionService answers "is this session valid?" and performs sign-out
type SessionService struct {
	tokens      *TokenGenerator
	revocations RevocationStore
}

// NewSessionService creates a new session service
func NewSessionService(tokens *TokenGenerator, revocations RevocationStore) *SessionService {
	return &SessionService{
		tokens:      tokens,
		revocations: revocations,
	}
}

// Validate checks the token signature, expiry and revocation status
func (s *SessionService) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// SignOut revokes the session carried by token
func (s *SessionService) SignOut(ctx context.Context, token string) error {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// TokenFromRequest extracts the access token from the Authorization header or the cookie
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	cookie, err := r.Cookie(AccessTokenCookie)
	if err == nil {
		return cookie.Value
	}
	return ""
}
