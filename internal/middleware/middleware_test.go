package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ferp/backend/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "req-1", seen)
	})

	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("panic before response", func(t *testing.T) {
		h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	})

	t.Run("panic while streaming keeps partial body", func(t *testing.T) {
		h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("partial"))
			panic("storage read failed")
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", w.Body.String())
		assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		h := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name                string
		allowed             []string
		origin              string
		method              string
		preflight           bool
		expectedOrigin      string
		expectedCredentials string
		expectedStatus      int
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "https://a.example", method: http.MethodGet, expectedOrigin: "*", expectedStatus: http.StatusOK},
		{name: "listed origin", allowed: []string{"https://a.example"}, origin: "https://A.example", method: http.MethodGet, expectedOrigin: "https://A.example", expectedCredentials: "true", expectedStatus: http.StatusOK},
		{name: "unlisted origin", allowed: []string{"https://a.example"}, origin: "https://evil.example", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "preflight", allowed: []string{"*"}, origin: "https://a.example", method: http.MethodOptions, preflight: true, expectedOrigin: "*", expectedStatus: http.StatusNoContent},
		{name: "plain options passes through", allowed: []string{"*"}, origin: "https://a.example", method: http.MethodOptions, expectedOrigin: "*", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORSMiddleware(tt.allowed)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.expectedCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "ETag")
			assert.Contains(t, w.Header().Values("Vary"), "Origin")
			if tt.preflight {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "If-None-Match")
			}
		})
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	var readErr error
	h := RequestSizeLimitMiddleware(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	t.Run("declared length over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 2<<20))))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 2<<20)))
		req.ContentLength = -1
		h.ServeHTTP(httptest.NewRecorder(), req)

		var maxBytesErr *http.MaxBytesError
		assert.True(t, errors.As(readErr, &maxBytesErr))
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, readErr)
	})
}

type stubValidator struct{}

func (stubValidator) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("invalid")
	}
	return &auth.Claims{UserID: 42}, nil
}

func TestAuthMiddleware(t *testing.T) {
	var userID int
	var ok bool
	h := AuthMiddleware(stubValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok = GetUserID(r.Context())
	}))

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("cookie token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "good"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, ok)
		assert.Equal(t, 42, userID)
	})
}

func TestLoggerMiddleware(t *testing.T) {
	newRouter := func(logger *zap.Logger) http.Handler {
		r := chi.NewRouter()
		r.Use(RequestIDMiddleware)
		r.Use(LoggerMiddleware(logger))
		r.Get("/api/health", okHandler)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(stubValidator{}))
			r.Get("/api/media/{mediaType}/{publicId}", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("bytes"))
			})
			r.Get("/api/fail", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			})
		})
		return r
	}

	t.Run("media route fields", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		req := httptest.NewRequest(http.MethodGet, "/api/media/video/pub-1", nil)
		req.Header.Set("Authorization", "Bearer good")
		req.Header.Set("X-Request-ID", "req-9")
		w := httptest.NewRecorder()

		newRouter(zap.New(core)).ServeHTTP(w, req)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "pub-1", fields["public_id"])
		assert.Equal(t, "video", fields["media_type"])
		assert.Equal(t, "/api/media/{mediaType}/{publicId}", fields["route"])
		assert.Equal(t, int64(42), fields["user_id"])
		assert.Equal(t, int64(5), fields["bytes"])
		assert.Equal(t, int64(http.StatusOK), fields["status"])
	})

	t.Run("levels follow status", func(t *testing.T) {
		tests := []struct {
			path   string
			token  string
			status int
			level  zapcore.Level
		}{
			{path: "/api/health", status: http.StatusOK, level: zapcore.DebugLevel},
			{path: "/api/fail", token: "good", status: http.StatusBadGateway, level: zapcore.ErrorLevel},
			{path: "/api/fail", status: http.StatusUnauthorized, level: zapcore.WarnLevel},
		}

		for _, tt := range tests {
			core, logs := observer.New(zapcore.DebugLevel)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()

			newRouter(zap.New(core)).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, tt.path)
			require.Equal(t, 1, logs.Len(), tt.path)
			assert.Equal(t, tt.level, logs.All()[0].Level, tt.path)
		}
	})
}
