package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const requestInfoKey contextKey = "requestInfo"

// requestInfo is shared by the middleware chain of one request. Inner
// middleware fill it in so the access log can report who was served.
type requestInfo struct {
	id string

	mu     sync.Mutex
	userID int
	authed bool
}

func (ri *requestInfo) setUser(userID int) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.userID, ri.authed = userID, true
}

func (ri *requestInfo) user() (int, bool) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return ri.userID, ri.authed
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	ri, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return ri
}

// RequestIDMiddleware tags each request with an ID, reusing X-Request-ID when the caller sent one
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestInfoKey, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if ri := requestInfoFrom(ctx); ri != nil {
		return ri.id
	}
	return ""
}

// LoggerMiddleware writes one access log entry per request. Server errors are
// logged at error level, client errors at warn and health checks at debug.
// Media routes carry their public_id and media_type.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordResponse(w)

			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int64("bytes", rec.written),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					fields = append(fields, zap.String("route", pattern))
				}
				if publicID := rctx.URLParam("publicId"); publicID != "" {
					fields = append(fields, zap.String("public_id", publicID))
				}
				if mediaType := rctx.URLParam("mediaType"); mediaType != "" {
					fields = append(fields, zap.String("media_type", mediaType))
				}
			}
			if ri := requestInfoFrom(r.Context()); ri != nil {
				if userID, ok := ri.user(); ok {
					fields = append(fields, zap.Int("user_id", userID))
				}
			}

			if ce := logger.Check(accessLevel(r, rec.status), "HTTP request"); ce != nil {
				ce.Write(fields...)
			}
		})
	}
}

func accessLevel(r *http.Request, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case r.URL.Path == "/api/health":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// responseRecorder captures the status and body size sent to the client
type responseRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

// recordResponse wraps w unless an outer middleware already did
func recordResponse(w http.ResponseWriter) *responseRecorder {
	if rec, ok := w.(*responseRecorder); ok {
		return rec
	}
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// writeError sends the JSON error body used across the API
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
