package middleware

import (
	"net/http"
)

// multipartOverhead is the slack allowed on top of a file ceiling for form fields and boundaries
const multipartOverhead = 1 << 20

// RequestSizeLimitMiddleware limits the size of request bodies
// maxFileSize is the largest file an endpoint accepts; multipart framing gets an extra 1 MiB
func RequestSizeLimitMiddleware(maxFileSize int64) func(http.Handler) http.Handler {
	maxRequestSize := maxFileSize + multipartOverhead
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}
