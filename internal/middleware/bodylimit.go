package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize caps request bodies at 1MB. Metric updates and
	// frame logs are small JSON documents; anything larger is a client bug.
	DefaultMaxBodySize = 1 << 20
)

// BodyLimitMiddleware rejects oversized requests up front via Content-Length
// and wraps the body in a MaxBytesReader for chunked uploads that lie.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.maxSize {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
