package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl marks successful responses as publicly cacheable for maxAge.
// Error responses are sent with no-store.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&cacheWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

type cacheWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (c *cacheWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.wroteHeader = true
		if status < 300 {
			c.Header().Set("Cache-Control", c.value)
		} else {
			c.Header().Set("Cache-Control", "no-store")
		}
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *cacheWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.ResponseWriter.Write(b)
}
