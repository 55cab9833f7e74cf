package middleware

import (
	"net/http"
)

// MaxBodyMiddleware caps request bodies at max bytes (1 MiB when max <= 0).
func MaxBodyMiddleware(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = 1 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
