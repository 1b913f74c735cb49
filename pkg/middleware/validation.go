// pkg/middleware/validation.go

package middleware

import (
	"mime"
	"net/http"

	"motelhub/internal/api"
)

const maxBodySize = 1 << 20 // 1 MB

// ValidateRequest проверяет Content-Type и наличие тела у JSON запросов
// и ограничивает размер тела.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					api.WriteError(w, http.StatusUnsupportedMediaType, "expected application/json")
					return
				}
			}

			if r.ContentLength == 0 {
				api.WriteError(w, http.StatusBadRequest, "request body cannot be empty")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
