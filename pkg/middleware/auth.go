// pkg/middleware/auth.go
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"motelhub/internal/api"
	"motelhub/pkg/hash"
	"motelhub/pkg/jwt"
)

type contextKey string

const sessionKey contextKey = "session"

// BasicAuth пропускает запрос, только если логин совпадает, а пароль
// подходит к bcrypt-хешу.
func BasicAuth(realm, username, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || passwordHash == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				!hash.CheckPassword(passwordHash, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
				api.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// JWTAuth проверяет Bearer токен сессии и кладёт claims в контекст.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				api.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := jwt.ParseToken(secret, strings.TrimSpace(raw))
			if err != nil {
				api.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*jwt.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionKey).(*jwt.SessionClaims)
	return claims, ok
}
