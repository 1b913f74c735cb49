package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"motelhub/internal/metrics"
	"motelhub/pkg/jwt"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// =============================================================================
// BasicAuth
// =============================================================================

func TestBasicAuth(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("pa55"), bcrypt.MinCost)
	require.NoError(t, err)
	handler := BasicAuth("admin", "admin", string(h))(okHandler)

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"valid", "admin", "pa55", true, http.StatusOK},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "pa55", true, http.StatusUnauthorized},
		{"no header", "", "", false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/ads/1", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="admin"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestBasicAuth_EmptyHashDeniesAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "")
	rec := httptest.NewRecorder()

	BasicAuth("metrics", "admin", "")(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// JWTAuth
// =============================================================================

func TestJWTAuth(t *testing.T) {
	var seen string
	handler := JWTAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := SessionFromContext(r.Context())
		require.True(t, ok)
		seen = claims.Phone
	}))

	token, _, err := jwt.GenerateToken("secret", "+595981234567", time.Hour, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+595981234567", seen)

	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

// =============================================================================
// ValidateRequest
// =============================================================================

func TestValidateRequest(t *testing.T) {
	handler := ValidateRequest(okHandler)

	cases := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"json post", http.MethodPost, "application/json; charset=utf-8", `{"a":1}`, http.StatusOK},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", "a=1", http.StatusUnsupportedMediaType},
		{"empty body", http.MethodPatch, "application/json", "", http.StatusBadRequest},
		{"get passes", http.MethodGet, "", "", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/otp/request", bytes.NewBufferString(tc.body))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

// =============================================================================
// MetricsMiddleware
// =============================================================================

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	metrics.InitMetrics()

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/ads/{id}/click", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ads/7/click", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRoutePattern_OutsideRouter(t *testing.T) {
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)))
}
