package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPSender_Send(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "secret-key", time.Second, zap.NewNop())
	err := s.Send(context.Background(), "+595981234567", "code 123456")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", auth)
	assert.Equal(t, "+595981234567", got["phone"])
	assert.Equal(t, "code 123456", got["message"])
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", time.Second, zap.NewNop())
	err := s.Send(context.Background(), "+595981234567", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewHTTPSender(url, "", time.Second, zap.NewNop())
	assert.Error(t, s.Send(context.Background(), "+595981234567", "hi"))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(zap.NewNop()).Send(context.Background(), "+595981234567", "hi"))
}
