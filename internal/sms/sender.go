// Package sms delivers text messages through an external provider.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"motelhub/internal/metrics"
)

type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// HTTPSender posts {"phone", "message"} as JSON to the provider endpoint.
// Any non-2xx answer is a failed dispatch; there are no retries.
type HTTPSender struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger
}

func NewHTTPSender(url, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPSender {
	return &HTTPSender{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (s *HTTPSender) Send(ctx context.Context, phone, message string) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SMSDispatchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("sms provider rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}

	return nil
}

// LogSender only logs the message. It stands in for a provider in development.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phone, message string) error {
	s.log.Info("sms (not delivered)", zap.String("phone", phone), zap.String("message", message))
	return nil
}
