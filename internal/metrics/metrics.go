package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP метрики
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Advertisement ledger
	AdEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_events_total",
			Help: "Tracked advertisement events by type and whether the counter moved",
		},
		[]string{"event_type", "counted"},
	)
	AdTrackFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ad_track_failures_total",
			Help: "Fire-and-forget tracking calls that failed",
		},
	)
	AdAutoPausedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_auto_paused_total",
			Help: "Advertisements paused because a view or click cap was reached",
		},
		[]string{"placement"},
	)

	// OTP
	OTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_requests_total",
			Help: "OTP code requests by outcome",
		},
		[]string{"outcome"},
	)
	OTPVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "OTP verifications by outcome",
		},
		[]string{"outcome"},
	)
	SMSDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sms_dispatch_duration_seconds",
			Help: "Duration of SMS provider calls in seconds",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// InitMetrics registers the collectors with the default registry, which already
// carries the Go runtime and process collectors.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)

		prometheus.MustRegister(AdEventsTotal)
		prometheus.MustRegister(AdTrackFailuresTotal)
		prometheus.MustRegister(AdAutoPausedTotal)

		prometheus.MustRegister(OTPRequestsTotal)
		prometheus.MustRegister(OTPVerificationsTotal)
		prometheus.MustRegister(SMSDispatchDuration)
	})
}
