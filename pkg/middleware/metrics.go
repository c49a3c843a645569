package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/server"
	"github.com/vango-dev/framer/pkg/transport"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "framer").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for handler duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the handler duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "framer",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// frameSizeBuckets cover 16 bytes to 1MB.
var frameSizeBuckets = prometheus.ExponentialBuckets(16, 4, 9)

// Metrics collects Prometheus metrics for the framing engine and the server.
//
// A Metrics value is three things at once:
//   - a framing.Observer, passed to framing.WithObserver
//   - a handler middleware, from Middleware
//   - a session tracker, wired with Attach
//
// Metrics collected (with the default namespace):
//   - framer_frames_decoded_total: frames emitted by decoders, by path (fast, buffered)
//   - framer_frame_size_bytes: histogram of emitted frame sizes
//   - framer_buffer_discards_total: discarded partial buffers, by reason
//   - framer_discarded_bytes_total: bytes thrown away, by reason
//   - framer_frames_handled_total: handler invocations, by transport and status
//   - framer_handler_duration_seconds: handler latency, by transport
//   - framer_handler_errors_total: handler errors, by transport and error type
//   - framer_active_sessions: sessions currently open
//   - framer_sessions_total: sessions opened, by transport
//   - framer_session_frames: histogram of frames received per closed session
type Metrics struct {
	framesDecoded  *prometheus.CounterVec
	frameSize      prometheus.Histogram
	discards       *prometheus.CounterVec
	discardedBytes *prometheus.CounterVec

	framesHandled  *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
	handleErrors   *prometheus.CounterVec

	activeSessions prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec
	sessionFrames  prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers the metrics.
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	m := &Metrics{
		framesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_decoded_total",
			Help:        "Total number of frames emitted by decoders",
			ConstLabels: config.ConstLabels,
		}, []string{"path"}),

		frameSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_size_bytes",
			Help:        "Size of emitted frames in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     frameSizeBuckets,
		}),

		discards: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "buffer_discards_total",
			Help:        "Total number of discarded session buffers",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		discardedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "discarded_bytes_total",
			Help:        "Total number of bytes dropped from session buffers",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		framesHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_handled_total",
			Help:        "Total number of frames passed to the handler",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "status"}),

		handleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_duration_seconds",
			Help:        "Frame handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"transport"}),

		handleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_errors_total",
			Help:        "Total number of frame handler errors",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "error_type"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of open sessions",
			ConstLabels: config.ConstLabels,
		}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_total",
			Help:        "Total number of sessions opened",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),

		sessionFrames: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_frames",
			Help:        "Frames received per session, observed at close",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 10, 7),
		}),
	}

	if g, ok := config.Registry.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// FrameDecoded implements framing.Observer.
func (m *Metrics) FrameDecoded(size int, fast bool) {
	path := "buffered"
	if fast {
		path = "fast"
	}
	m.framesDecoded.WithLabelValues(path).Inc()
	m.frameSize.Observe(float64(size))
}

// BufferDiscarded implements framing.Observer.
func (m *Metrics) BufferDiscarded(reason framing.DiscardReason, bytes int) {
	label := reason.String()
	m.discards.WithLabelValues(label).Inc()
	m.discardedBytes.WithLabelValues(label).Add(float64(bytes))
}

// Middleware returns a server.Middleware that times every handler call and
// counts its outcome.
func (m *Metrics) Middleware() server.Middleware {
	return func(next server.Handler) server.Handler {
		return server.HandlerFunc(func(ctx context.Context, s *server.Session, frame framing.Frame) error {
			kind := transportLabel(s)

			start := time.Now()
			err := next.HandleFrame(ctx, s, frame)
			m.handleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

			status := "success"
			if err != nil {
				status = "error"
				m.handleErrors.WithLabelValues(kind, categorizeError(err)).Inc()
			}
			m.framesHandled.WithLabelValues(kind, status).Inc()

			return err
		})
	}
}

// Attach tracks session lifecycles on sm.
func (m *Metrics) Attach(sm *server.SessionManager) {
	sm.OnSessionCreate(func(s *server.Session) {
		m.activeSessions.Inc()
		m.sessionsTotal.WithLabelValues(transportLabel(s)).Inc()
	})
	sm.OnSessionClose(func(s *server.Session) {
		m.activeSessions.Dec()
		m.sessionFrames.Observe(float64(s.Stats().FramesReceived))
	})
}

// Handler returns an HTTP handler exposing the metrics.
// It serves the configured registry when that registry is also a Gatherer,
// and the default gatherer otherwise.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer != nil {
		return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func transportLabel(s *server.Session) string {
	if s == nil || s.Transport == "" {
		return "none"
	}
	return s.Transport
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), transport.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, server.ErrSessionClosed), transport.IsClosed(err):
		return "closed"
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrHeaderSize):
		return "encode"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return "validation"
	default:
		return "internal"
	}
}
