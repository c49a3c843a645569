package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/server"
)

// Default tracer name.
const defaultTracerName = "github.com/vango-dev/framer"

// Span attribute keys.
const (
	AttrSessionID  = attribute.Key("framer.session_id")
	AttrTransport  = attribute.Key("framer.transport")
	AttrRemoteAddr = attribute.Key("framer.remote_addr")
	AttrFrameSize  = attribute.Key("framer.frame_size")
	AttrFrameType  = attribute.Key("framer.frame_type")
)

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// SpanName is the name given to every frame span (default: "framer.frame").
	SpanName string

	// IncludeRemoteAddr records the peer address on spans.
	// May contain sensitive information - disabled by default.
	IncludeRemoteAddr bool

	// Filter determines which frames to trace.
	// If nil, all frames are traced.
	Filter func(s *server.Session, frame framing.Frame) bool

	// AttributeExtractor adds custom attributes for a traced frame.
	AttributeExtractor func(s *server.Session, frame framing.Frame) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithSpanName sets the span name.
func WithSpanName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.SpanName = name
	}
}

// WithIncludeRemoteAddr enables recording the peer address.
func WithIncludeRemoteAddr(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeRemoteAddr = include
	}
}

// WithFrameFilter sets a filter function for frames.
func WithFrameFilter(filter func(s *server.Session, frame framing.Frame) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(s *server.Session, frame framing.Frame) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
		SpanName:   "framer.frame",
	}
}

// OpenTelemetry creates middleware that traces every handled frame.
//
// Each span carries the session ID, transport and frame size; the first
// header byte is recorded as framer.frame_type when the layout has a
// header. Handler errors are recorded on the span and set its status.
// The handler receives a context holding the span.
//
// The tracer comes from the global provider unless WithTracerProvider is
// given. Configure it in main() before starting the server:
//
//	otel.SetTracerProvider(tp)
//	srv.Use(middleware.OpenTelemetry())
func OpenTelemetry(opts ...OTelOption) server.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return func(next server.Handler) server.Handler {
		return server.HandlerFunc(func(ctx context.Context, s *server.Session, frame framing.Frame) error {
			if config.Filter != nil && !config.Filter(s, frame) {
				return next.HandleFrame(ctx, s, frame)
			}

			attrs := []attribute.KeyValue{
				AttrFrameSize.Int(len(frame)),
			}
			if s != nil {
				attrs = append(attrs,
					AttrSessionID.String(s.ID),
					AttrTransport.String(s.Transport),
				)
				if config.IncludeRemoteAddr {
					attrs = append(attrs, AttrRemoteAddr.String(s.RemoteAddr))
				}
				if s.Layout().HeaderOffset > 0 && len(frame) > 0 {
					attrs = append(attrs, AttrFrameType.Int(int(frame[0])))
				}
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(s, frame)...)
			}

			spanCtx, span := config.tracer.Start(ctx, config.SpanName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := next.HandleFrame(spanCtx, s, frame)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}

// SpanFromContext returns the frame span stored in ctx by OpenTelemetry,
// or nil if ctx carries no span.
//
//	func handle(ctx context.Context, s *server.Session, f framing.Frame) error {
//	    if span := middleware.SpanFromContext(ctx); span != nil {
//	        span.SetAttributes(attribute.Int("app.items", 42))
//	    }
//	    return nil
//	}
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() && !span.SpanContext().IsValid() {
		return nil
	}
	return span
}
