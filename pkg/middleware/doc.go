// Package middleware provides observability for the frame server.
//
// This package includes:
//   - Prometheus metrics for decoders, handlers and sessions
//   - OpenTelemetry tracing middleware
//
// # Prometheus Metrics
//
// A Metrics value observes decoders, wraps the frame handler and tracks
// sessions. Wire all three:
//
//	reg := prometheus.NewRegistry()
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//
//	factory, _ := framing.NewFactory(framing.WithObserver(m))
//	srv := server.New(cfg, factory, handler)
//	srv.Use(m.Middleware())
//	m.Attach(srv.Sessions())
//	srv.SetMetricsHandler(m.Handler())
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens a span for every handled frame with
// the session ID, transport and frame size:
//
//	srv.Use(middleware.OpenTelemetry(
//	    middleware.WithFrameFilter(func(s *server.Session, f framing.Frame) bool {
//	        return len(f) > 0
//	    }),
//	))
//
// Handlers receive the span's context, so downstream calls inherit the trace.
package middleware
