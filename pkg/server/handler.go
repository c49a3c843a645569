package server

import (
	"context"

	"github.com/vango-dev/framer/pkg/framing"
)

// Handler processes frames delivered on a session.
//
// The frame is only valid for the duration of the call: it may alias the
// connection's read buffer. Handlers that keep a frame must copy it.
// A non-nil error closes the session.
type Handler interface {
	HandleFrame(ctx context.Context, s *Session, frame framing.Frame) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, s *Session, frame framing.Frame) error

// HandleFrame calls f(ctx, s, frame).
func (f HandlerFunc) HandleFrame(ctx context.Context, s *Session, frame framing.Frame) error {
	return f(ctx, s, frame)
}

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Chain applies middleware to h. The first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Echo is a Handler that writes every frame back to its session.
var Echo HandlerFunc = func(_ context.Context, s *Session, frame framing.Frame) error {
	return s.Write(frame)
}

// Discard is a Handler that drops every frame.
var Discard HandlerFunc = func(context.Context, *Session, framing.Frame) error {
	return nil
}
