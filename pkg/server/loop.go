package server

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/transport"
)

// serve reads chunks from the connection until it ends, feeding each one to
// the session decoder and every completed frame to h.
// It returns nil when the peer closes the connection or the session is closed.
func (s *Session) serve(ctx context.Context, h Handler, readTimeout time.Duration) error {
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		chunk, err := s.conn.ReadChunk()
		if err != nil {
			if s.closed.Load() || transport.IsClosed(err) {
				return nil
			}
			if transport.IsTimeout(err) {
				s.logger.Info("read timeout", "idle", readTimeout)
			}
			return NewSessionError(s.ID, "read", err)
		}

		s.touch(len(chunk))

		if err := s.deliver(ctx, h, chunk); err != nil {
			return err
		}
		if s.closed.Load() {
			return nil
		}
	}
}

// deliver submits one chunk and dispatches every frame it completes.
// A chunk can complete several frames; the rest are pulled with empty submits.
func (s *Session) deliver(ctx context.Context, h Handler, chunk []byte) error {
	frame, ok := s.decoder.Submit(chunk)
	for ok {
		s.framesReceived.Add(1)
		if err := s.dispatch(ctx, h, frame); err != nil {
			return NewSessionError(s.ID, "handle", err)
		}
		if s.closed.Load() {
			return nil
		}
		frame, ok = s.decoder.Submit(nil)
	}
	return nil
}

// dispatch runs the handler, recovering panics.
// A panicking handler is logged and counted; the session keeps running.
func (s *Session) dispatch(ctx context.Context, h Handler, frame framing.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			herr := NewHandlerError(s.ID, len(frame), r, debug.Stack())
			s.logger.Error("handler panic",
				"error", herr,
				"stack", string(herr.Stack))
			err = nil
		}
	}()
	return h.HandleFrame(ctx, s, frame)
}
