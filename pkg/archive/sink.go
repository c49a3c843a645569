package archive

import (
	"context"
	"errors"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/server"
)

// Archive errors.
var (
	// ErrSessionTooLarge is returned by Append when a session exceeds its byte budget.
	ErrSessionTooLarge = errors.New("archive: session exceeds size limit")

	// ErrClosed is returned by Append after Shutdown.
	ErrClosed = errors.New("archive: sink closed")
)

// Sink records the frames of a session and persists them when the session ends.
type Sink interface {
	// Append records one complete frame. The sink copies frame.
	Append(sessionID string, frame []byte) error

	// Flush persists everything recorded for the session and forgets it.
	Flush(ctx context.Context, sessionID string) error
}

// Middleware returns a server.Middleware that appends every delivered frame
// to sink before calling the next handler. Append failures are logged on the
// session; they never stop delivery.
func Middleware(sink Sink) server.Middleware {
	return func(next server.Handler) server.Handler {
		return server.HandlerFunc(func(ctx context.Context, s *server.Session, frame framing.Frame) error {
			if err := sink.Append(s.ID, frame); err != nil {
				s.Logger().Warn("archive append failed", "error", err, "frame_size", len(frame))
			}
			return next.HandleFrame(ctx, s, frame)
		})
	}
}
