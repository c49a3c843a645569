package client

import (
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/transport"
)

// KeyFunc extracts the correlation key from a complete frame. It is applied
// to outgoing requests and to incoming frames alike, so a reply matches the
// request whose key it repeats. ok is false when the frame carries no key.
type KeyFunc func(layout protocol.Layout, frame framing.Frame) (key uint64, ok bool)

// HeaderKey reads the frame header as a big-endian unsigned integer.
// Only the first 8 header bytes are used; a layout without a header has no key.
func HeaderKey(layout protocol.Layout, frame framing.Frame) (uint64, bool) {
	n := layout.HeaderOffset
	if n == 0 || len(frame) < n {
		return 0, false
	}
	if n > 8 {
		n = 8
	}
	var key uint64
	for _, b := range frame[:n] {
		key = key<<8 | uint64(b)
	}
	return key, true
}

type options struct {
	factory     *framing.Factory
	keyFunc     KeyFunc
	timeout     time.Duration
	onUnmatched func(framing.Frame)
	logger      *slog.Logger
	dialer      *net.Dialer
	wsDialer    *websocket.Dialer
	bufSize     int
}

func defaultOptions() options {
	return options{
		keyFunc: HeaderKey,
		timeout: DefaultTimeout,
		dialer:  &net.Dialer{},
		bufSize: transport.DefaultReadBufferSize,
	}
}

// DefaultTimeout bounds a Request when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Option configures a Client.
type Option func(*options)

// WithFactory sets the decoder factory. The client reads with a decoder
// from it and encodes with its layout. Default: framing.NewFactory().
func WithFactory(f *framing.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithKeyFunc sets the correlation key extractor. Default: HeaderKey.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) {
		o.keyFunc = fn
	}
}

// WithTimeout bounds how long Request waits for a reply.
// Zero waits until the context ends.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithUnmatchedHandler receives frames that match no pending request.
// It runs on the read goroutine. The frame is owned by the callee.
func WithUnmatchedHandler(fn func(framing.Frame)) Option {
	return func(o *options) {
		o.onUnmatched = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer sets the dialer used for tcp:// addresses.
func WithDialer(d *net.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithWebSocketDialer sets the dialer used for ws:// and wss:// addresses.
func WithWebSocketDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.wsDialer = d
	}
}

// WithReadBufferSize bounds a single stream read.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		o.bufSize = n
	}
}
