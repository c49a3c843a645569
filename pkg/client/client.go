package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/framer/pkg/correlate"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/transport"
)

// Client errors.
var (
	// ErrClosed is returned after Close or once the connection has ended.
	ErrClosed = errors.New("client: closed")

	// ErrNoKey is returned by Request when the request frame carries no correlation key.
	ErrNoKey = errors.New("client: frame has no correlation key")

	// ErrUnsupportedScheme is returned by Dial for an address it cannot dial.
	ErrUnsupportedScheme = errors.New("client: unsupported address scheme")
)

// Client sends frames to a server and matches the replies to requests.
//
// Replies are decoded with the client's own framing.Decoder, so the server
// may split or coalesce them freely. Every delivered frame is a copy owned
// by the receiver.
type Client struct {
	conn    transport.Conn
	layout  protocol.Layout
	decoder *framing.Decoder
	pending *correlate.Table[uint64, framing.Frame]
	opts    options

	done      chan struct{}
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once

	logger *slog.Logger
}

// Dial connects to addr and starts reading replies.
//
// addr is tcp://host:port, ws://host:port/path, wss://host:port/path or a
// bare host:port, which means TCP.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	scheme, target := "tcp", addr
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("client: parse address: %w", err)
		}
		scheme = u.Scheme
		if scheme == "tcp" {
			target = u.Host
		}
	}

	var conn transport.Conn
	switch scheme {
	case "tcp":
		c, err := o.dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			return nil, err
		}
		conn = transport.NewStream(c, o.bufSize)
	case "ws", "wss":
		d := o.wsDialer
		if d == nil {
			d = websocket.DefaultDialer
		}
		ws, _, err := d.DialContext(ctx, target, nil)
		if err != nil {
			return nil, err
		}
		conn = transport.NewWebSocket(ws)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	return newClient(conn, o)
}

// New wraps an established connection and starts reading replies.
func New(conn transport.Conn, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(conn, o)
}

func newClient(conn transport.Conn, o options) (*Client, error) {
	if o.factory == nil {
		f, err := framing.NewFactory()
		if err != nil {
			conn.Close()
			return nil, err
		}
		o.factory = f
	}
	if o.keyFunc == nil {
		o.keyFunc = HeaderKey
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		conn:    conn,
		layout:  o.factory.Layout(),
		decoder: o.factory.Create(),
		pending: correlate.New[uint64, framing.Frame](),
		opts:    o,
		done:    make(chan struct{}),
		logger: o.logger.With(
			"component", "client",
			"remote_addr", conn.RemoteAddr(),
			"transport", conn.Kind()),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		chunk, err := c.conn.ReadChunk()
		if err != nil {
			c.fail(err)
			return
		}
		for _, frame := range c.decoder.Drain(chunk) {
			c.deliver(framing.Frame(append([]byte(nil), frame...)))
		}
	}
}

func (c *Client) deliver(frame framing.Frame) {
	if key, ok := c.opts.keyFunc(c.layout, frame); ok && c.pending.Match(key, frame) {
		return
	}
	if c.opts.onUnmatched != nil {
		c.opts.onUnmatched(frame)
		return
	}
	c.logger.Debug("unmatched frame", "size", len(frame))
}

// fail records the first error that ended the connection and fails every
// pending request.
func (c *Client) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		if transport.IsClosed(err) {
			err = ErrClosed
		}
		c.err = err
	}
	c.errMu.Unlock()
	c.pending.Close()
}

// Err returns the error that ended the connection, or nil while it is open.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Layout returns the frame layout used to encode requests.
func (c *Client) Layout() protocol.Layout {
	return c.layout
}

// Send encodes one frame and writes it without waiting for a reply.
func (c *Client) Send(header, payload []byte) error {
	data, err := c.layout.Encode(header, payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

// Request sends one frame and waits for the frame carrying the same key.
func (c *Client) Request(ctx context.Context, header, payload []byte) (framing.Frame, error) {
	data, err := c.layout.Encode(header, payload)
	if err != nil {
		return nil, err
	}

	key, ok := c.opts.keyFunc(c.layout, data)
	if !ok {
		return nil, ErrNoKey
	}

	ch, err := c.pending.Enqueue(key, c.opts.timeout)
	if err != nil {
		if errors.Is(err, correlate.ErrClosed) {
			return nil, c.closedErr()
		}
		return nil, err
	}

	if err := c.write(data); err != nil {
		c.pending.Cancel(key)
		return nil, err
	}

	select {
	case r := <-ch:
		if errors.Is(r.Err, correlate.ErrClosed) {
			return nil, c.closedErr()
		}
		return r.Value, r.Err
	case <-ctx.Done():
		c.pending.Cancel(key)
		return nil, ctx.Err()
	}
}

func (c *Client) write(data []byte) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}
	if err := c.conn.WriteChunk(data); err != nil {
		if transport.IsClosed(err) {
			return c.closedErr()
		}
		return err
	}
	return nil
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Close closes the connection, fails pending requests with ErrClosed and
// waits for the read loop to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		if c.err == nil {
			c.err = ErrClosed
		}
		c.errMu.Unlock()

		err = c.conn.Close()
		c.pending.Close()
	})
	<-c.done
	return err
}

// Pending returns the number of requests waiting for a reply.
func (c *Client) Pending() int {
	return c.pending.Len()
}
