package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadBufferSize is the chunk size used for stream reads.
const DefaultReadBufferSize = 4096

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a byte-stream connection that delivers arbitrary chunks.
//
// Chunk boundaries carry no meaning: a chunk may hold part of a frame,
// exactly one frame or several frames. The slice returned by ReadChunk is
// only valid until the next call.
type Conn interface {
	// ReadChunk blocks until some bytes are available.
	// It returns io.EOF when the peer closes the connection.
	ReadChunk() ([]byte, error)

	// WriteChunk writes b as one unit. It is safe for concurrent use.
	WriteChunk(b []byte) error

	// SetReadDeadline bounds the next ReadChunk. A zero time clears it.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline bounds subsequent writes. A zero time clears it.
	SetWriteDeadline(t time.Time) error

	// RemoteAddr returns the peer address.
	RemoteAddr() string

	// Kind returns "tcp" or "ws".
	Kind() string

	Close() error
}

// streamConn adapts a net.Conn.
type streamConn struct {
	conn net.Conn
	buf  []byte
	wmu  sync.Mutex
}

// NewStream wraps a stream connection. bufSize bounds the size of a single chunk.
func NewStream(conn net.Conn, bufSize int) Conn {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &streamConn{conn: conn, buf: make([]byte, bufSize)}
}

func (c *streamConn) ReadChunk() ([]byte, error) {
	for {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			// Bytes read alongside an error are delivered first; the error
			// repeats on the next call.
			return c.buf[:n], nil
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil, ErrClosed
			}
			return nil, err
		}
	}
}

func (c *streamConn) WriteChunk(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(b)
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return ErrClosed
	}
	return err
}

func (c *streamConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *streamConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *streamConn) RemoteAddr() string                 { return addrString(c.conn.RemoteAddr()) }
func (c *streamConn) Kind() string                       { return "tcp" }
func (c *streamConn) Close() error                       { return c.conn.Close() }

// wsConn adapts a WebSocket connection. Every binary message is one chunk.
type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// NewWebSocket wraps a WebSocket connection.
func NewWebSocket(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadChunk() ([]byte, error) {
	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, err
		}
		if mt != websocket.BinaryMessage || len(msg) == 0 {
			continue
		}
		return msg, nil
	}
}

func (c *wsConn) WriteChunk(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	err := c.conn.WriteMessage(websocket.BinaryMessage, b)
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *wsConn) RemoteAddr() string                 { return addrString(c.conn.RemoteAddr()) }
func (c *wsConn) Kind() string                       { return "ws" }

func (c *wsConn) Close() error {
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// IsTimeout reports whether err is a read or write deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed reports whether err means the connection ended normally.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed)
}
