package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
	"github.com/vango-dev/framer/pkg/transport"
)

// Session is one connection and the decoder that reassembles its frames.
// Every session owns its own decoder; decoders are never shared.
type Session struct {
	// Identity
	ID         string
	RemoteAddr string
	Transport  string
	CreatedAt  time.Time

	conn         transport.Conn
	decoder      *framing.Decoder
	writeTimeout time.Duration
	closed       atomic.Bool
	done         chan struct{}
	lastActive   atomic.Int64

	// Metrics
	framesReceived atomic.Uint64
	framesSent     atomic.Uint64
	bytesReceived  atomic.Uint64
	bytesSent      atomic.Uint64
	panics         atomic.Uint64

	// General-purpose session data. Protected by dataMu.
	data   map[string]any
	dataMu sync.RWMutex

	onClose func(*Session)
	logger  *slog.Logger
}

// generateSessionID generates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// NewSession creates a session over conn. A nil conn gives a session that
// can decode but not write, which is useful in tests.
func NewSession(conn transport.Conn, decoder *framing.Decoder, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	id := generateSessionID()

	s := &Session{
		ID:        id,
		CreatedAt: now,
		conn:      conn,
		decoder:   decoder,
		done:      make(chan struct{}),
		data:      make(map[string]any),
	}
	if conn != nil {
		s.RemoteAddr = conn.RemoteAddr()
		s.Transport = conn.Kind()
	}
	s.lastActive.Store(now.UnixNano())
	s.logger = logger.With("session_id", id, "remote_addr", s.RemoteAddr, "transport", s.Transport)
	return s
}

// Decoder returns the session's frame decoder.
func (s *Session) Decoder() *framing.Decoder {
	return s.decoder
}

// Layout returns the frame layout used on this session.
func (s *Session) Layout() protocol.Layout {
	return s.decoder.Layout()
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Write sends an already encoded frame (or any bytes) to the peer.
func (s *Session) Write(b []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoConnection
	}
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteChunk(b); err != nil {
		if transport.IsClosed(err) {
			return ErrSessionClosed
		}
		return NewSessionError(s.ID, "write", err)
	}
	s.framesSent.Add(1)
	s.bytesSent.Add(uint64(len(b)))
	return nil
}

// WriteFrame encodes header and payload with the session layout and sends the frame.
func (s *Session) WriteFrame(header, payload []byte) error {
	data, err := s.Layout().Encode(header, payload)
	if err != nil {
		return NewSessionError(s.ID, "encode", err)
	}
	return s.Write(data)
}

// Close closes the connection and releases the decoder's buffer.
// It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	if s.conn != nil {
		s.conn.Close()
	}
	if buffered := s.decoder.Buffered(); buffered > 0 {
		s.logger.Debug("dropping partial frame", "bytes", buffered)
	}
	s.decoder.Reset()

	stats := s.Stats()
	s.logger.Info("session closed",
		"frames_received", stats.FramesReceived,
		"frames_sent", stats.FramesSent,
		"bytes_received", stats.BytesReceived,
		"duration", time.Since(s.CreatedAt).Round(time.Millisecond))

	if s.onClose != nil {
		s.onClose(s)
	}
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// LastActive returns the time the last chunk arrived.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(n int) {
	s.lastActive.Store(time.Now().UnixNano())
	s.bytesReceived.Add(uint64(n))
}

// SessionStats is a snapshot of a session's counters.
type SessionStats struct {
	FramesReceived uint64
	FramesSent     uint64
	BytesReceived  uint64
	BytesSent      uint64
	HandlerPanics  uint64
	Buffered       int
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FramesReceived: s.framesReceived.Load(),
		FramesSent:     s.framesSent.Load(),
		BytesReceived:  s.bytesReceived.Load(),
		BytesSent:      s.bytesSent.Load(),
		HandlerPanics:  s.panics.Load(),
		Buffered:       s.decoder.Buffered(),
	}
}

// Get returns a value stored on the session.
func (s *Session) Get(key string) any {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data[key]
}

// Set stores a value on the session.
func (s *Session) Set(key string, value any) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data[key] = value
}

// Delete removes a value from the session.
func (s *Session) Delete(key string) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	delete(s.data, key)
}
