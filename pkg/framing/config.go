package framing

import (
	"encoding/binary"
	"time"

	"github.com/vango-dev/framer/pkg/protocol"
)

// DefaultExpire is how long a partial frame may sit in the buffer before it is discarded.
const DefaultExpire = 500 * time.Millisecond

// config is copied into every Decoder a Factory creates.
type config struct {
	layout         protocol.Layout
	expire         time.Duration
	maxFrameLength int
	bufferSize     int
	clock          func() time.Time
	observer       Observer
}

func defaultConfig() config {
	return config{
		layout:   protocol.DefaultLayout(),
		expire:   DefaultExpire,
		clock:    time.Now,
		observer: NopObserver{},
	}
}

// Option configures a Factory.
type Option func(*config)

// WithHeaderOffset sets the number of opaque bytes before the length field.
// Default: 2
func WithHeaderOffset(n int) Option {
	return func(c *config) {
		c.layout.HeaderOffset = n
	}
}

// WithLengthField sets the encoding of the length field.
// Default: protocol.LengthField16
func WithLengthField(lf protocol.LengthField) Option {
	return func(c *config) {
		c.layout.LengthField = lf
	}
}

// WithByteOrder sets the byte order of fixed-width length fields.
// Default: binary.BigEndian
func WithByteOrder(order binary.ByteOrder) Option {
	return func(c *config) {
		c.layout.ByteOrder = order
	}
}

// WithLayout replaces header offset, length field and byte order at once.
func WithLayout(l protocol.Layout) Option {
	return func(c *config) {
		c.layout = l
	}
}

// WithExpire sets how long retained bytes may sit idle before they are
// discarded as stale. Zero means any partial frame is stale as soon as the
// clock moves.
// Default: 500ms
func WithExpire(d time.Duration) Option {
	return func(c *config) {
		c.expire = d
	}
}

// WithMaxFrameLength bounds the total frame length (header, length field and
// payload). A frame declaring more is treated as a desynchronized stream and
// the retained bytes are discarded.
// Default: 0 (unlimited)
func WithMaxFrameLength(n int) Option {
	return func(c *config) {
		c.maxFrameLength = n
	}
}

// WithBufferSize sets the initial capacity of a session buffer once one is needed.
func WithBufferSize(n int) Option {
	return func(c *config) {
		c.bufferSize = n
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.clock = now
		}
	}
}

// WithObserver registers an observer for decoded frames and discarded buffers.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

func (c *config) validate() error {
	if !c.layout.LengthField.Valid() {
		return &ConfigError{Field: "length field", Value: c.layout.LengthField, Err: ErrUnsupportedLengthField}
	}
	if c.layout.HeaderOffset < 0 {
		return &ConfigError{Field: "header offset", Value: c.layout.HeaderOffset, Err: ErrInvalidConfig}
	}
	if c.expire < 0 {
		return &ConfigError{Field: "expire", Value: c.expire, Err: ErrInvalidConfig}
	}
	if c.maxFrameLength < 0 {
		return &ConfigError{Field: "max frame length", Value: c.maxFrameLength, Err: ErrInvalidConfig}
	}
	if c.bufferSize < 0 {
		return &ConfigError{Field: "buffer size", Value: c.bufferSize, Err: ErrInvalidConfig}
	}
	if c.layout.ByteOrder == nil {
		c.layout.ByteOrder = binary.BigEndian
	}
	return nil
}
