package framing

import (
	"time"

	"github.com/vango-dev/framer/pkg/protocol"
)

// Factory holds the framing configuration and builds one Decoder per session.
// A Factory is immutable after NewFactory returns and is safe for concurrent use.
type Factory struct {
	cfg config
}

// NewFactory validates the options and returns a Factory.
// An unsupported length field or an out-of-range value is reported here,
// never later from Submit.
func NewFactory(opts ...Option) (*Factory, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg}, nil
}

// MustFactory is like NewFactory but panics on a configuration error.
func MustFactory(opts ...Option) *Factory {
	f, err := NewFactory(opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Create returns a fresh Decoder with an empty buffer.
// Decoders carry per-session state and must not be shared between sessions.
func (f *Factory) Create() *Decoder {
	return newDecoder(f.cfg)
}

// Layout returns the frame layout decoders are built with.
func (f *Factory) Layout() protocol.Layout {
	return f.cfg.layout
}

// Expire returns the stale-buffer expiry.
func (f *Factory) Expire() time.Duration {
	return f.cfg.expire
}

// MaxFrameLength returns the frame length limit, 0 if unlimited.
func (f *Factory) MaxFrameLength() int {
	return f.cfg.maxFrameLength
}
