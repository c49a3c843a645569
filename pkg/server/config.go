package server

import (
	"net/http"
	"time"

	"github.com/vango-dev/framer/pkg/transport"
)

// Config holds configuration for the stream and WebSocket listeners.
type Config struct {
	// TCPAddress is the address of the raw stream listener (e.g., ":7000").
	// Empty disables ListenAndServe.
	TCPAddress string

	// HTTPAddress is the address of the HTTP listener serving the WebSocket
	// endpoint, /healthz and /metrics. Empty disables ListenAndServeHTTP.
	HTTPAddress string

	// WebSocketPath is where the WebSocket endpoint is mounted.
	// Default: "/ws".
	WebSocketPath string

	// ReadTimeout is the maximum time to wait for the next chunk from a peer.
	// Zero disables the deadline.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when writing to a peer.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// ReadBufferSize bounds a single stream read.
	// Default: 4096.
	ReadBufferSize int

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 1MB.
	MaxMessageSize int64

	// CheckOrigin validates the origin of WebSocket upgrades.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TCPAddress:      ":7000",
		HTTPAddress:     ":7001",
		WebSocketPath:   "/ws",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		ReadBufferSize:  transport.DefaultReadBufferSize,
		MaxMessageSize:  1 << 20,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills unset fields from DefaultConfig.
// ReadTimeout and the addresses are left alone since zero values are meaningful.
func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	cfg := c.Clone()
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = out.WebSocketPath
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = out.WriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = out.ShutdownTimeout
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = out.ReadBufferSize
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = out.MaxMessageSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = out.CheckOrigin
	}
	return cfg
}
