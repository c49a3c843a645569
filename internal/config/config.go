package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/framer/internal/errors"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
)

const (
	// JSONFileName is the name of the JSON configuration file.
	JSONFileName = "framer.json"

	// TOMLFileName is the name of the TOML configuration file.
	TOMLFileName = "framer.toml"

	// DefaultTCPAddress is the default address of the stream listener.
	DefaultTCPAddress = ":7000"

	// DefaultHTTPAddress is the default address of the HTTP listener (WebSocket, metrics, health).
	DefaultHTTPAddress = ":7001"

	// DefaultWebSocketPath is the default WebSocket endpoint.
	DefaultWebSocketPath = "/ws"

	// DefaultReadTimeout is the default idle read timeout of a session.
	DefaultReadTimeout = "60s"

	// DefaultMaxSessions is the default limit on concurrent sessions.
	DefaultMaxSessions = 1024

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "framer"

	// DefaultArchivePrefix is the default object key prefix for archived sessions.
	DefaultArchivePrefix = "sessions/"
)

// Config represents the complete framer configuration.
type Config struct {
	// Codec describes the frame layout and buffering rules.
	Codec CodecConfig `json:"codec" toml:"codec"`

	// Server contains listener configuration.
	Server ServerConfig `json:"server" toml:"server"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics" toml:"metrics"`

	// Archive contains S3 archive configuration.
	Archive ArchiveConfig `json:"archive" toml:"archive"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// CodecConfig describes how frames are laid out on the wire.
type CodecConfig struct {
	// HeaderOffset is the number of opaque bytes before the length field.
	HeaderOffset int `json:"headerOffset" toml:"headerOffset"`

	// LengthField is "1", "2", "4" or "varint".
	LengthField string `json:"lengthField" toml:"lengthField"`

	// ByteOrder is "big" or "little".
	ByteOrder string `json:"byteOrder" toml:"byteOrder"`

	// ExpireMs is how long a partial frame may wait for more bytes.
	ExpireMs int `json:"expireMs" toml:"expireMs"`

	// MaxFrameLength bounds the total frame length. Zero means unlimited.
	MaxFrameLength int `json:"maxFrameLength,omitempty" toml:"maxFrameLength,omitempty"`

	// BufferSize is the initial capacity of a session buffer.
	BufferSize int `json:"bufferSize,omitempty" toml:"bufferSize,omitempty"`
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	// TCPAddress is the address of the raw stream listener. Empty disables it.
	TCPAddress string `json:"tcpAddress" toml:"tcpAddress"`

	// HTTPAddress is the address of the HTTP listener. Empty disables it.
	HTTPAddress string `json:"httpAddress" toml:"httpAddress"`

	// WebSocketPath is the path of the WebSocket endpoint.
	WebSocketPath string `json:"webSocketPath" toml:"webSocketPath"`

	// ReadTimeout is the idle read timeout of a session (e.g., "60s").
	ReadTimeout string `json:"readTimeout" toml:"readTimeout"`

	// MaxSessions limits concurrent sessions. Zero means unlimited.
	MaxSessions int `json:"maxSessions" toml:"maxSessions"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and registers the framing collectors.
	Enabled bool `json:"enabled" toml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty"`
}

// ArchiveConfig contains S3 archive settings.
type ArchiveConfig struct {
	// Bucket is the target bucket. Empty disables archiving.
	Bucket string `json:"bucket,omitempty" toml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" toml:"prefix,omitempty"`

	// Region overrides the region from the AWS environment.
	Region string `json:"region,omitempty" toml:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Codec: CodecConfig{
			HeaderOffset: protocol.DefaultHeaderOffset,
			LengthField:  protocol.DefaultLengthField.String(),
			ByteOrder:    "big",
			ExpireMs:     int(framing.DefaultExpire / time.Millisecond),
		},
		Server: ServerConfig{
			TCPAddress:    DefaultTCPAddress,
			HTTPAddress:   DefaultHTTPAddress,
			WebSocketPath: DefaultWebSocketPath,
			ReadTimeout:   DefaultReadTimeout,
			MaxSessions:   DefaultMaxSessions,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for framer.json first, then framer.toml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("FR101").
		WithDetail("No " + JSONFileName + " or " + TOMLFileName + " found in " + dir).
		WithSuggestion("Run 'framer init' to write a default configuration, or pass --config")
}

// LoadFile reads configuration from the specified file path.
// Files ending in .toml are parsed as TOML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("FR101").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("FR102").Wrap(err)
	}

	cfg := New()
	if isTOML(path) {
		err = cfg.decodeTOML(path, data)
	} else {
		err = cfg.decodeJSON(path, data)
	}
	if err != nil {
		return nil, err
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeJSON(path string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		fe := errors.New("FR102").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
		var syntax *json.SyntaxError
		if stderrors.As(err, &syntax) {
			line, col := lineColumn(data, syntax.Offset)
			fe.WithLocation(path, line, col)
		}
		return fe
	}
	return nil
}

func (c *Config) decodeTOML(path string, data []byte) error {
	meta, err := toml.Decode(string(data), c)
	if err != nil {
		fe := errors.New("FR102").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid TOML")
		var perr toml.ParseError
		if stderrors.As(err, &perr) && perr.Position.Line > 0 {
			fe.WithLocation(path, perr.Position.Line, 0)
		}
		return fe
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New("FR102").
			WithDetail("Unknown keys in " + filepath.Base(path) + ": " + strings.Join(keys, ", "))
	}
	return nil
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as TOML when the
// path ends in .toml and as indented JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.New("FR105").Wrap(err)
		}
	} else {
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return errors.New("FR105").Wrap(err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.New("FR105").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Codec.LengthField) == "" {
		c.Codec.LengthField = protocol.DefaultLengthField.String()
	}
	if strings.TrimSpace(c.Codec.ByteOrder) == "" {
		c.Codec.ByteOrder = "big"
	}
	if c.Server.WebSocketPath == "" {
		c.Server.WebSocketPath = DefaultWebSocketPath
	}
	if !strings.HasPrefix(c.Server.WebSocketPath, "/") {
		c.Server.WebSocketPath = "/" + c.Server.WebSocketPath
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.Layout(); err != nil {
		return errors.New("FR103").
			Wrap(err).
			WithSuggestion(`lengthField must be "1", "2", "4" or "varint" and byteOrder "big" or "little"`)
	}
	if c.Codec.ExpireMs < 0 {
		return errors.New("FR103").WithDetail(fmt.Sprintf("expireMs must not be negative, got %d", c.Codec.ExpireMs))
	}
	if c.Codec.MaxFrameLength < 0 {
		return errors.New("FR103").WithDetail(fmt.Sprintf("maxFrameLength must not be negative, got %d", c.Codec.MaxFrameLength))
	}
	if c.Codec.BufferSize < 0 {
		return errors.New("FR103").WithDetail(fmt.Sprintf("bufferSize must not be negative, got %d", c.Codec.BufferSize))
	}
	for name, addr := range map[string]string{"tcpAddress": c.Server.TCPAddress, "httpAddress": c.Server.HTTPAddress} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.New("FR104").
				WithDetail(fmt.Sprintf("server.%s %q: %v", name, addr, err))
		}
	}
	if c.Server.TCPAddress == "" && c.Server.HTTPAddress == "" {
		return errors.New("FR104").
			WithDetail("At least one of server.tcpAddress and server.httpAddress must be set")
	}
	if _, err := c.ReadTimeoutDuration(); err != nil {
		return errors.New("FR102").
			WithDetail(fmt.Sprintf("server.readTimeout %q is not a duration", c.Server.ReadTimeout)).
			WithSuggestion(`Use a Go duration such as "30s" or "2m"`)
	}
	if c.Server.MaxSessions < 0 {
		return errors.New("FR102").
			WithDetail(fmt.Sprintf("server.maxSessions must not be negative, got %d", c.Server.MaxSessions))
	}
	return nil
}

// Layout returns the frame layout described by the codec section.
func (c *Config) Layout() (protocol.Layout, error) {
	lf, err := protocol.ParseLengthField(c.Codec.LengthField)
	if err != nil {
		return protocol.Layout{}, err
	}
	order, err := protocol.ParseByteOrder(c.Codec.ByteOrder)
	if err != nil {
		return protocol.Layout{}, err
	}
	l := protocol.Layout{
		HeaderOffset: c.Codec.HeaderOffset,
		LengthField:  lf,
		ByteOrder:    order,
	}
	return l, l.Validate()
}

// Expire returns the staleness window as a duration.
func (c *Config) Expire() time.Duration {
	return time.Duration(c.Codec.ExpireMs) * time.Millisecond
}

// ReadTimeoutDuration parses Server.ReadTimeout. An empty value means no timeout.
func (c *Config) ReadTimeoutDuration() (time.Duration, error) {
	if c.Server.ReadTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Server.ReadTimeout)
}

// FramingOptions converts the codec section into factory options.
// Callers append their own options (observer, clock) after these.
func (c *Config) FramingOptions() ([]framing.Option, error) {
	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}
	return []framing.Option{
		framing.WithLayout(layout),
		framing.WithExpire(c.Expire()),
		framing.WithMaxFrameLength(c.Codec.MaxFrameLength),
		framing.WithBufferSize(c.Codec.BufferSize),
	}, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{JSONFileName, TOMLFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("FR101").
				WithDetail("No " + JSONFileName + " or " + TOMLFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'framer init' to write a default configuration")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its closest parent that has one.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
