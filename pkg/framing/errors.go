package framing

import (
	"errors"
	"fmt"
)

// Configuration errors. They are returned by NewFactory and never by Submit.
var (
	// ErrUnsupportedLengthField is returned when the length field width is not 1, 2, 4 or varint.
	ErrUnsupportedLengthField = errors.New("framing: unsupported length field")

	// ErrInvalidConfig is returned for out-of-range configuration values.
	ErrInvalidConfig = errors.New("framing: invalid configuration")
)

// ConfigError reports which configuration field was rejected.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

// Error returns the error message with the offending field.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("framing: %s %v: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
