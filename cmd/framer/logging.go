package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/vango-dev/framer/internal/errors"
)

// newLogger builds the process logger: tint on a console, JSON when asked.
func newLogger(w io.Writer, level string, jsonOut, noColor bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("FR201").
			WithDetail("Unknown log level " + level).
			WithSuggestion("Use one of debug, info, warn or error")
	}

	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})), nil
}
