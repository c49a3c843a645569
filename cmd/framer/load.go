package main

import (
	stderrors "errors"
	"log/slog"

	"github.com/vango-dev/framer/internal/config"
	"github.com/vango-dev/framer/internal/errors"
)

// loadConfig reads the file named by --config, or the nearest framer.json or
// framer.toml. Without either, defaults are used.
func loadConfig(g *globalFlags) (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}

	cfg, err := config.LoadFromWorkingDir()
	if err == nil {
		slog.Debug("configuration loaded", "path", cfg.Path())
		return cfg, nil
	}

	var fe *errors.Error
	if stderrors.As(err, &fe) && fe.Code == "FR101" {
		slog.Debug("no configuration file, using defaults")
		return config.New(), nil
	}
	return nil, err
}
