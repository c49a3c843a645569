package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/framer/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	rootCmd := &cobra.Command{
		Use:   "framer",
		Short: "Length-delimited stream de-framing server and tools",
		Long: `framer reassembles length-delimited frames from byte streams.

Bytes arrive in arbitrary chunks over TCP or WebSocket; framer buffers
partial frames per connection, discards stale fragments and hands every
complete frame to a handler.

  • Configurable layout: header offset, 1/2/4-byte or varint length
  • Zero-copy fast path for chunks holding exactly one frame
  • Prometheus metrics and OpenTelemetry tracing
  • Optional S3 archive of every session`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noColor {
				errors.DisableColors()
			}
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logJSON, g.noColor)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to framer.json or framer.toml (default: search from the working directory)")
	pf.StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&g.logJSON, "log-json", false, "Write logs as JSON")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		serveCmd(&g),
		decodeCmd(&g),
		sendCmd(&g),
		initCmd(),
		versionCmd(),
	)

	return rootCmd
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}
