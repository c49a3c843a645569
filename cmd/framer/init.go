package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/framer/internal/config"
	"github.com/vango-dev/framer/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write framer.json (or framer.toml) with default settings.

Examples:
  framer init
  framer init ./deploy --format=toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, format, force)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "File format: json or toml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir, format string, force bool) error {
	var name string
	switch format {
	case "json":
		name = config.JSONFileName
	case "toml":
		name = config.TOMLFileName
	default:
		return errors.New("FR201").
			WithDetail("Unknown format " + format).
			WithSuggestion("Use --format=json or --format=toml")
	}

	if config.Exists(dir) && !force {
		return errors.New("FR201").
			WithDetail("A configuration file already exists in " + dir).
			WithSuggestion("Pass --force to overwrite it")
	}

	path := filepath.Join(dir, name)
	if err := config.New().SaveTo(path); err != nil {
		return err
	}

	success(cmd, "Wrote %s", path)
	return nil
}
