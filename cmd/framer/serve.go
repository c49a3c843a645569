package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/framer/internal/config"
	"github.com/vango-dev/framer/internal/errors"
	"github.com/vango-dev/framer/pkg/archive"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/middleware"
	"github.com/vango-dev/framer/pkg/server"
)

type serveFlags struct {
	tcp         string
	http        string
	expire      time.Duration
	maxSessions int
	metrics     bool
	tracing     bool
	bucket      string
}

func serveCmd(g *globalFlags) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the frame server",
		Long: `Run the frame server.

Every TCP connection and every WebSocket connection gets its own decoder.
Complete frames are written back to the sender unchanged.

Endpoints on the HTTP listener:
  /ws        WebSocket stream (binary messages)
  /healthz   health check
  /stats     session statistics (JSON)
  /metrics   Prometheus metrics (when enabled)

Examples:
  framer serve
  framer serve --tcp=:9000 --http=""
  framer serve --expire=500ms --metrics --archive-bucket=my-frames`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, &f)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, f.tracing)
		},
	}

	cmd.Flags().StringVar(&f.tcp, "tcp", "", "TCP listen address (default from config, \":7000\")")
	cmd.Flags().StringVar(&f.http, "http", "", "HTTP listen address for WebSocket and metrics (default from config, \":7001\")")
	cmd.Flags().DurationVar(&f.expire, "expire", 0, "Discard partial frames idle longer than this")
	cmd.Flags().IntVar(&f.maxSessions, "max-sessions", 0, "Maximum concurrent sessions")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&f.tracing, "tracing", false, "Trace every frame with OpenTelemetry")
	cmd.Flags().StringVar(&f.bucket, "archive-bucket", "", "Archive sessions to this S3 bucket")

	return cmd
}

// applyServeFlags lets explicitly set flags override the configuration file.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f *serveFlags) {
	flags := cmd.Flags()
	if flags.Changed("tcp") {
		cfg.Server.TCPAddress = f.tcp
	}
	if flags.Changed("http") {
		cfg.Server.HTTPAddress = f.http
	}
	if flags.Changed("expire") {
		cfg.Codec.ExpireMs = int(f.expire / time.Millisecond)
	}
	if flags.Changed("max-sessions") {
		cfg.Server.MaxSessions = f.maxSessions
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = f.metrics
	}
	if flags.Changed("archive-bucket") {
		cfg.Archive.Bucket = f.bucket
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, tracing bool) error {
	logger := slog.Default()

	opts, err := cfg.FramingOptions()
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}
	observers := []framing.Observer{framing.LogObserver(logger)}

	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = middleware.NewMetrics(
			middleware.WithRegistry(reg),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)
		observers = append(observers, metrics)
	}
	opts = append(opts, framing.WithObserver(framing.MultiObserver(observers...)))

	factory, err := framing.NewFactory(opts...)
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}

	readTimeout, _ := cfg.ReadTimeoutDuration()
	scfg := server.DefaultConfig()
	scfg.TCPAddress = cfg.Server.TCPAddress
	scfg.HTTPAddress = cfg.Server.HTTPAddress
	scfg.WebSocketPath = cfg.Server.WebSocketPath
	scfg.ReadTimeout = readTimeout
	scfg.MaxSessions = cfg.Server.MaxSessions

	srv := server.New(scfg, factory, server.Echo)
	srv.SetLogger(logger)

	if metrics != nil {
		srv.Use(metrics.Middleware())
		metrics.Attach(srv.Sessions())
		srv.SetMetricsHandler(metrics.Handler())
	}
	if tracing {
		srv.Use(middleware.OpenTelemetry())
	}

	var sink *archive.S3Sink
	if cfg.Archive.Bucket != "" {
		sink, err = newArchive(ctx, cfg, logger)
		if err != nil {
			return err
		}
		srv.Use(archive.Middleware(sink))
		sink.Attach(srv.Sessions())
	}

	layout, _ := cfg.Layout()
	success(cmd, "framer %s", version)
	if scfg.TCPAddress != "" {
		info(cmd, "TCP:       %s", scfg.TCPAddress)
	}
	if scfg.HTTPAddress != "" {
		info(cmd, "WebSocket: %s%s", scfg.HTTPAddress, scfg.WebSocketPath)
	}
	info(cmd, "Layout:    header=%d length=%s order=%s expire=%s",
		layout.HeaderOffset, layout.LengthField, layout.Order(), cfg.Expire())

	runErr := srv.Run(ctx)

	if sink != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), scfg.ShutdownTimeout)
		defer cancel()
		if err := sink.Shutdown(shutdownCtx); err != nil {
			logger.Error("archive shutdown failed", "error", err)
		}
	}

	if runErr != nil {
		return errors.New("FR301").Wrap(runErr)
	}
	return nil
}

func newArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*archive.S3Sink, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Archive.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Archive.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.New("FR102").
			Wrap(fmt.Errorf("failed to load AWS config: %w", err)).
			WithSuggestion("Set AWS credentials in the environment or remove archive.bucket")
	}

	prefix := cfg.Archive.Prefix
	if prefix == "" {
		prefix = config.DefaultArchivePrefix
	}

	logger.Info("archiving sessions", "bucket", cfg.Archive.Bucket, "prefix", prefix)
	return archive.NewS3Sink(archive.S3Config{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Archive.Bucket,
		Prefix: prefix,
		Logger: logger,
	}), nil
}
