package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fcapolini/markout/internal/config"
	"github.com/fcapolini/markout/internal/errors"
	"github.com/fcapolini/markout/pkg/middleware"
	"github.com/fcapolini/markout/pkg/page"
	"github.com/fcapolini/markout/pkg/server"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		port    int
		host    string
		metrics bool
		tracing bool
		noLive  bool
	)

	cmd := &cobra.Command{
		Use:   "serve [docroot]",
		Short: "Serve the pages of a directory or bucket",
		Long: `Serve pages over HTTP, with live sessions on /_markout/live/<page>.

Flags override markout.json, which overrides MARKOUT_* variables.

Examples:
  markout serve
  markout serve ./site --port=8080
  markout serve --metrics --host=0.0.0.0`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return errors.New("E102").Wrap(err)
				}
				cfg.Store = config.StoreFS
				cfg.Docroot = abs
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("metrics") {
				cfg.Metrics.Enabled = metrics
			}
			if flags.Changed("tracing") {
				cfg.Tracing.Enabled = tracing
			}
			if noLive {
				off := false
				cfg.Live.Enabled = &off
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.serve(cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on")
	cmd.Flags().StringVarP(&host, "host", "H", config.DefaultHost, "Host to bind to")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Open an OpenTelemetry span per request")
	cmd.Flags().BoolVar(&noLive, "no-live", false, "Disable live sessions")

	return cmd
}

func (c *cli) serve(cmd *cobra.Command, cfg *config.Config) error {
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	sc := server.DefaultConfig()
	sc.Address = cfg.Address()
	sc.Live = cfg.LiveEnabled()
	sc.ShutdownTimeout = cfg.ShutdownTimeoutDuration()
	sc.Session.HeartbeatInterval = cfg.HeartbeatInterval()
	sc.Session.MaxMessageSize = cfg.Live.MaxMessageSize

	opts := []server.Option{
		server.WithConfig(sc),
		server.WithLogger(c.logger.With("component", "server")),
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(reg),
		)
		opts = append(opts, server.WithMetrics(m, reg))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, server.WithTracing())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(store, opts...)
	c.success("Serving %s on http://%s", storeName(cfg), sc.Address)
	return srv.ListenAndServe(ctx)
}

// loadConfig loads the project configuration and applies its log level.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.dir)
	if err != nil {
		return nil, err
	}
	c.setLevel(cfg.LogLevel)
	c.logger.Debug("configuration loaded", "path", cfg.Path(), "store", cfg.Store)
	return cfg, nil
}

func newStore(cfg *config.Config) (page.Store, error) {
	switch cfg.Store {
	case config.StoreS3:
		client := page.NewS3Client(page.S3Options{
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		return page.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	case config.StoreFS:
		dir := cfg.DocrootPath()
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, errors.New("E104").WithSuggestion("Create " + dir + " or pass the page directory to serve.")
		}
		return page.NewFSStore(dir), nil
	default:
		return nil, errors.New("E102").WithDetail("Unknown store " + cfg.Store + ".")
	}
}

func storeName(cfg *config.Config) string {
	if cfg.Store == config.StoreS3 {
		return "s3://" + cfg.S3.Bucket + "/" + cfg.S3.Prefix
	}
	return cfg.DocrootPath()
}
