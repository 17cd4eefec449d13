package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shineum/oft-eml-exporter/internal/api"
	"github.com/shineum/oft-eml-exporter/internal/config"
	"github.com/shineum/oft-eml-exporter/internal/logger"
	"github.com/shineum/oft-eml-exporter/internal/publish/ses"
	"github.com/shineum/oft-eml-exporter/internal/server"
	"github.com/shineum/oft-eml-exporter/internal/service"
	exportertls "github.com/shineum/oft-eml-exporter/internal/tls"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API serving GET /, POST /preview, POST /export and
POST /templates. Configuration comes from the optional YAML file given
with --config, overridden by environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}

			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			if err := logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format); err != nil {
				return err
			}

			// Setup graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runServer(ctx, cfg)
		},
	}
}

const (
	limiterSweepInterval = time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

func runServer(ctx context.Context, cfg *config.Config) error {
	tlsConfig, err := exportertls.Load(cfg.TLS.Mode, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to setup TLS: %w", err)
	}

	publisher, err := selectPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	var limiter *api.ClientRateLimiter
	if cfg.RateLimitEnabled() {
		limiter = api.NewClientRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.RunSweeper(ctx, limiterSweepInterval, limiterIdleTimeout)
	}

	registry := newRegistry()
	h := api.NewHandler(service.New(registry, publisher))
	mw := api.NewMiddleware(cfg.Server.MaxBodySize, limiter)

	srv := server.New(server.Config{
		ListenAddr:      cfg.Server.Listen,
		Handler:         api.NewRouter(h, mw, cfg.MetricsPath()),
		TLSConfig:       tlsConfig,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	slog.Info("starting oft-eml-exporter",
		"listen", cfg.Server.Listen,
		"formats", registry.Names(),
		"templates_enabled", publisher != nil,
		"rate_limit_rps", cfg.RateLimit.RPS,
		"tls_mode", cfg.TLS.Mode,
		"metrics_path", cfg.MetricsPath(),
	)

	// Start the server (blocks until context is cancelled)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("oft-eml-exporter stopped")
	return nil
}

// selectPublisher returns the SES template publisher when SES is configured
// and nil otherwise.
func selectPublisher(ctx context.Context, cfg *config.Config) (service.Publisher, error) {
	if !cfg.SESConfigured() {
		slog.Info("SES not configured, template publishing disabled")
		return nil, nil
	}

	p, err := ses.New(ctx, ses.Config{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES publisher: %w", err)
	}

	slog.Info("SES template publishing enabled", "region", cfg.SES.Region)
	return p, nil
}
