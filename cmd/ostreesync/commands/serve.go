package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/ostreesync/internal/logger"
	"github.com/marmos91/ostreesync/internal/telemetry"
	"github.com/marmos91/ostreesync/pkg/remoteserver"
	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

var (
	serveRoot string
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve <root>",
	Short: "Serve a local repository directory as an archive-z2 HTTP remote",
	Long: `Serve exposes a repository directory tree — a config file,
refs/heads/<ref> files, and loose objects under objects/ — over HTTP, the
same layout a pull expects to read from a remote. It is the reference
"other side" of a pull: point one ostreesync instance's pull at another's
serve.

Example:
  ostreesync serve ./my-repo --addr :8080`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	serveRoot = args[0]
	if _, err := os.Stat(serveRoot); err != nil {
		return fmt.Errorf("repository root %s: %w", serveRoot, err)
	}

	cfg, err := repoconfig.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ostreesync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "ostreesync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port)
	}

	server := remoteserver.NewServer(remoteserver.Config{Root: serveRoot, Addr: serveAddr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	fmt.Printf("Serving %s on %s\n", serveRoot, serveAddr)
	return server.Start(ctx)
}

func serveMetrics(port int) {
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics endpoint listening", "addr", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed { //nolint:gosec // local-only diagnostic endpoint
		logger.Error("metrics server stopped", "error", err)
	}
}
