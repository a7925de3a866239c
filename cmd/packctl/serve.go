package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/packhouse/coordinator/pkg/health"
	"github.com/packhouse/coordinator/pkg/log"
	"github.com/packhouse/coordinator/pkg/metrics"
)

var (
	serveAddr         string
	serveScanInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a long-lived process exposing /metrics, /health, /ready and /live over HTTP",
	Long: `serve starts the periodic scan collector against the shared filesystem
and exposes it as Prometheus metrics alongside health/readiness/liveness
endpoints, for a sidecar or systemd unit to poll. It does not itself start or
drive packing sessions; use "session run" for that.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9090", "Address to listen on")
	serveCmd.Flags().DurationVar(&serveScanInterval, "scan-interval", 30*time.Second, "How often to rescan the shared filesystem for the active-sessions and stale-locks gauges")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("serve")

	collector := metrics.NewCollector(scanner, cache, serveScanInterval)
	collector.Start()
	defer collector.Stop()

	healthDir := paths.HealthCheckDir(cfg.HostName)
	if err := os.MkdirAll(healthDir, 0o755); err != nil {
		return fmt.Errorf("create health check directory: %w", err)
	}
	if _, _, err := locks.Acquire(healthDir); err != nil {
		return fmt.Errorf("acquire health check lock: %w", err)
	}
	defer locks.Release(healthDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lockHeartbeatStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := locks.Heartbeat(healthDir); err != nil {
					logger.Warn().Err(err).Msg("health check lock heartbeat failed")
				}
			case <-lockHeartbeatStop:
				return
			}
		}
	}()
	defer close(lockHeartbeatStop)

	shareMonitor := metrics.NewMonitor("share", health.NewShareChecker(profiles), health.DefaultConfig())
	lockMonitor := metrics.NewMonitor("lockmgr", health.NewLockChecker(locks, healthDir, cfg.HostName, os.Getpid()), health.DefaultConfig())
	shareMonitor.Start(ctx)
	lockMonitor.Start(ctx)
	defer shareMonitor.Stop()
	defer lockMonitor.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	srv := &http.Server{
		Addr:    serveAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", serveAddr).Msg("serve listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("serve shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
