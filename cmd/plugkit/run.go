// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/plugkit/internal/app"
	"github.com/holomush/plugkit/internal/observability"
	"github.com/holomush/plugkit/pkg/errutil"
)

// shutdownTimeout bounds plugin deactivation and server shutdown.
const shutdownTimeout = 10 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the plugin host",
		Long: `Start the plugin host: load and activate plugins, serve metrics and
health checks if configured, and run until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), cmd, a)
		},
	}
}

// runApp starts a, serves observability on metrics.addr and blocks until a
// shutdown signal, a server failure or ctx cancellation.
func runApp(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	log := a.Logger()
	cfg := a.Config()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, a.Ready,
			observability.WithLogger(log),
			observability.WithBuildInfo(version, commit))
		errCh, err := obsServer.Start()
		if err != nil {
			return oops.In("cli").Wrapf(err, "start observability server")
		}
		obsErrCh = errCh
	}

	if err := a.Start(ctx); err != nil {
		stopServer(obsServer, log)
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("plugkit started")

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			runErr = oops.In("cli").Wrapf(err, "observability server failed")
		}
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.Stop(shutdownCtx); err != nil {
		errutil.LogError(log, "error stopping plugins", err)
		if runErr == nil {
			runErr = err
		}
	}
	stopServer(obsServer, log)

	log.Info("shutdown complete")
	cmd.Println("plugkit stopped")
	return runErr
}

func stopServer(s *observability.Server, log *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		log.Warn("error stopping observability server", "error", err)
	}
}
