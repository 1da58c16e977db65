package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/metrics"
	"github.com/yago-123/meet-punch/pkg/rendez/server"
	"github.com/yago-123/meet-punch/pkg/rendez/store"
)

const ShutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath string
		port       int
		statusAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the meet server",
		Long:  "Run the meet server. It never stops on its own; SIGINT or SIGTERM shut it down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				cfg.Server.ListenPort = port
			}
			if cmd.Flags().Changed("status-addr") {
				cfg.Server.StatusAddr = statusAddr
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format).WithValues(logging.KeyComponent, "meet")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool := store.NewMemoryPool()

			if cfg.Server.StatusAddr != "" {
				status := server.NewStatusServer(pool, prometheus.DefaultGatherer, logger.WithName("status"))
				if errStatus := status.Start(cfg.Server.StatusAddr); errStatus != nil {
					return fmt.Errorf("failed to start status API: %w", errStatus)
				}

				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
					defer cancel()

					if errStop := status.Stop(shutdownCtx); errStop != nil {
						logger.Error(errStop, "Status API shutdown failed")
					}
				}()
			}

			srv := server.NewMeetServer(pool, server.WithLogger(logger), server.WithMetrics(metrics.Default()))

			return srv.Run(ctx, cfg.Server.ListenIP, cfg.Server.ListenPort)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "UDP port to receive registrations on (overrides config)")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Address of the HTTP status API, e.g. 127.0.0.1:8080 (overrides config)")

	return cmd
}
