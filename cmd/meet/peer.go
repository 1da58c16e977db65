package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/yago-123/meet-punch/pkg/config"
	"github.com/yago-123/meet-punch/pkg/connect"
	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/peer"
	"github.com/yago-123/meet-punch/pkg/transport"
)

// MaxDatagramSize is large enough for any UDP payload over IPv4
const MaxDatagramSize = 65507

func peerCmd() *cobra.Command {
	var (
		configPath  string
		serverAddr  string
		port        int
		local       bool
		waitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Join a session through the meet server",
		Long: `Register with the meet server, wait for a partner and exchange lines of text with it.

Every line read from stdin is sent to the partner on the next tick, only the latest pending line is kept.
Datagrams received from the partner are printed to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if local {
				cfg.Peer.MeetIP = config.LocalMeetIP
			}
			if cmd.Flags().Changed("port") {
				cfg.Peer.DefaultPort = port
			}
			if cmd.Flags().Changed("wait-timeout") {
				cfg.Peer.WaitTimeout = waitTimeout
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			meet, err := meetServer(cfg, serverAddr)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format).WithValues(logging.KeyComponent, "peer")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			connector := connect.NewConnector(meet,
				connect.WithWaitInterval(cfg.Peer.RetryInterval),
				connect.WithSTUNServers(cfg.Peer.STUNServers...),
				connect.WithLogger(logger),
			)

			waitCtx := ctx
			if cfg.Peer.WaitTimeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, cfg.Peer.WaitTimeout)
				defer cancel()
			}

			logger.Info("Waiting for a partner", logging.KeyEndpoint, meet.String())

			tr, remote, err := connector.Connect(waitCtx, cfg.Peer.DefaultPort)
			if err != nil {
				return err
			}
			defer tr.Close()

			logger.Info("Session started", logging.KeyPeer, remote.String())

			return runSession(ctx, tr, cfg.TickInterval(), cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&serverAddr, "server", "s", "", "Meet server as host:port (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Local UDP port of the session")
	cmd.Flags().BoolVar(&local, "local", false, "Use a meet server running on this machine")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "Give up waiting for a partner after this long (0 waits forever)")

	return cmd
}

func meetServer(cfg *config.Config, override string) (peer.Endpoint, error) {
	if override != "" {
		return peer.Resolve(override)
	}

	return cfg.MeetServer()
}

// runSession plays the part of the game loop: input lines are sent at the tick rate, partner datagrams printed.
// It returns once ctx is done
func runSession(ctx context.Context, tr *transport.Transport, tick time.Duration, in io.Reader, out io.Writer, logger logr.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblocks the receive loop below
	stopReceive := context.AfterFunc(ctx, func() {
		_ = tr.Close()
	})
	defer stopReceive()

	go func() {
		buf := make([]byte, MaxDatagramSize)
		for ctx.Err() == nil {
			if n := tr.Receive(buf); n > 0 {
				fmt.Fprintf(out, "%s\n", buf[:n])
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			logger.Info("Session ended")
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			pending = []byte(line)
		case <-ticker.C:
			if pending != nil {
				tr.Send(pending)
				pending = nil
			}
		}
	}
}
