package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yago-123/meet-punch/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "meet",
		Short: "Meet server and peer for two-player UDP sessions",
		Long: `meet pairs two UDP endpoints through a small matchmaking server and then lets
them exchange datagrams directly.

Run "meet serve" on a publicly reachable host and "meet peer" on each player's machine.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(peerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads path when given, the built-in defaults otherwise
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}
