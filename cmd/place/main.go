package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/place/internal/config"
	placeerrors "github.com/vango-dev/place/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬  ┌─┐┌─┐┌─┐
  ├─┘│  ├─┤│  ├┤
  ┴  ┴─┘┴ ┴└─┘└─┘
`

func main() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		placeerrors.SetColor(false)
	}
	if err := newRootCmd().Execute(); err != nil {
		placeerrors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "place",
		Short: "A shared pixel canvas over WebSocket",
		Long: `place serves a shared pixel canvas.

Clients connect to /ws and exchange 11-byte pixel writes. Every accepted
write is broadcast to all connected clients, and the canvas is saved to
disk on a schedule and on shutdown.

Running place without a subcommand is the same as "place serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		serveCmd(),
		snapshotCmd(),
		versionCmd(),
	)
	return rootCmd
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "place")
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}
