package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-nix-tts/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Nix TTS HTTP server",
		RunE:  func(*cobra.Command, []string) error { return runServe() },
	}
}

// runServe blocks until SIGINT/SIGTERM, then drains in-flight requests for
// the configured shutdown period.
func runServe() error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drain := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	return server.New(cfg, nil).WithShutdownTimeout(drain).Start(ctx)
}
