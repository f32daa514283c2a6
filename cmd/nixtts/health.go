package main

import (
	"fmt"
	"os"

	"github.com/example/go-nix-tts/internal/server"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health endpoint",
		RunE: func(_ *cobra.Command, _ []string) error {
			return probeHealth(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to probe")

	return cmd
}

// probeHealth hits /health on the given address, falling back to the
// configured listen address when none is given.
func probeHealth(addr string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	if addr == "" {
		addr = cfg.Server.ListenAddr
	}

	if err := server.ProbeHTTP(addr); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "ok")

	return nil
}
