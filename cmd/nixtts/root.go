package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:               "nixtts",
		Short:             "Nix TTS command line",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return loadActiveConfig(cmd, defaults) },
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	for _, sub := range []*cobra.Command{
		newConvertCmd(),
		newBenchCmd(),
		newModelCmd(),
		newServeCmd(),
		newHealthCmd(),
		newDoctorCmd(),
	} {
		cmd.AddCommand(sub)
	}

	return cmd
}

// loadActiveConfig resolves flags, env, and the optional config file into the
// process-wide configuration and points slog at the configured level.
func loadActiveConfig(cmd *cobra.Command, defaults config.Config) error {
	loaded, err := config.Load(config.LoadOptions{
		Cmd:        cmd,
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		return err
	}

	activeCfg = loaded
	setupLogger(loaded.LogLevel)

	return nil
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ModelDir == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}

	return activeCfg, nil
}

// resolveModelDir maps a --model registry ID to a model directory. An empty
// ID keeps the configured directory.
func resolveModelDir(cfg config.Config, modelID string) (string, error) {
	if modelID == "" {
		return cfg.Paths.ModelDir, nil
	}

	reg, err := loadModelRegistry(cfg)
	if err != nil {
		return "", err
	}

	return reg.ResolveDir(modelID)
}
