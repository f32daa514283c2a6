package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/model"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model acquisition and verification commands",
	}

	cmd.AddCommand(newModelFetchCmd())
	cmd.AddCommand(newModelVerifyCmd())
	cmd.AddCommand(newModelListCmd())
	return cmd
}

func newModelListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models declared in the registry",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			reg, err := loadModelRegistry(cfg)
			if err != nil {
				return err
			}

			models := reg.List()
			if len(models) == 0 {
				_, err = fmt.Fprintln(os.Stdout, "no models declared")
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "%-20s %-30s %s\n", "ID", "DIR", "LANGUAGE")
			for _, m := range models {
				_, _ = fmt.Fprintf(os.Stdout, "%-20s %-30s %s\n", m.ID, m.Dir, m.Language)
			}

			return nil
		},
	}

	return cmd
}

// loadModelRegistry opens the registry manifest kept in the models root, one
// level above the configured model directory.
func loadModelRegistry(cfg config.Config) (*model.Registry, error) {
	manifestPath := filepath.Join(filepath.Dir(cfg.Paths.ModelDir), model.RegistryFileName)
	return model.LoadRegistry(manifestPath)
}
