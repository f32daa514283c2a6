package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/go-nix-tts/internal/model"
	"github.com/spf13/cobra"
)

func newModelFetchCmd() *cobra.Command {
	var hfRepo string
	var revision string
	var outDir string
	var hfToken string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch model artifacts from Hugging Face",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if hfToken == "" {
				hfToken = os.Getenv("HF_TOKEN")
			}
			if outDir == "" {
				outDir = cfg.Paths.ModelDir
			}

			err = model.Fetch(model.FetchOptions{
				Repo:     hfRepo,
				Revision: revision,
				OutDir:   outDir,
				HFToken:  hfToken,
				Stdout:   os.Stdout,
				Stderr:   os.Stderr,
			})
			if err != nil {
				var denied *model.ErrAccessDenied
				if errors.As(err, &denied) && hfToken == "" {
					_, _ = fmt.Fprintln(os.Stderr, "hint: the repository may be gated; set --hf-token or HF_TOKEN")
				}

				return fmt.Errorf("model fetch failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hfRepo, "hf-repo", "rendchevi/nix-tts", "Hugging Face model repository")
	cmd.Flags().StringVar(&revision, "revision", "main", "Repository revision (branch, tag, or commit)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory where model files are stored (default: configured model dir)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Hugging Face token (falls back to HF_TOKEN env var)")

	return cmd
}
