package main

import (
	"fmt"
	"os"

	"github.com/example/go-nix-tts/internal/model"
	"github.com/spf13/cobra"
)

func newModelVerifyCmd() *cobra.Command {
	var modelID string
	var ortAPIVersion uint32
	var staticOnly bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run smoke inference against the model directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			modelDir, err := resolveModelDir(cfg, modelID)
			if err != nil {
				return err
			}

			if staticOnly {
				if err := model.VerifyDir(modelDir); err != nil {
					return fmt.Errorf("model verify failed: %w", err)
				}
				_, _ = fmt.Fprintf(os.Stdout, "model artifacts in %s verified\n", modelDir)
				return nil
			}

			err = model.VerifyONNX(model.VerifyOptions{
				ModelDir:      modelDir,
				ORTLibrary:    cfg.Runtime.ORTLibraryPath,
				ORTAPIVersion: ortAPIVersion,
				Stdout:        os.Stdout,
				Stderr:        os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&modelID, "model", "", "Model ID from the models registry (overrides --model-dir)")
	cmd.Flags().Uint32Var(&ortAPIVersion, "ort-api-version", 23, "ONNX Runtime C API version expected by the purego binding")
	cmd.Flags().BoolVar(&staticOnly, "static", false, "Check artifacts only, without loading the ONNX runtime")

	return cmd
}
