package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/doctor"
	"github.com/example/go-nix-tts/internal/onnx"
	"github.com/example/go-nix-tts/internal/phoneme"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	result := doctor.Run(buildDoctorConfig(ctx, cfg), os.Stdout)
	if !result.Failed() {
		fmt.Fprintln(os.Stdout, "doctor checks passed")
		return nil
	}

	for _, f := range result.Failures() {
		fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
	}

	return errors.New("doctor checks failed")
}

// buildDoctorConfig wires the doctor checks to the configured espeak-ng
// binary, ONNX Runtime detection, and model directory.
func buildDoctorConfig(ctx context.Context, cfg config.Config) doctor.Config {
	backend := phoneme.NewEspeakBackend(phoneme.EspeakConfig{
		Path:  cfg.Phoneme.EspeakPath,
		Voice: cfg.TTS.Language,
	})

	return doctor.Config{
		EspeakVersion: func() (string, error) { return backend.Version(ctx) },
		ORTRuntime: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}
			return info.LibraryPath, nil
		},
		ModelDir: cfg.Paths.ModelDir,
	}
}
