// Package model manages on-disk model directories: fetching the fixed
// artifact set from Hugging Face, verifying a directory before use, and
// resolving model IDs through an optional registry file.
package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-nix-tts/internal/onnx"
	"github.com/example/go-nix-tts/internal/tokenizer"
)

// Fixed artifact filenames of a model directory. Every model ships exactly
// these four files; all other names are ignored.
const (
	EncoderFileName = "encoder.onnx"
	DecoderFileName = "decoder.onnx"
)

// ArtifactNames returns the complete artifact set of a model directory.
func ArtifactNames() []string {
	return []string{
		EncoderFileName,
		DecoderFileName,
		onnx.ManifestFileName,
		tokenizer.StateFileName,
	}
}

// VerifyDir statically checks a model directory without touching the ONNX
// runtime: the four fixed artifacts exist, the graph manifest and tokenizer
// state deserialize, the encoder and decoder graphs are declared, and every
// declared graph input can be materialized as a zero tensor.
func VerifyDir(modelDir string) error {
	if modelDir == "" {
		return fmt.Errorf("model directory is required")
	}

	for _, name := range ArtifactNames() {
		if _, err := os.Stat(filepath.Join(modelDir, name)); err != nil {
			return fmt.Errorf("artifact %s: %w", name, err)
		}
	}

	manifest, err := onnx.LoadManifest(modelDir)
	if err != nil {
		return fmt.Errorf("load graph manifest: %w", err)
	}

	for _, name := range []string{onnx.EncoderGraphName, onnx.DecoderGraphName} {
		if _, ok := manifest.Session(name); !ok {
			return fmt.Errorf("graph manifest declares no %q graph", name)
		}
	}

	for _, session := range manifest.Sessions() {
		for _, input := range session.Inputs {
			if _, err := onnx.NewZeroTensor(input.DType, input.Shape); err != nil {
				return fmt.Errorf("graph %q input %q invalid: %w", session.Name, input.Name, err)
			}
		}
	}

	if _, err := tokenizer.LoadState(filepath.Join(modelDir, tokenizer.StateFileName)); err != nil {
		return fmt.Errorf("load tokenizer state: %w", err)
	}

	return nil
}
