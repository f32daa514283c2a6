package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/testutil"
)

// requirePipelineEnv skips unless espeak-ng, an ONNX Runtime library, and a
// model directory are all available, and returns their locations.
func requirePipelineEnv(t *testing.T) (espeak, lib, modelDir string) {
	t.Helper()

	espeak = testutil.RequireEspeak(t)
	lib = testutil.RequireONNXRuntime(t)
	modelDir = testutil.RequireModelDir(t)

	return espeak, lib, modelDir
}

func TestConvertCmd_EndToEnd(t *testing.T) {
	espeak, lib, modelDir := requirePipelineEnv(t)

	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	outPath := filepath.Join(t.TempDir(), "out.wav")

	root := NewRootCmd()
	root.SetArgs([]string{
		"convert",
		"--model-dir", modelDir,
		"--phoneme-espeak-path", espeak,
		"--ort-lib", lib,
		"--text", "Integration testing sounds better out loud.",
		"--out", outPath,
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("convert: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	testutil.AssertValidWAV(t, data, config.DefaultConfig().TTS.SampleRate)
	testutil.AssertWAVDurationApprox(t, data, 0.2, 30)
}

func TestDoctorCmd_PassesInRealEnvironment(t *testing.T) {
	espeak, lib, modelDir := requirePipelineEnv(t)

	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()
	root.SetArgs([]string{
		"doctor",
		"--model-dir", modelDir,
		"--phoneme-espeak-path", espeak,
		"--ort-lib", lib,
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}
}

func TestBenchCmd_EndToEnd(t *testing.T) {
	espeak, lib, modelDir := requirePipelineEnv(t)

	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	root := NewRootCmd()
	root.SetArgs([]string{
		"bench",
		"--model-dir", modelDir,
		"--phoneme-espeak-path", espeak,
		"--ort-lib", lib,
		"--text", "Benchmark run.",
		"--runs", "1",
		"--format", "json",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("bench: %v", err)
	}
}
