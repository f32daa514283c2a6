package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-nix-tts/internal/config"
)

// writeFakeEspeakScript writes a shell script that prints the given version
// banner and exits 0, standing in for the espeak-ng binary.
func writeFakeEspeakScript(t *testing.T, banner string) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "espeak-ng")

	content := "#!/bin/sh\necho '" + banner + "'\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("WriteFile script: %v", err)
	}

	return script
}

func TestBuildDoctorConfig_EspeakProbeRunsConfiguredBinary(t *testing.T) {
	banner := "eSpeak NG text-to-speech: 1.52.0  Data at: /usr/lib/espeak-ng-data"

	cfg := config.DefaultConfig()
	cfg.Phoneme.EspeakPath = writeFakeEspeakScript(t, banner)

	dcfg := buildDoctorConfig(context.Background(), cfg)

	got, err := dcfg.EspeakVersion()
	if err != nil {
		t.Fatalf("EspeakVersion: %v", err)
	}
	if got != banner {
		t.Errorf("EspeakVersion = %q, want script banner", got)
	}
}

func TestBuildDoctorConfig_EspeakMissingBinary(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Phoneme.EspeakPath = filepath.Join(t.TempDir(), "missing-espeak-ng")

	dcfg := buildDoctorConfig(context.Background(), cfg)

	if _, err := dcfg.EspeakVersion(); err == nil {
		t.Fatal("expected error for missing espeak-ng binary")
	}
}

func TestBuildDoctorConfig_ORTDetectUsesConfiguredPath(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("not a real library"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Runtime.ORTLibraryPath = lib

	dcfg := buildDoctorConfig(context.Background(), cfg)

	got, err := dcfg.ORTRuntime()
	if err != nil {
		t.Fatalf("ORTRuntime: %v", err)
	}
	if got != lib {
		t.Errorf("ORTRuntime = %q, want configured library path", got)
	}
}

func TestBuildDoctorConfig_ORTMissingLibraryFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Runtime.ORTLibraryPath = filepath.Join(t.TempDir(), "missing-libonnxruntime.so")

	dcfg := buildDoctorConfig(context.Background(), cfg)

	if _, err := dcfg.ORTRuntime(); err == nil {
		t.Fatal("expected error for missing ONNX Runtime library")
	}
}

func TestBuildDoctorConfig_ModelDirPassedThrough(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.ModelDir = "models/nix-de"

	dcfg := buildDoctorConfig(context.Background(), cfg)

	if dcfg.ModelDir != "models/nix-de" {
		t.Errorf("ModelDir = %q, want configured model dir", dcfg.ModelDir)
	}
}

// runDoctorCapture executes the doctor command and returns the combined
// stdout/stderr output and the execution error. The command writes directly
// to os.Stdout/os.Stderr, so both descriptors are redirected via a pipe.
func runDoctorCapture(t *testing.T) (string, error) {
	t.Helper()

	pr, pw, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("os.Pipe: %v", pipeErr)
	}
	origStdout := os.Stdout
	origStderr := os.Stderr
	os.Stdout = pw
	os.Stderr = pw

	cmd := newDoctorCmd()
	cmd.SetArgs(nil)
	execErr := cmd.Execute()

	_ = pw.Close()
	os.Stdout = origStdout
	os.Stderr = origStderr

	var buf bytes.Buffer
	if _, readErr := buf.ReadFrom(pr); readErr != nil {
		t.Fatalf("read pipe: %v", readErr)
	}
	_ = pr.Close()

	return buf.String(), execErr
}

func TestNewDoctorCmd_ReportsEspeakFailure(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()
	activeCfg.Phoneme.EspeakPath = filepath.Join(t.TempDir(), "missing-espeak-ng")
	activeCfg.Paths.ModelDir = filepath.Join(t.TempDir(), "missing-model")

	out, err := runDoctorCapture(t)
	if err == nil {
		t.Fatal("expected doctor to fail with a missing espeak-ng binary")
	}

	if !strings.Contains(out, "espeak-ng binary") {
		t.Errorf("output does not mention the espeak-ng check:\n%s", out)
	}
	if !strings.Contains(out, "FAIL:") {
		t.Errorf("output does not list failures:\n%s", out)
	}
}
