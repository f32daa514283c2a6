package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-nix-tts/internal/config"
)

func TestNewBenchCmd_RequiresText(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	cmd := newBenchCmd()
	cmd.SetArgs(nil)

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--text is required") {
		t.Fatalf("expected missing text error, got: %v", err)
	}
}

func TestNewBenchCmd_RejectsZeroRuns(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	cmd := newBenchCmd()
	cmd.SetArgs([]string{"--text", "hello", "--runs", "0"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--runs must be at least 1") {
		t.Fatalf("expected runs validation error, got: %v", err)
	}
}

func TestNewBenchCmd_RejectsUnknownFormat(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	cmd := newBenchCmd()
	cmd.SetArgs([]string{"--text", "hello", "--format", "xml"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--format must be") {
		t.Fatalf("expected format validation error, got: %v", err)
	}
}

func TestNewBenchCmd_UnknownModelIDFails(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()
	activeCfg.Paths.ModelDir = filepath.Join(t.TempDir(), "nix-en")

	cmd := newBenchCmd()
	cmd.SetArgs([]string{"--text", "hello", "--model", "no-such-model"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unresolvable model ID")
	}
}
