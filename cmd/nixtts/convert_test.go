package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/tts"
)

func TestReadConvertText(t *testing.T) {
	t.Run("uses flag text when provided", func(t *testing.T) {
		got, err := readConvertText("hello world", "", strings.NewReader("ignored"))
		if err != nil {
			t.Fatalf("readConvertText: %v", err)
		}
		if got != "hello world" {
			t.Errorf("got %q, want flag text", got)
		}
	})

	t.Run("reads input file", func(t *testing.T) {
		inPath := filepath.Join(t.TempDir(), "in.txt")
		if err := os.WriteFile(inPath, []byte("from the file.\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		got, err := readConvertText("", inPath, strings.NewReader("ignored"))
		if err != nil {
			t.Fatalf("readConvertText: %v", err)
		}
		if got != "from the file.\n" {
			t.Errorf("got %q, want file contents", got)
		}
	})

	t.Run("missing input file fails", func(t *testing.T) {
		_, err := readConvertText("", filepath.Join(t.TempDir(), "missing.txt"), strings.NewReader(""))
		if err == nil || !strings.Contains(err.Error(), "read input file") {
			t.Fatalf("expected read input file error, got: %v", err)
		}
	})

	t.Run("falls back to stdin", func(t *testing.T) {
		got, err := readConvertText("", "", strings.NewReader("  piped text \n"))
		if err != nil {
			t.Fatalf("readConvertText: %v", err)
		}
		if got != "piped text" {
			t.Errorf("got %q, want trimmed stdin text", got)
		}
	})

	t.Run("empty stdin fails", func(t *testing.T) {
		_, err := readConvertText("", "", strings.NewReader("   \n"))
		if err == nil || !strings.Contains(err.Error(), "either provide") {
			t.Fatalf("expected missing input error, got: %v", err)
		}
	})
}

func TestWriteConvertOutput_Stdout(t *testing.T) {
	var buf bytes.Buffer

	data := []byte("RIFFfake")
	if err := writeConvertOutput("-", data, &buf); err != nil {
		t.Fatalf("writeConvertOutput: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), data) {
		t.Error("stdout output does not match input data")
	}
}

func TestWriteConvertOutput_NilStdoutFails(t *testing.T) {
	if err := writeConvertOutput("-", []byte("x"), nil); err == nil {
		t.Fatal("expected error for nil stdout writer")
	}
}

func TestWriteConvertOutput_File(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.wav")

	data := []byte("RIFFfake")
	if err := writeConvertOutput(outPath, data, nil); err != nil {
		t.Fatalf("writeConvertOutput: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("file contents do not match input data")
	}
}

// ---------------------------------------------------------------------------
// DSP hook assembly
// ---------------------------------------------------------------------------

func TestBuildConvertHooks_NoFlagsNoHooks(t *testing.T) {
	hooks := buildConvertHooks(config.DefaultConfig(), false, 0, 0)
	if len(hooks) != 0 {
		t.Errorf("expected no hooks, got %d", len(hooks))
	}
}

func TestBuildConvertHooks_AllFlagsEnabled(t *testing.T) {
	hooks := buildConvertHooks(config.DefaultConfig(), true, 5, 5)
	if len(hooks) != 3 {
		t.Errorf("expected 3 hooks, got %d", len(hooks))
	}
}

func TestBuildConvertHooks_FadeUsesConfiguredRate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TTS.SampleRate = 10

	// 500 ms at 10 Hz ramps over 5 samples.
	hooks := buildConvertHooks(cfg, false, 500, 0)
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	samples := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	out := hooks[0](samples)

	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0 at ramp start", out[0])
	}
	if out[4] < 0.79 || out[4] > 0.81 {
		t.Errorf("out[4] = %v, want ~0.8 inside ramp", out[4])
	}
	if out[9] != 1 {
		t.Errorf("out[9] = %v, want untouched sample after ramp", out[9])
	}
}

// ---------------------------------------------------------------------------
// error mapping and flag validation
// ---------------------------------------------------------------------------

func TestMapConvertError_NothingToSynthesize(t *testing.T) {
	wrapped := fmt.Errorf("convert: %w", tts.ErrNothingToSynthesize)

	got := mapConvertError(wrapped)
	if got == nil {
		t.Fatal("expected non-nil error")
	}
	if !errors.Is(got, tts.ErrNothingToSynthesize) {
		t.Error("mapped error should preserve the sentinel")
	}
	if !strings.Contains(got.Error(), "no synthesizable text") {
		t.Errorf("unexpected message: %v", got)
	}
}

func TestMapConvertError_PassesThroughOtherErrors(t *testing.T) {
	sentinel := errors.New("engine exploded")
	if got := mapConvertError(sentinel); got != sentinel {
		t.Errorf("mapConvertError = %v, want the original error", got)
	}
}

func TestMapConvertError_NilStaysNil(t *testing.T) {
	if got := mapConvertError(nil); got != nil {
		t.Errorf("mapConvertError(nil) = %v, want nil", got)
	}
}

func TestNewConvertCmd_RejectsTextAndIn(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.DefaultConfig()

	cmd := newConvertCmd()
	cmd.SetArgs([]string{"--text", "hi", "--in", "input.txt"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "not both") {
		t.Fatalf("expected conflicting input flags error, got: %v", err)
	}
}
