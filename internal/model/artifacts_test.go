package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const verifyManifest = `{
  "graphs": [
    {
      "name": "encoder",
      "filename": "encoder.onnx",
      "inputs": [
        {"name":"c","dtype":"int64","shape":[1,"tokens"]},
        {"name":"c_lengths","dtype":"int64","shape":[1]}
      ],
      "outputs": [
        {"name":"y_mask","dtype":"float","shape":[1,1,"frames"]},
        {"name":"y_stats","dtype":"float","shape":[1,192,"frames"]},
        {"name":"z","dtype":"float","shape":[1,192,"frames"]}
      ]
    },
    {
      "name": "decoder",
      "filename": "decoder.onnx",
      "inputs": [{"name":"z","dtype":"float","shape":[1,192,"frames"]}],
      "outputs": [{"name":"xw","dtype":"float","shape":[1,1,"samples"]}]
    }
  ]
}`

const verifyTokenizerState = `{
  "version": 1,
  "vocab": {"_": 0, " ": 1, "a": 2},
  "rules": [],
  "whitespace_pattern": "\\s+"
}`

// writeVerifyDir lays out a complete, statically valid model directory.
func writeVerifyDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"graphs.json":    verifyManifest,
		"tokenizer.json": verifyTokenizerState,
		EncoderFileName:  "fake-onnx-encoder",
		DecoderFileName:  "fake-onnx-decoder",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestArtifactNames(t *testing.T) {
	names := ArtifactNames()
	if len(names) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(names))
	}
	want := map[string]bool{
		"encoder.onnx":   true,
		"decoder.onnx":   true,
		"graphs.json":    true,
		"tokenizer.json": true,
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected artifact %q", name)
		}
	}
}

func TestVerifyDir(t *testing.T) {
	dir := writeVerifyDir(t)

	if err := VerifyDir(dir); err != nil {
		t.Fatalf("VerifyDir: %v", err)
	}
}

func TestVerifyDir_MissingArtifact(t *testing.T) {
	for _, name := range ArtifactNames() {
		t.Run(name, func(t *testing.T) {
			dir := writeVerifyDir(t)
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatalf("remove %s: %v", name, err)
			}

			err := VerifyDir(dir)
			if err == nil {
				t.Fatal("expected error for missing artifact")
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("error should name %s: %v", name, err)
			}
		})
	}
}

func TestVerifyDir_MissingDecoderGraph(t *testing.T) {
	dir := writeVerifyDir(t)

	encoderOnly := `{
  "graphs": [
    {
      "name": "encoder",
      "filename": "encoder.onnx",
      "inputs": [{"name":"c","dtype":"int64","shape":[1,"tokens"]}],
      "outputs": [{"name":"z","dtype":"float","shape":[1,192,"frames"]}]
    }
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "graphs.json"), []byte(encoderOnly), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	err := VerifyDir(dir)
	if err == nil {
		t.Fatal("expected error for missing decoder graph")
	}
	if !strings.Contains(err.Error(), `"decoder"`) {
		t.Fatalf("error should name the decoder graph: %v", err)
	}
}

func TestVerifyDir_InvalidInputShape(t *testing.T) {
	dir := writeVerifyDir(t)

	bad := strings.Replace(verifyManifest, `{"name":"c_lengths","dtype":"int64","shape":[1]}`,
		`{"name":"c_lengths","dtype":"int64","shape":[0]}`, 1)
	if err := os.WriteFile(filepath.Join(dir, "graphs.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	err := VerifyDir(dir)
	if err == nil {
		t.Fatal("expected error for zero-sized input dimension")
	}
	if !strings.Contains(err.Error(), `"c_lengths"`) {
		t.Fatalf("error should name the offending input: %v", err)
	}
}

func TestVerifyDir_BadTokenizerState(t *testing.T) {
	dir := writeVerifyDir(t)

	stale := strings.Replace(verifyTokenizerState, `"version": 1`, `"version": 99`, 1)
	if err := os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte(stale), 0o644); err != nil {
		t.Fatalf("write tokenizer state: %v", err)
	}

	err := VerifyDir(dir)
	if err == nil {
		t.Fatal("expected error for unsupported tokenizer state version")
	}
	if !strings.Contains(err.Error(), "tokenizer") {
		t.Fatalf("error should mention the tokenizer state: %v", err)
	}
}
