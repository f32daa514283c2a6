// Package testutil holds skip helpers and WAV assertions shared by
// integration tests. The Require* helpers skip, with the reason, when a
// prerequisite (espeak-ng, the ORT library, a real model directory) is
// missing, so the suite stays runnable on machines without them:
//
//	lib := testutil.RequireONNXRuntime(t)
//	dir := testutil.RequireModelDir(t)
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireEspeak skips the test if the espeak-ng binary is not found in PATH
// or at the path given by the NIXTTS_ESPEAK_PATH environment variable. It
// returns the executable that was located.
func RequireEspeak(tb testing.TB) string {
	tb.Helper()

	exe := os.Getenv("NIXTTS_ESPEAK_PATH")
	if exe == "" {
		exe = "espeak-ng"
	}

	path, err := exec.LookPath(exe)
	if err != nil {
		tb.Skipf("espeak-ng binary not available (%q not in PATH); set NIXTTS_ESPEAK_PATH to override", exe)
	}

	return path
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns the resolved library path otherwise. It checks (in
// order): the NIXTTS_ORT_LIB env var, then ORT_LIBRARY_PATH, then common
// system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"NIXTTS_ORT_LIB", "ORT_LIBRARY_PATH"} {
		p := os.Getenv(env)
		if p == "" {
			continue
		}

		if _, err := os.Stat(p); err == nil {
			return p
		}

		tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
	}

	// Fall back to common system locations.
	for _, p := range []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set NIXTTS_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}

// RequireModelDir skips the test unless the NIXTTS_MODEL_DIR environment
// variable names an existing directory, and returns that directory.
func RequireModelDir(tb testing.TB) string {
	tb.Helper()

	dir := os.Getenv("NIXTTS_MODEL_DIR")
	if dir == "" {
		tb.Skip("no model directory available; set NIXTTS_MODEL_DIR")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		tb.Skipf("model directory %q not usable: %v", dir, err)
	}

	return dir
}
