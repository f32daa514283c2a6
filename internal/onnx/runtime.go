package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/example/go-nix-tts/internal/config"
)

// RuntimeInfo describes the detected ONNX Runtime shared library.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
	Initialized bool
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// Process-wide bootstrap state. Detection runs once; Shutdown flips the flag
// so repeated calls stay no-ops.
var (
	bootstrapOnce sync.Once
	bootstrapInfo RuntimeInfo
	errBootstrap  error
	shutdownFlag  atomic.Bool
)

// wellKnownORTPaths are the install locations probed when neither config nor
// environment names the ORT library.
var wellKnownORTPaths = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// Bootstrap detects the ORT library exactly once per process and records it
// for subsequent engine construction.
func Bootstrap(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	bootstrapOnce.Do(func() { bootstrapInfo, errBootstrap = bootstrap(cfg) })

	if errBootstrap != nil {
		return RuntimeInfo{}, errBootstrap
	}

	return bootstrapInfo, nil
}

func bootstrap(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	info, err := DetectRuntime(cfg)
	if err != nil {
		return RuntimeInfo{}, err
	}

	// Keep this process-local marker so child invocations and doctor
	// probes agree on the resolved library.
	if err := os.Setenv("NIXTTS_ORT_LIB", info.LibraryPath); err != nil {
		return RuntimeInfo{}, fmt.Errorf("set NIXTTS_ORT_LIB: %w", err)
	}

	info.Initialized = true

	return info, nil
}

// Shutdown tears down process-wide runtime state. Safe to call without a
// prior Bootstrap and safe to call multiple times.
func Shutdown() error {
	if !bootstrapInfo.Initialized || shutdownFlag.Swap(true) {
		return nil
	}

	bootstrapInfo.Initialized = false

	return nil
}

// DetectRuntime resolves the ONNX Runtime shared library path. Config wins
// over the NIXTTS_ORT_LIB and ORT_LIBRARY_PATH environment variables, which
// win over the well-known install locations.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := firstNonEmpty(
		cfg.ORTLibraryPath,
		os.Getenv("NIXTTS_ORT_LIB"),
		os.Getenv("ORT_LIBRARY_PATH"),
	)

	if path == "" {
		for _, candidate := range wellKnownORTPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"},
			errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"},
			fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := firstNonEmpty(cfg.ORTVersion, os.Getenv("ORT_VERSION"), inferVersionFromPath(path))
	if version == "" {
		version = "unknown"
	}

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func inferVersionFromPath(path string) string {
	if m := versionPattern.FindStringSubmatch(filepath.Base(path)); len(m) == 2 {
		return m[1]
	}

	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
