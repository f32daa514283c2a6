// Package doctor provides environment preflight checks for nixtts.
package doctor

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-nix-tts/internal/model"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// DetectFunc resolves a component location or returns an error when it
// cannot be found.
type DetectFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// EspeakVersion returns the output of `espeak-ng --version`.
	EspeakVersion VersionFunc
	// ORTRuntime resolves the ONNX Runtime shared library path.
	ORTRuntime DetectFunc
	// ModelDir is the model directory to verify.
	ModelDir string
	// VerifyModel overrides the model directory check. Nil means static
	// artifact verification.
	VerifyModel func(dir string) error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

// report records one check outcome: a pass or fail line on w, and on
// failure the message in the result.
func (r *Result) report(w io.Writer, ok bool, failure, line string) {
	mark := PassMark
	if !ok {
		mark = FailMark
		r.failures = append(r.failures, failure)
	}

	fmt.Fprintf(w, "%s %s\n", mark, line)
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	checkEspeak(cfg, &res, w)
	checkORT(cfg, &res, w)
	checkModel(cfg, &res, w)

	return res
}

func checkEspeak(cfg Config, res *Result, w io.Writer) {
	banner, err := cfg.EspeakVersion()
	if err != nil {
		res.report(w, false,
			fmt.Sprintf("espeak-ng binary: %v", err),
			fmt.Sprintf("espeak-ng binary: not found (%v)", err))
		return
	}

	if err := checkEspeakVersion(banner); err != nil {
		res.report(w, false,
			fmt.Sprintf("espeak-ng version: %v", err),
			fmt.Sprintf("espeak-ng version %s: %v", banner, err))
		return
	}

	res.report(w, true, "", "espeak-ng binary: "+banner)
}

func checkORT(cfg Config, res *Result, w io.Writer) {
	lib, err := cfg.ORTRuntime()
	if err != nil {
		res.report(w, false,
			fmt.Sprintf("onnxruntime library: %v", err),
			fmt.Sprintf("onnxruntime library: not found (%v)", err))
		return
	}

	res.report(w, true, "", "onnxruntime library: "+lib)
}

func checkModel(cfg Config, res *Result, w io.Writer) {
	verify := cfg.VerifyModel
	if verify == nil {
		verify = model.VerifyDir
	}

	if err := verify(cfg.ModelDir); err != nil {
		res.report(w, false,
			fmt.Sprintf("model directory %q: %v", cfg.ModelDir, err),
			fmt.Sprintf("model directory %s: %v", cfg.ModelDir, err))
		return
	}

	res.report(w, true, "", "model directory: "+cfg.ModelDir)
}

// checkEspeakVersion returns an error if the reported version is older than
// espeak-ng 1.49, the first release of the NG fork. The classic espeak
// binary ships a different phoneme inventory.
func checkEspeakVersion(banner string) error {
	major, minor, err := parseMajorMinor(extractVersion(banner))
	switch {
	case err != nil:
		return fmt.Errorf("cannot parse %q: %w", banner, err)
	case major != 1:
		return fmt.Errorf("requires espeak-ng 1.x, got %d.%d", major, minor)
	case minor < 49:
		return fmt.Errorf("requires espeak-ng >=1.49, got 1.%d", minor)
	}

	return nil
}

// extractVersion picks the first dotted-number token out of a version
// banner such as "eSpeak NG text-to-speech: 1.52.0  Data at: /usr/share".
func extractVersion(banner string) string {
	for _, field := range strings.Fields(banner) {
		if field[0] >= '0' && field[0] <= '9' && strings.Contains(field, ".") {
			return field
		}
	}

	return banner
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	before, after, found := strings.Cut(ver, ".")
	if !found {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	if i := strings.IndexByte(after, '.'); i >= 0 {
		after = after[:i]
	}

	if major, err = strconv.Atoi(before); err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	if minor, err = strconv.Atoi(after); err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}
