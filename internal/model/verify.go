//go:build !windows

package model

import (
	"context"
	"fmt"
	"io"
	"strings"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/example/go-nix-tts/internal/onnx"
)

// VerifyOptions configure a native model verification run.
type VerifyOptions struct {
	ModelDir      string
	ORTLibrary    string
	ORTAPIVersion uint32
	Stdout        io.Writer
	Stderr        io.Writer
}

// runNativeVerify is swapped out in tests that cannot load a real runtime.
var runNativeVerify = runNativeVerifyImpl

// VerifyONNX smoke-tests a model directory against the native ONNX Runtime:
// after the static checks of VerifyDir pass, every declared graph is loaded
// and run once on zero-valued inputs.
func VerifyONNX(opts VerifyOptions) error {
	if opts.ORTAPIVersion == 0 {
		opts.ORTAPIVersion = 23
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	if err := VerifyDir(opts.ModelDir); err != nil {
		return err
	}

	manifest, err := onnx.LoadManifest(opts.ModelDir)
	if err != nil {
		return fmt.Errorf("load graph manifest: %w", err)
	}

	return runNativeVerify(manifest.Sessions(), opts)
}

// smokeVerifier holds a live runtime and env so all graphs of a model share
// one ORT instance.
type smokeVerifier struct {
	runtime *ort.Runtime
	env     *ort.Env
}

func runNativeVerifyImpl(sessions []onnx.Session, opts VerifyOptions) error {
	sv, err := newSmokeVerifier(opts.ORTLibrary, opts.ORTAPIVersion)
	if err != nil {
		return err
	}
	defer sv.close()

	var failed []string
	for _, session := range sessions {
		if err := sv.runOnce(context.Background(), session); err != nil {
			fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", session.Name, err)
			failed = append(failed, session.Name)
			continue
		}

		fmt.Fprintf(opts.Stdout, "PASS %s\n", session.Name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("verify failed for %d graph(s): %s", len(failed), strings.Join(failed, ", "))
	}

	return nil
}

func newSmokeVerifier(library string, apiVersion uint32) (*smokeVerifier, error) {
	runtime, err := ort.NewRuntime(library, apiVersion)
	if err != nil {
		return nil, fmt.Errorf("initialize ONNX Runtime (lib=%q api=%d): %w", library, apiVersion, err)
	}

	env, err := runtime.NewEnv("nixtts-model-verify", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("create ONNX Runtime env: %w", err)
	}

	return &smokeVerifier{runtime: runtime, env: env}, nil
}

func (sv *smokeVerifier) close() {
	sv.env.Close()
	_ = sv.runtime.Close()
}

// runOnce loads one graph and runs it on zero-valued inputs built from the
// manifest's node declarations.
func (sv *smokeVerifier) runOnce(ctx context.Context, session onnx.Session) error {
	s, err := sv.runtime.NewSession(sv.env, session.Path, nil)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	defer s.Close()

	inputs, err := sv.zeroInputs(session.Inputs)
	if err != nil {
		return err
	}
	defer func() {
		for _, v := range inputs {
			v.Close()
		}
	}()

	outputs, err := s.Run(ctx, inputs)
	if err != nil {
		return fmt.Errorf("run inference: %w", err)
	}
	for _, out := range outputs {
		out.Close()
	}

	return nil
}

func (sv *smokeVerifier) zeroInputs(decls []onnx.NodeInfo) (map[string]*ort.Value, error) {
	inputs := make(map[string]*ort.Value, len(decls))

	for _, decl := range decls {
		t, err := onnx.NewZeroTensor(decl.DType, decl.Shape)
		if err == nil {
			var v *ort.Value
			v, err = sv.toValue(t)
			if err == nil {
				inputs[decl.Name] = v
				continue
			}
		}

		for _, v := range inputs {
			v.Close()
		}

		return nil, fmt.Errorf("build input %q tensor: %w", decl.Name, err)
	}

	return inputs, nil
}

func (sv *smokeVerifier) toValue(t *onnx.Tensor) (*ort.Value, error) {
	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(sv.runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(sv.runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor backing type %T", data)
	}
}
