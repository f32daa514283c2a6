//go:build !windows

package onnx

import (
	"context"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner owns the ORT runtime, env, and session for one ONNX graph and
// translates between Tensor values and the binding's tensor type.
type Runner struct {
	name    string
	meta    Session
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

// NewRunner opens an ORT session for the graph described by meta. On any
// failure the partially constructed resources are released before returning.
func NewRunner(meta Session, cfg RunnerConfig) (*Runner, error) {
	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		apiVersion = 23
	}

	rt, err := ort.NewRuntime(cfg.LibraryPath, apiVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime for %q: %w", meta.Name, err)
	}

	env, err := rt.NewEnv("nixtts-"+meta.Name, ort.LoggingLevelWarning)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("ort env for %q: %w", meta.Name, err)
	}

	sess, err := rt.NewSession(env, meta.Path, nil)
	if err != nil {
		env.Close()
		_ = rt.Close()

		return nil, fmt.Errorf("ort session for %q (%s): %w", meta.Name, meta.Path, err)
	}

	return &Runner{name: meta.Name, meta: meta, runtime: rt, env: env, session: sess}, nil
}

// Run feeds the named input tensors to the graph and collects every output
// tensor keyed by node name.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	feeds := make(map[string]*ort.Value, len(inputs))
	defer closeORTValues(feeds)

	for name, t := range inputs {
		v, err := tensorToORT(r.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		feeds[name] = v
	}

	fetches, err := r.session.Run(ctx, feeds)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}
	defer closeORTValues(fetches)

	outputs := make(map[string]*Tensor, len(fetches))
	for name, v := range fetches {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		outputs[name] = t
	}

	return outputs, nil
}

// Close releases all ORT resources. Safe to call multiple times. Teardown
// order is the reverse of construction: session, env, runtime.
func (r *Runner) Close() {
	if s := r.session; s != nil {
		r.session = nil
		s.Close()
	}
	if e := r.env; e != nil {
		r.env = nil
		e.Close()
	}
	if rt := r.runtime; rt != nil {
		r.runtime = nil
		_ = rt.Close()
	}
}

// Name returns the graph name from the manifest.
func (r *Runner) Name() string { return r.name }

func tensorToORT(rt *ort.Runtime, t *Tensor) (*ort.Value, error) {
	switch data := t.Data().(type) {
	case []int64:
		return ort.NewTensorValue(rt, data, t.Shape())
	case []float32:
		return ort.NewTensorValue(rt, data, t.Shape())
	}

	return nil, fmt.Errorf("unsupported tensor dtype %s", t.DType())
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
