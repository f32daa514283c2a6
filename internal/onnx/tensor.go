package onnx

import (
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense numeric array exchanged with ONNX graphs. Exactly one of
// the typed backing slices is set; the nix pipeline only moves float32 and
// int64 data across the graph boundary.
type Tensor struct {
	shape []int64
	f32   []float32
	i64   []int64
}

// NewTensor copies data into a tensor after checking that the shape accounts
// for every element.
func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	n, err := elementCount(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", shape, n, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	var zero T
	switch any(zero).(type) {
	case float32:
		t.f32 = make([]float32, len(data))
		for i, v := range data {
			t.f32[i] = float32(v)
		}
	case int64:
		t.i64 = make([]int64, len(data))
		for i, v := range data {
			t.i64[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported tensor data type %T", zero)
	}

	return t, nil
}

// NewZeroTensor materializes an all-zero tensor from a manifest declaration.
// Symbolic dimensions (batch, frame counts) resolve to 1, which is what the
// smoke-verification path feeds each graph.
func NewZeroTensor(dtype string, shape []any) (*Tensor, error) {
	dt, err := canonicalDType(dtype)
	if err != nil {
		return nil, err
	}

	dims, err := resolveShape(shape)
	if err != nil {
		return nil, err
	}

	n, err := elementCount(dims)
	if err != nil {
		return nil, err
	}

	if dt == DTypeInt64 {
		return NewTensor(make([]int64, n), dims)
	}

	return NewTensor(make([]float32, n), dims)
}

func (t *Tensor) DType() TensorDType {
	if t.i64 != nil {
		return DTypeInt64
	}

	return DTypeFloat32
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the backing slice as []float32 or []int64.
func (t *Tensor) Data() any {
	if t.i64 != nil {
		return append([]int64(nil), t.i64...)
	}

	return append([]float32(nil), t.f32...)
}

// ExtractFloat32 returns a copy of the tensor's float32 data.
func ExtractFloat32(t *Tensor) ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.f32 == nil {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.DType())
	}

	return append([]float32(nil), t.f32...), nil
}

// ExtractInt64 returns a copy of the tensor's int64 data.
func ExtractInt64(t *Tensor) ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.i64 == nil {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.DType())
	}

	return append([]int64(nil), t.i64...), nil
}

// canonicalDType maps manifest dtype spellings, including ORT's
// "tensor(float)" form, onto a TensorDType.
func canonicalDType(raw string) (TensorDType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if inner, ok := strings.CutPrefix(s, "tensor("); ok {
		s = strings.TrimSuffix(inner, ")")
	}

	switch s {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	}

	return "", fmt.Errorf("unsupported tensor dtype %q", raw)
}

// resolveShape turns a manifest shape declaration into concrete dimensions.
// JSON numbers arrive as float64 and must be positive integers; symbolic
// string dimensions become 1.
func resolveShape(shape []any) ([]int64, error) {
	dims := make([]int64, len(shape))

	for i, d := range shape {
		switch v := d.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("shape[%d] has empty symbolic dimension", i)
			}
			dims[i] = 1
		case float64:
			if v != math.Trunc(v) || v < 1 {
				return nil, fmt.Errorf("shape[%d]=%v is not a positive integer", i, v)
			}
			dims[i] = int64(v)
		case int:
			if v < 1 {
				return nil, fmt.Errorf("shape[%d]=%d is not positive", i, v)
			}
			dims[i] = int64(v)
		case int64:
			if v < 1 {
				return nil, fmt.Errorf("shape[%d]=%d is not positive", i, v)
			}
			dims[i] = v
		default:
			return nil, fmt.Errorf("shape[%d] has unsupported type %T", i, d)
		}
	}

	return dims, nil
}

// elementCount multiplies the dimensions, guarding against overflow. A
// zero-rank shape is a scalar with one element.
func elementCount(shape []int64) (int, error) {
	n := int64(1)
	for i, d := range shape {
		if d < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, d)
		}
		if n > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		n *= d
	}

	if n > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(n), nil
}
