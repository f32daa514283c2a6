//go:build windows

package model

import (
	"errors"
	"io"
)

// VerifyOptions configure a native model verification run.
type VerifyOptions struct {
	ModelDir      string
	ORTLibrary    string
	ORTAPIVersion uint32
	Stdout        io.Writer
	Stderr        io.Writer
}

// VerifyONNX is unavailable in windows builds; VerifyDir still works.
func VerifyONNX(_ VerifyOptions) error {
	return errors.New("onnx model verification is unavailable on windows in this build")
}
