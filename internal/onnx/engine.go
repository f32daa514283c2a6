package onnx

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/go-nix-tts/internal/config"
)

// Encoder and decoder node names fixed by the model architecture.
const (
	EncoderTokensInput  = "c"
	EncoderLengthsInput = "c_lengths"
	DecoderLatentInput  = "z"
)

// latentOutputIndex is the position of the latent tensor among the encoder's
// ordered outputs; audioOutputIndex is the audio tensor's position among the
// decoder's.
const (
	latentOutputIndex = 2
	audioOutputIndex  = 0
)

// InferenceError wraps a failure from one inference stage, preserving the
// cause for errors.Is/As inspection.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// GraphRunner is the minimal runner contract required by Engine methods.
// It is what test doubles implement.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// Engine drives the two-stage inference pipeline: token batch through the
// encoder to a latent, latent through the decoder to raw audio. Run calls
// are serialized behind a mutex; the ORT sessions are not assumed safe for
// concurrent invocation.
type Engine struct {
	mu       sync.Mutex
	encoder  GraphRunner
	decoder  GraphRunner
	manifest *Manifest

	// Output node names resolved from the manifest's ordered declarations.
	latentOutput string
	audioOutput  string
}

// NewEngine loads the graph manifest from modelDir, resolves the ORT
// library, and opens both graph sessions. Every missing or malformed
// artifact fails construction; no partial engine is returned.
func NewEngine(modelDir string, rcfg config.RuntimeConfig) (*Engine, error) {
	info, err := Bootstrap(rcfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap onnx runtime: %w", err)
	}

	manifest, err := LoadManifest(modelDir)
	if err != nil {
		return nil, err
	}

	encMeta, decMeta, err := pipelineSessions(manifest)
	if err != nil {
		return nil, err
	}

	runnerCfg := RunnerConfig{
		LibraryPath: info.LibraryPath,
		APIVersion:  rcfg.ORTAPIVersion,
	}

	encoder, err := NewRunner(encMeta, runnerCfg)
	if err != nil {
		return nil, err
	}

	decoder, err := NewRunner(decMeta, runnerCfg)
	if err != nil {
		encoder.Close()
		return nil, err
	}

	return &Engine{
		encoder:      encoder,
		decoder:      decoder,
		manifest:     manifest,
		latentOutput: encMeta.Outputs[latentOutputIndex].Name,
		audioOutput:  decMeta.Outputs[audioOutputIndex].Name,
	}, nil
}

// NewEngineWithRunners builds an Engine from externally provided graph
// runners, with the latent and audio output node names given directly. Used
// by tests and alternate runtimes.
func NewEngineWithRunners(encoder, decoder GraphRunner, latentOutput, audioOutput string) *Engine {
	return &Engine{
		encoder:      encoder,
		decoder:      decoder,
		latentOutput: latentOutput,
		audioOutput:  audioOutput,
	}
}

// pipelineSessions pulls the encoder and decoder metadata out of a manifest
// and checks that the output declarations cover the positions the pipeline
// reads.
func pipelineSessions(manifest *Manifest) (Session, Session, error) {
	encMeta, ok := manifest.Session(EncoderGraphName)
	if !ok {
		return Session{}, Session{}, fmt.Errorf("graph manifest has no %q graph", EncoderGraphName)
	}
	if len(encMeta.Outputs) <= latentOutputIndex {
		return Session{}, Session{}, fmt.Errorf(
			"encoder graph declares %d outputs, need at least %d (latent is output %d)",
			len(encMeta.Outputs), latentOutputIndex+1, latentOutputIndex)
	}

	decMeta, ok := manifest.Session(DecoderGraphName)
	if !ok {
		return Session{}, Session{}, fmt.Errorf("graph manifest has no %q graph", DecoderGraphName)
	}
	if len(decMeta.Outputs) <= audioOutputIndex {
		return Session{}, Session{}, fmt.Errorf(
			"decoder graph declares %d outputs, need at least %d", len(decMeta.Outputs), audioOutputIndex+1)
	}

	return encMeta, decMeta, nil
}

// Manifest returns the loaded graph manifest, or nil for engines built from
// injected runners.
func (e *Engine) Manifest() *Manifest {
	return e.manifest
}

// Encode runs the encoder over a padded token batch and returns the latent
// tensor.
func (e *Engine) Encode(ctx context.Context, tokens, lengths *Tensor) (*Tensor, error) {
	outputs, err := e.run(ctx, e.encoder, map[string]*Tensor{
		EncoderTokensInput:  tokens,
		EncoderLengthsInput: lengths,
	})
	if err != nil {
		return nil, &InferenceError{Stage: "encoder", Err: err}
	}

	latent, ok := outputs[e.latentOutput]
	if !ok {
		return nil, &InferenceError{Stage: "encoder", Err: fmt.Errorf("output %q missing from results", e.latentOutput)}
	}

	return latent, nil
}

// Decode runs the decoder over a latent tensor and returns the raw audio
// tensor.
func (e *Engine) Decode(ctx context.Context, latent *Tensor) (*Tensor, error) {
	outputs, err := e.run(ctx, e.decoder, map[string]*Tensor{
		DecoderLatentInput: latent,
	})
	if err != nil {
		return nil, &InferenceError{Stage: "decoder", Err: err}
	}

	audio, ok := outputs[e.audioOutput]
	if !ok {
		return nil, &InferenceError{Stage: "decoder", Err: fmt.Errorf("output %q missing from results", e.audioOutput)}
	}

	return audio, nil
}

// Infer converts a padded token batch into the audio samples of the batch's
// first sequence: encoder to latent, latent to audio, then extraction of the
// [0,0] row of the rank-3 audio tensor.
func (e *Engine) Infer(ctx context.Context, tokens [][]int64, lengths []int64) ([]float32, error) {
	tokenTensor, lengthTensor, err := batchTensors(tokens, lengths)
	if err != nil {
		return nil, err
	}

	latent, err := e.Encode(ctx, tokenTensor, lengthTensor)
	if err != nil {
		return nil, err
	}

	audio, err := e.Decode(ctx, latent)
	if err != nil {
		return nil, err
	}

	samples, err := firstChannel(audio)
	if err != nil {
		return nil, &InferenceError{Stage: "decoder", Err: err}
	}

	return samples, nil
}

// Close releases both graph runners.
func (e *Engine) Close() {
	if e.encoder != nil {
		e.encoder.Close()
	}
	if e.decoder != nil {
		e.decoder.Close()
	}
}

func (e *Engine) run(ctx context.Context, runner GraphRunner, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if runner == nil {
		return nil, fmt.Errorf("graph runner is not configured")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return runner.Run(ctx, inputs)
}

// batchTensors shapes a padded token batch into the [B,T] token tensor and
// the [B] length tensor the encoder expects.
func batchTensors(tokens [][]int64, lengths []int64) (*Tensor, *Tensor, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("empty token batch")
	}
	if len(lengths) != len(tokens) {
		return nil, nil, fmt.Errorf("lengths count %d does not match batch size %d", len(lengths), len(tokens))
	}

	width := len(tokens[0])
	flat := make([]int64, 0, len(tokens)*width)
	for i, row := range tokens {
		if len(row) != width {
			return nil, nil, fmt.Errorf("token row %d has length %d, batch is padded to %d", i, len(row), width)
		}
		flat = append(flat, row...)
	}

	tokenTensor, err := NewTensor(flat, []int64{int64(len(tokens)), int64(width)})
	if err != nil {
		return nil, nil, fmt.Errorf("token tensor: %w", err)
	}

	lengthTensor, err := NewTensor(lengths, []int64{int64(len(lengths))})
	if err != nil {
		return nil, nil, fmt.Errorf("length tensor: %w", err)
	}

	return tokenTensor, lengthTensor, nil
}

// firstChannel extracts the [0,0] row of a rank-3 [B,C,T] audio tensor as a
// flat sample sequence.
func firstChannel(audio *Tensor) ([]float32, error) {
	shape := audio.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("audio tensor must be rank 3, got shape %v", shape)
	}

	data, err := ExtractFloat32(audio)
	if err != nil {
		return nil, err
	}

	n := int(shape[2])
	if n > len(data) {
		return nil, fmt.Errorf("audio tensor shape %v inconsistent with %d elements", shape, len(data))
	}

	return data[:n], nil
}
