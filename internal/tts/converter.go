// Package tts drives the text to speech pipeline: text normalization,
// sentence chunking, tokenization, ONNX inference, and audio assembly.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-nix-tts/internal/audio"
	"github.com/example/go-nix-tts/internal/config"
	"github.com/example/go-nix-tts/internal/onnx"
	"github.com/example/go-nix-tts/internal/phoneme"
	"github.com/example/go-nix-tts/internal/text"
	"github.com/example/go-nix-tts/internal/tokenizer"
)

// ErrNothingToSynthesize is returned when the input text yields no chunks.
var ErrNothingToSynthesize = errors.New("nothing to synthesize")

// Engine is the inference surface the converter drives.
type Engine interface {
	Infer(ctx context.Context, tokens [][]int64, lengths []int64) ([]float32, error)
	Close()
}

// Options tune one converter. Zero chunk size, sample rate, and concurrency
// fall back to the pipeline defaults (50 characters, 22050 Hz, sequential);
// a zero silence duration means no inter-chunk silence.
type Options struct {
	ChunkSize       int
	SampleRate      int
	SilenceDuration float64
	Concurrency     int
	Hooks           []audio.Hook
}

func (o Options) withDefaults() Options {
	if o.ChunkSize < 1 {
		o.ChunkSize = 50
	}
	if o.SampleRate < 1 {
		o.SampleRate = audio.DefaultSampleRate
	}
	if o.SilenceDuration < 0 {
		o.SilenceDuration = 0
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

// Converter owns the chunk-to-audio pipeline.
type Converter struct {
	tok    *tokenizer.Tokenizer
	engine Engine
	opts   Options
}

// NewConverter wires a converter from config: tokenizer state and ONNX
// engine from the model directory, espeak-ng as the phonemizer. Hooks are
// applied to the assembled buffer in order.
func NewConverter(cfg config.Config, hooks ...audio.Hook) (*Converter, error) {
	state, err := tokenizer.LoadState(filepath.Join(cfg.Paths.ModelDir, tokenizer.StateFileName))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer state: %w", err)
	}

	ph := phoneme.NewEspeakBackend(phoneme.EspeakConfig{
		Path:  cfg.Phoneme.EspeakPath,
		Voice: cfg.TTS.Language,
	})

	engine, err := onnx.NewEngine(cfg.Paths.ModelDir, cfg.Runtime)
	if err != nil {
		return nil, err
	}

	return New(tokenizer.New(state, ph), engine, Options{
		ChunkSize:       cfg.TTS.ChunkSize,
		SampleRate:      cfg.TTS.SampleRate,
		SilenceDuration: cfg.TTS.SilenceDuration,
		Concurrency:     cfg.TTS.Concurrency,
		Hooks:           hooks,
	}), nil
}

// New builds a converter from explicit collaborators.
func New(tok *tokenizer.Tokenizer, engine Engine, opts Options) *Converter {
	return &Converter{
		tok:    tok,
		engine: engine,
		opts:   opts.withDefaults(),
	}
}

// SampleRate returns the output sample rate in Hz.
func (c *Converter) SampleRate() int {
	return c.opts.SampleRate
}

// Convert synthesizes input into one assembled sample buffer. Chunks are
// synthesized up to Concurrency at a time but always assembled in chunk
// order; the first chunk failure cancels the rest and fails the whole
// conversion.
func (c *Converter) Convert(ctx context.Context, input string) ([]float32, error) {
	normalized := text.Normalize(input)

	chunks := text.ChunkBySentence(normalized, c.opts.ChunkSize)
	if len(chunks) == 0 {
		return nil, ErrNothingToSynthesize
	}

	slog.Info("synthesizing",
		"chunks", len(chunks),
		"chunk_size", c.opts.ChunkSize,
		"concurrency", c.opts.Concurrency,
	)

	segments := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			samples, err := c.synthesizeChunk(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d of %d (%q): %w", i+1, len(chunks), chunkPrefix(chunk), err)
			}

			segments[i] = samples
			slog.Info("chunk synthesized",
				"chunk", i+1,
				"total", len(chunks),
				"samples", len(samples),
				"text", chunkPrefix(chunk),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := audio.Assemble(segments, c.opts.SampleRate, c.opts.SilenceDuration)
	if len(c.opts.Hooks) > 0 {
		out = audio.ApplyHooks(out, c.opts.Hooks...)
	}

	return out, nil
}

// chunkPrefix returns at most the first 50 runes of chunk, enough to
// identify the offending text in logs and errors.
func chunkPrefix(chunk string) string {
	const max = 50
	runes := []rune(chunk)
	if len(runes) <= max {
		return chunk
	}
	return string(runes[:max])
}

func (c *Converter) synthesizeChunk(ctx context.Context, chunk string) ([]float32, error) {
	batch, err := c.tok.Tokenize(ctx, []string{chunk})
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	return c.engine.Infer(ctx, batch.Tokens, batch.Lengths)
}

// ConvertFile reads text from inPath, synthesizes it, and writes a WAV file
// to outPath. The output is written atomically; no file is left behind on
// failure.
func (c *Converter) ConvertFile(ctx context.Context, inPath, outPath string) error {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	samples, err := c.Convert(ctx, string(raw))
	if err != nil {
		return err
	}

	data, err := audio.EncodeWAV(samples, c.opts.SampleRate)
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}

	if err := audio.WriteFile(outPath, data); err != nil {
		return err
	}

	slog.Info("wrote output", "path", outPath, "samples", len(samples), "bytes", len(data))
	return nil
}

// Close releases the underlying inference engine.
func (c *Converter) Close() {
	if c.engine != nil {
		c.engine.Close()
	}
}
