package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/example/go-nix-tts/internal/audio"
	"github.com/example/go-nix-tts/internal/bench"
	"github.com/example/go-nix-tts/internal/tts"
	"github.com/spf13/cobra"
)

type benchFlags struct {
	text         string
	modelID      string
	runs         int
	format       string
	rtfThreshold float64
	cpuProfile   string
}

func (f benchFlags) validate() error {
	switch {
	case strings.TrimSpace(f.text) == "":
		return fmt.Errorf("--text is required for bench")
	case f.runs < 1:
		return fmt.Errorf("--runs must be at least 1")
	case f.format != "table" && f.format != "json":
		return fmt.Errorf("--format must be 'table' or 'json'")
	}

	return nil
}

func newBenchCmd() *cobra.Command {
	var flags benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.text, "text", "", "Text to synthesize for each run (required)")
	cmd.Flags().StringVar(&flags.modelID, "model", "", "Model ID from the models registry (overrides --model-dir)")
	cmd.Flags().IntVar(&flags.runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&flags.format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&flags.rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")
	cmd.Flags().StringVar(&flags.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")

	return cmd
}

func runBench(ctx context.Context, flags benchFlags) error {
	if err := flags.validate(); err != nil {
		return err
	}

	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	if cfg.Paths.ModelDir, err = resolveModelDir(cfg, flags.modelID); err != nil {
		return err
	}

	conv, err := tts.NewConverter(cfg)
	if err != nil {
		return err
	}
	defer conv.Close()

	if flags.cpuProfile != "" {
		stop, err := startCPUProfile(flags.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	results, err := bench.Measure(ctx, benchSynthesizer{conv: conv}, bench.MeasureOptions{
		Text:   flags.text,
		Runs:   flags.runs,
		Stderr: os.Stderr,
	})
	if err != nil {
		return err
	}

	durations := make([]time.Duration, len(results))
	for i, r := range results {
		durations[i] = r.Duration
	}
	stats := bench.ComputeStats(durations)

	if flags.format == "json" {
		bench.FormatJSON(results, stats, os.Stdout)
	} else {
		bench.FormatTable(results, stats, os.Stdout)
	}

	return bench.CheckRTFThreshold(bench.MeanRTF(results), flags.rtfThreshold)
}

func startCPUProfile(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

// benchSynthesizer adapts a converter to the measurement loop, timing the
// full text-to-WAV path including encoding.
type benchSynthesizer struct {
	conv *tts.Converter
}

func (s benchSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	samples, err := s.conv.Convert(ctx, text)
	if err != nil {
		return nil, err
	}

	return audio.EncodeWAV(samples, s.conv.SampleRate())
}
