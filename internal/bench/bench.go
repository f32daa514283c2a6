// Package bench measures synthesis latency and realtime factor for the
// nixtts bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-nix-tts/internal/audio"
)

// RunResult holds the timing and audio metadata for a single synthesis run.
type RunResult struct {
	Index       int
	Cold        bool // first run pays session warm-up
	Duration    time.Duration
	WAVDuration time.Duration
	RTF         float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	s := Stats{Min: durations[0], Max: durations[0]}

	var total time.Duration
	for _, d := range durations {
		total += d
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	s.Mean = total / time.Duration(len(durations))

	return s
}

// Synthesizer produces one WAV clip for a text input.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesizerFunc adapts a plain function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text string) ([]byte, error)

// Synthesize implements Synthesizer.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f(ctx, text)
}

// MeasureOptions configures Measure.
type MeasureOptions struct {
	Text string
	Runs int
	// Stderr receives non-fatal warnings. Nil discards them.
	Stderr io.Writer
}

// Measure synthesizes the same text Runs times and captures per-run wall
// times. Run 0 is marked cold. A clip whose WAV container cannot be parsed
// only costs its audio duration and RTF, not the whole measurement.
func Measure(ctx context.Context, synth Synthesizer, opts MeasureOptions) ([]RunResult, error) {
	if opts.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", opts.Runs)
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	results := make([]RunResult, 0, opts.Runs)

	for i := range opts.Runs {
		r, err := measureOne(ctx, synth, opts.Text, i, stderr)
		if err != nil {
			return nil, err
		}

		results = append(results, r)
	}

	return results, nil
}

func measureOne(ctx context.Context, synth Synthesizer, text string, i int, stderr io.Writer) (RunResult, error) {
	start := time.Now()

	wavBytes, err := synth.Synthesize(ctx, text)
	if err != nil {
		return RunResult{}, fmt.Errorf("run %d failed: %w", i+1, err)
	}

	elapsed := time.Since(start)

	audioDur, err := WAVDuration(wavBytes)
	if err != nil {
		fmt.Fprintf(stderr, "warn: run %d: could not parse WAV duration: %v\n", i+1, err)
	}

	return RunResult{
		Index:       i,
		Cold:        i == 0,
		Duration:    elapsed,
		WAVDuration: audioDur,
		RTF:         CalcRTF(elapsed, audioDur),
	}, nil
}

// CalcRTF returns synthesis wall time divided by audio playback time, or 0
// when the audio duration is unknown.
func CalcRTF(synthDur, audioDur time.Duration) float64 {
	if audioDur <= 0 {
		return 0
	}

	return float64(synthDur) / float64(audioDur)
}

// MeanRTF averages the per-run realtime factors.
func MeanRTF(runs []RunResult) float64 {
	if len(runs) == 0 {
		return 0
	}

	var total float64
	for _, r := range runs {
		total += r.RTF
	}

	return total / float64(len(runs))
}

// WAVDuration returns the playback duration of an encoded WAV clip, using
// the sample rate declared in the container.
func WAVDuration(wavBytes []byte) (time.Duration, error) {
	samples, rate, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		return 0, err
	}
	if rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", rate)
	}

	return time.Duration(int64(len(samples)) * int64(time.Second) / int64(rate)), nil
}

// CheckRTFThreshold returns an error if meanRTF > threshold. A threshold of
// 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold > 0 && meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}

	return nil
}

// FormatTable writes a human-readable table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	const rule = 48

	fmt.Fprintf(w, "%-5s  %-5s  %10s  %12s  %8s\n", "Run", "Cold", "Synth(ms)", "Audio(ms)", "RTF")
	fmt.Fprintln(w, strings.Repeat("-", rule))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		fmt.Fprintf(w, "%-5d  %-5s  %10.1f  %12.1f  %8.3f\n",
			r.Index+1, cold, millis(r.Duration), millis(r.WAVDuration), r.RTF)
	}

	fmt.Fprintln(w, strings.Repeat("-", rule))

	for _, row := range []struct {
		label string
		value time.Duration
	}{
		{"min", stats.Min},
		{"mean", stats.Mean},
		{"max", stats.Max},
	} {
		fmt.Fprintf(w, "%-5s  %-5s  %10.1f  %12s  %8s  (%s)\n", "", "", millis(row.value), "", "", row.label)
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	AudioMS    float64 `json:"audio_ms"`
	RTF        float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a machine-readable report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	report := struct {
		Runs  []jsonRun `json:"runs"`
		Stats jsonStats `json:"stats"`
	}{
		Runs: make([]jsonRun, 0, len(runs)),
		Stats: jsonStats{
			MinMS:  millis(stats.Min),
			MeanMS: millis(stats.Mean),
			MaxMS:  millis(stats.Max),
		},
	}

	for _, r := range runs {
		report.Runs = append(report.Runs, jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: millis(r.Duration),
			AudioMS:    millis(r.WAVDuration),
			RTF:        r.RTF,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
