package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/go-nix-tts/internal/audio"
	"github.com/example/go-nix-tts/internal/bench"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      bench.Stats
	}{
		{
			name:      "three runs",
			durations: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond},
			want: bench.Stats{
				Min:  100 * time.Millisecond,
				Max:  300 * time.Millisecond,
				Mean: 200 * time.Millisecond,
			},
		},
		{
			name:      "single run collapses min max mean",
			durations: []time.Duration{150 * time.Millisecond},
			want: bench.Stats{
				Min:  150 * time.Millisecond,
				Max:  150 * time.Millisecond,
				Mean: 150 * time.Millisecond,
			},
		},
		{
			name: "empty input yields zero stats",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := bench.ComputeStats(tc.durations); got != tc.want {
				t.Errorf("ComputeStats(%v) = %+v, want %+v", tc.durations, got, tc.want)
			}
		})
	}
}

func TestCalcRTF(t *testing.T) {
	// 1 second of audio synthesised in 500ms is half realtime.
	if rtf := bench.CalcRTF(500*time.Millisecond, time.Second); rtf < 0.499 || rtf > 0.501 {
		t.Errorf("want RTF near 0.5, got %.4f", rtf)
	}

	if rtf := bench.CalcRTF(500*time.Millisecond, 0); rtf != 0 {
		t.Errorf("zero audio duration must give RTF 0, got %.4f", rtf)
	}
}

func TestMeanRTF(t *testing.T) {
	runs := []bench.RunResult{{RTF: 0.5}, {RTF: 1.5}}
	if got := bench.MeanRTF(runs); got != 1.0 {
		t.Errorf("want mean RTF 1.0, got %.4f", got)
	}

	if got := bench.MeanRTF(nil); got != 0 {
		t.Errorf("want 0 for no runs, got %.4f", got)
	}
}

func TestWAVDuration(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		rate    int
		want    time.Duration
	}{
		{"one second at 22050", 22050, 22050, time.Second},
		{"half second at 16000", 8000, 16000, 500 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wavBytes, err := audio.EncodeWAV(make([]float32, tc.samples), tc.rate)
			if err != nil {
				t.Fatalf("EncodeWAV: %v", err)
			}

			dur, err := bench.WAVDuration(wavBytes)
			if err != nil {
				t.Fatalf("WAVDuration: %v", err)
			}

			diff := dur - tc.want
			if diff < 0 {
				diff = -diff
			}
			if diff > time.Millisecond {
				t.Errorf("want %v audio duration, got %v", tc.want, dur)
			}
		})
	}
}

func shortClip(t *testing.T) []byte {
	t.Helper()

	wavBytes, err := audio.EncodeWAV(make([]float32, 2205), 22050)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	return wavBytes
}

func TestMeasure_MarksOnlyFirstRunCold(t *testing.T) {
	clip := shortClip(t)

	var calls int
	synth := bench.SynthesizerFunc(func(_ context.Context, text string) ([]byte, error) {
		calls++
		if text != "hello world" {
			t.Errorf("synthesizer received %q; want hello world", text)
		}
		return clip, nil
	})

	results, err := bench.Measure(context.Background(), synth, bench.MeasureOptions{
		Text: "hello world",
		Runs: 3,
	})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	if calls != 3 || len(results) != 3 {
		t.Fatalf("got %d calls and %d results, want 3 and 3", calls, len(results))
	}

	for i, r := range results {
		if r.Cold != (i == 0) {
			t.Errorf("run %d: Cold=%v, want %v", i, r.Cold, i == 0)
		}
		if r.Duration <= 0 {
			t.Errorf("run %d: expected positive wall time", i)
		}
		if r.WAVDuration != 100*time.Millisecond {
			t.Errorf("run %d: expected 100ms audio duration, got %v", i, r.WAVDuration)
		}
	}
}

func TestMeasure_FailedRunNamesItself(t *testing.T) {
	boom := errors.New("engine exploded")
	synth := bench.SynthesizerFunc(func(context.Context, string) ([]byte, error) {
		return nil, boom
	})

	_, err := bench.Measure(context.Background(), synth, bench.MeasureOptions{Text: "hello", Runs: 2})
	if !errors.Is(err, boom) {
		t.Fatalf("expected synthesis error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "run 1") {
		t.Errorf("error should name the failed run: %v", err)
	}
}

func TestMeasure_BadWAVWarnsButContinues(t *testing.T) {
	synth := bench.SynthesizerFunc(func(context.Context, string) ([]byte, error) {
		return []byte("not a wav"), nil
	})

	var warnings strings.Builder

	results, err := bench.Measure(context.Background(), synth, bench.MeasureOptions{
		Text:   "hello",
		Runs:   1,
		Stderr: &warnings,
	})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	if results[0].WAVDuration != 0 || results[0].RTF != 0 {
		t.Errorf("unparsable clip should yield zero audio duration and RTF, got %v / %.3f",
			results[0].WAVDuration, results[0].RTF)
	}
	if !strings.Contains(warnings.String(), "warn") {
		t.Errorf("expected a warning on stderr, got: %q", warnings.String())
	}
}

func TestMeasure_RejectsZeroRuns(t *testing.T) {
	synth := bench.SynthesizerFunc(func(context.Context, string) ([]byte, error) {
		t.Fatal("synthesizer should not be called")
		return nil, nil
	})

	if _, err := bench.Measure(context.Background(), synth, bench.MeasureOptions{Text: "hello"}); err == nil {
		t.Fatal("expected error for zero runs")
	}
}

func TestCheckRTFThreshold(t *testing.T) {
	tests := []struct {
		name      string
		mean      float64
		threshold float64
		wantErr   bool
	}{
		{"over threshold fails", 1.5, 1.0, true},
		{"under threshold passes", 0.8, 1.0, false},
		{"exact threshold passes", 1.0, 1.0, false},
		{"zero threshold disables gate", 9999, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := bench.CheckRTFThreshold(tc.mean, tc.threshold)
			if (err != nil) != tc.wantErr {
				t.Errorf("CheckRTFThreshold(%.1f, %.1f) = %v, wantErr=%v", tc.mean, tc.threshold, err, tc.wantErr)
			}
		})
	}
}

func sampleRuns() ([]bench.RunResult, bench.Stats) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, RTF: 0.8, WAVDuration: time.Second},
		{Index: 1, Cold: false, Duration: 500 * time.Millisecond, RTF: 0.5, WAVDuration: time.Second},
	}

	return runs, bench.ComputeStats([]time.Duration{800 * time.Millisecond, 500 * time.Millisecond})
}

func TestFormatTable_ContainsColumnHeaders(t *testing.T) {
	runs, stats := sampleRuns()

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := strings.ToLower(buf.String())

	for _, want := range []string{"run", "cold", "synth(ms)", "audio(ms)", "rtf"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFormatJSON_RoundTrips(t *testing.T) {
	runs, stats := sampleRuns()

	var buf bytes.Buffer
	bench.FormatJSON(runs, stats, &buf)

	var report struct {
		Runs []struct {
			Cold bool    `json:"cold"`
			RTF  float64 `json:"rtf"`
		} `json:"runs"`
		Stats struct {
			MeanMS float64 `json:"mean_ms"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(report.Runs) != 2 || !report.Runs[0].Cold || report.Runs[0].RTF != 0.8 {
		t.Errorf("unexpected runs in JSON report: %+v", report.Runs)
	}
	if report.Stats.MeanMS != 650 {
		t.Errorf("want mean 650ms in JSON report, got %.1f", report.Stats.MeanMS)
	}
}
