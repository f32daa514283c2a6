package phoneme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/example/go-nix-tts/internal/testutil"
)

// fakeRun records the pieces handed to the espeak invocation and returns a
// canned transformation.
func fakeRun(calls *[]string, transform func(string) string) func(context.Context, string) (string, error) {
	return func(_ context.Context, text string) (string, error) {
		*calls = append(*calls, text)
		return transform(text), nil
	}
}

func TestPhonemize_PreservesPunctuation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "sentence-final period",
			text: "hello world.",
			want: "[hello world].",
		},
		{
			name: "marks between sentences",
			text: "hello world. this is a test.",
			want: "[hello world]. [this is a test].",
		},
		{
			name: "comma and question mark",
			text: "well, really?",
			want: "[well], [really]?",
		},
		{
			name: "no punctuation",
			text: "hello world",
			want: "[hello world]",
		},
		{
			name: "consecutive marks kept together",
			text: "wait... what",
			want: "[wait]... [what]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewEspeakBackend(EspeakConfig{})
			var calls []string
			b.run = fakeRun(&calls, func(s string) string { return "[" + s + "]" })

			got, err := b.Phonemize(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Phonemize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Phonemize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhonemize_SkipsEmptyPieces(t *testing.T) {
	b := NewEspeakBackend(EspeakConfig{})
	var calls []string
	b.run = fakeRun(&calls, func(s string) string { return s })

	got, err := b.Phonemize(context.Background(), "... hello.")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	if got != "... hello." {
		t.Errorf("Phonemize = %q, want %q", got, "... hello.")
	}
	if len(calls) != 1 || calls[0] != "hello" {
		t.Errorf("espeak invoked with %v, want exactly [hello]", calls)
	}
}

func TestPhonemize_BackendErrorPropagates(t *testing.T) {
	b := NewEspeakBackend(EspeakConfig{})
	wantErr := errors.New("boom")
	b.run = func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("espeak-ng: %w", wantErr)
	}

	_, err := b.Phonemize(context.Background(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped backend error", err)
	}
}

func TestNewEspeakBackend_Defaults(t *testing.T) {
	b := NewEspeakBackend(EspeakConfig{})
	if b.path != DefaultExecutable {
		t.Errorf("path = %q, want %q", b.path, DefaultExecutable)
	}
	if b.voice != DefaultVoice {
		t.Errorf("voice = %q, want %q", b.voice, DefaultVoice)
	}
}

func TestStatic(t *testing.T) {
	s := &Static{Mapping: map[string]string{"hello": "həloʊ"}}

	got, err := s.Phonemize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	if got != "həloʊ" {
		t.Errorf("Phonemize = %q, want %q", got, "həloʊ")
	}

	if _, err := s.Phonemize(context.Background(), "unmapped"); err == nil {
		t.Fatal("expected error for unmapped text")
	}
}

// ---------------------------------------------------------------------------
// Integration: requires a real espeak-ng binary on PATH.
// ---------------------------------------------------------------------------

func TestPhonemize_RealEspeak(t *testing.T) {
	testutil.RequireEspeak(t)

	b := NewEspeakBackend(EspeakConfig{})

	got, err := b.Phonemize(context.Background(), "hello world.")
	if err != nil {
		t.Fatalf("Phonemize: %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty phoneme output")
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("output %q should keep the trailing period", got)
	}
}
