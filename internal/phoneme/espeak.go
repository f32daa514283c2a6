// Package phoneme provides phonemizer backends for the tokenizer. The
// production backend shells out to espeak-ng; Static serves tests.
package phoneme

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// DefaultVoice is the espeak-ng voice used when none is configured.
const DefaultVoice = "en-us"

// DefaultExecutable is the espeak-ng binary name resolved via PATH.
const DefaultExecutable = "espeak-ng"

// punctuationRun matches runs of punctuation marks that must survive
// phonemization. espeak-ng drops punctuation, so the text is phonemized
// around the marks and they are reinserted afterwards.
var punctuationRun = regexp.MustCompile(`[;:,.!?¡¿…"«»“”]+`)

// EspeakConfig configures the espeak-ng backend.
type EspeakConfig struct {
	// Path to the espeak-ng executable. Defaults to DefaultExecutable.
	Path string
	// Voice passed via -v. Defaults to DefaultVoice.
	Voice string
}

// EspeakBackend phonemizes text by invoking the espeak-ng binary with IPA
// output. Stress marks are part of espeak's IPA output and are kept.
type EspeakBackend struct {
	path  string
	voice string

	// run invokes espeak-ng on punctuation-free text. Tests may replace it.
	run func(ctx context.Context, text string) (string, error)
}

// NewEspeakBackend returns a backend for the given config, applying
// defaults for unset fields. The binary is not probed here; a missing
// executable surfaces on first use (or via Version).
func NewEspeakBackend(cfg EspeakConfig) *EspeakBackend {
	if cfg.Path == "" {
		cfg.Path = DefaultExecutable
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}

	b := &EspeakBackend{path: cfg.Path, voice: cfg.Voice}
	b.run = b.execEspeak

	return b
}

// Phonemize converts text to an IPA phoneme string, preserving punctuation
// marks in their original order and trimming surrounding whitespace.
func (b *EspeakBackend) Phonemize(ctx context.Context, text string) (string, error) {
	var out strings.Builder

	rest := text
	for rest != "" {
		var piece, marks string

		loc := punctuationRun.FindStringIndex(rest)
		if loc == nil {
			piece, rest = rest, ""
		} else {
			piece, marks = rest[:loc[0]], rest[loc[0]:loc[1]]
			rest = rest[loc[1]:]
		}

		piece = strings.TrimSpace(piece)
		if piece != "" {
			ph, err := b.run(ctx, piece)
			if err != nil {
				return "", err
			}
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(ph)
		}
		out.WriteString(marks)
	}

	return strings.TrimSpace(out.String()), nil
}

// execEspeak runs the espeak-ng binary on one punctuation-free piece of
// text and returns its IPA output with line breaks collapsed.
func (b *EspeakBackend) execEspeak(ctx context.Context, text string) (string, error) {
	cmd := exec.CommandContext(ctx, b.path, "-q", "--ipa", "-v", b.voice)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("espeak-ng: %w: %s", err, msg)
		}
		return "", fmt.Errorf("espeak-ng: %w", err)
	}

	return strings.Join(strings.Fields(stdout.String()), " "), nil
}

// Version reports the espeak-ng version string, probing that the binary is
// runnable. Used by doctor checks.
func (b *EspeakBackend) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, b.path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("espeak-ng version: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}
