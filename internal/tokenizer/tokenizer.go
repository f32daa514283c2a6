// Package tokenizer converts chunk text into padded phoneme-token batches
// for the acoustic encoder. Text is lowercased, abbreviation rules are
// applied in order, the result is phonemized by an external backend, and
// each phoneme symbol is mapped through the vocabulary, interspersed with
// the pad token, and right-padded to the batch maximum length.
package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PadID is the token value used for interspersion and right-padding.
const PadID int64 = 0

// ErrEmptyText is returned when a text is empty after trimming. An empty
// chunk reaching the tokenizer indicates an upstream chunking bug or
// pathological input, so it fails the conversion instead of being skipped.
var ErrEmptyText = errors.New("text is empty")

// ErrUnknownPhoneme is returned when the phonemizer produces a symbol with
// no vocabulary entry. The symbol is never dropped; dropping it would
// silently desynchronize audio and text.
var ErrUnknownPhoneme = errors.New("phoneme not in vocabulary")

// Phonemizer converts text to a phoneme string. Implementations wrap an
// external backend and are treated as pure functions of their input.
type Phonemizer interface {
	Phonemize(ctx context.Context, text string) (string, error)
}

// Batch is the tokenizer output for texts processed together. Every row of
// Tokens has the same length (the batch maximum before padding); Lengths
// holds the true pre-pad length of each row.
type Batch struct {
	Tokens   [][]int64
	Lengths  []int64
	Phonemes []string
}

// Tokenizer turns chunk text into encoder-ready token sequences using a
// loaded State and an injected Phonemizer.
type Tokenizer struct {
	state *State
	ph    Phonemizer
}

// New returns a Tokenizer over the given state and phonemizer backend.
func New(state *State, ph Phonemizer) *Tokenizer {
	return &Tokenizer{state: state, ph: ph}
}

// Tokenize converts texts into a padded token batch. It fails on empty
// post-trim text, on phonemizer errors, and on phonemes missing from the
// vocabulary; no input is ever partially tokenized.
func (t *Tokenizer) Tokenize(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to tokenize")
	}

	sequences := make([][]int64, len(texts))
	phonemes := make([]string, len(texts))

	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}

		expanded := t.state.ExpandAbbreviations(strings.ToLower(trimmed))

		phoneme, err := t.ph.Phonemize(ctx, expanded)
		if err != nil {
			return nil, fmt.Errorf("text %d: phonemize: %w", i, err)
		}
		phoneme = t.state.CollapseWhitespace(phoneme)
		phonemes[i] = phoneme

		ids, err := t.lookup(phoneme)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		sequences[i] = intersperse(ids, PadID)
	}

	tokens, lengths := padBatch(sequences)

	return &Batch{Tokens: tokens, Lengths: lengths, Phonemes: phonemes}, nil
}

// lookup maps every phoneme symbol of the string to its vocabulary id.
func (t *Tokenizer) lookup(phoneme string) ([]int64, error) {
	ids := make([]int64, 0, utf8.RuneCountInString(phoneme))

	pos := 0
	for _, r := range phoneme {
		id, ok := t.state.TokenID(string(r))
		if !ok {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownPhoneme, r, pos)
		}
		ids = append(ids, id)
		pos++
	}

	return ids, nil
}

// intersperse places item at every even index of the result, with the input
// tokens at the odd indices. For n input tokens the result has length 2n+1.
func intersperse(ids []int64, item int64) []int64 {
	out := make([]int64, 2*len(ids)+1)
	for i := range out {
		out[i] = item
	}
	for i, id := range ids {
		out[2*i+1] = id
	}

	return out
}

// padBatch right-pads every sequence with PadID to the batch maximum length
// and reports the original lengths.
func padBatch(sequences [][]int64) ([][]int64, []int64) {
	maxLen := 0
	for _, seq := range sequences {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}

	tokens := make([][]int64, len(sequences))
	lengths := make([]int64, len(sequences))
	for i, seq := range sequences {
		lengths[i] = int64(len(seq))

		row := make([]int64, maxLen)
		copy(row, seq)
		for j := len(seq); j < maxLen; j++ {
			row[j] = PadID
		}
		tokens[i] = row
	}

	return tokens, lengths
}
