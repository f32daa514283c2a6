package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// StateFileName is the fixed name of the tokenizer configuration artifact
// inside a model directory.
const StateFileName = "tokenizer.json"

// StateVersion is the artifact format version this package reads.
const StateVersion = 1

// Rule is one abbreviation-expansion rule. Pattern is a regular expression
// matched against lowercased text; every match is replaced by Replacement.
// Rules are applied in artifact order, each seeing the previous rule's
// output.
type Rule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// stateFile mirrors the on-disk JSON layout of the tokenizer artifact.
type stateFile struct {
	Version           int              `json:"version"`
	Vocab             map[string]int64 `json:"vocab"`
	Rules             []Rule           `json:"rules"`
	WhitespacePattern string           `json:"whitespace_pattern"`
}

type expansionRule struct {
	re          *regexp.Regexp
	replacement string
}

// State holds the tokenizer configuration for one model: the phoneme
// vocabulary, the ordered abbreviation rules, and the whitespace-collapsing
// pattern.
type State struct {
	vocab      map[string]int64
	rules      []expansionRule
	whitespace *regexp.Regexp
}

// NewState builds a State from its parts, compiling all patterns. The
// vocabulary must be non-empty and the whitespace pattern must be a valid
// regular expression.
func NewState(vocab map[string]int64, rules []Rule, whitespacePattern string) (*State, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("tokenizer state: empty vocabulary")
	}
	if whitespacePattern == "" {
		return nil, fmt.Errorf("tokenizer state: missing whitespace pattern")
	}

	ws, err := regexp.Compile(whitespacePattern)
	if err != nil {
		return nil, fmt.Errorf("tokenizer state: whitespace pattern: %w", err)
	}

	compiled := make([]expansionRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("tokenizer state: rule %d pattern %q: %w", i, r.Pattern, err)
		}
		compiled[i] = expansionRule{re: re, replacement: r.Replacement}
	}

	return &State{vocab: vocab, rules: compiled, whitespace: ws}, nil
}

// LoadState reads and validates a tokenizer artifact from path. Any missing
// file, malformed JSON, unsupported version, or invalid pattern is an
// initialization failure surfaced before processing starts.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer state: %w", err)
	}

	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse tokenizer state %s: %w", path, err)
	}
	if sf.Version != StateVersion {
		return nil, fmt.Errorf("tokenizer state %s: unsupported version %d (want %d)", path, sf.Version, StateVersion)
	}

	state, err := NewState(sf.Vocab, sf.Rules, sf.WhitespacePattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return state, nil
}

// TokenID returns the vocabulary id of a phoneme symbol.
func (s *State) TokenID(symbol string) (int64, bool) {
	id, ok := s.vocab[symbol]
	return id, ok
}

// VocabSize returns the number of entries in the vocabulary.
func (s *State) VocabSize() int {
	return len(s.vocab)
}

// ExpandAbbreviations applies the ordered expansion rules to text.
func (s *State) ExpandAbbreviations(text string) string {
	for _, r := range s.rules {
		text = r.re.ReplaceAllString(text, r.replacement)
	}

	return text
}

// CollapseWhitespace replaces every match of the whitespace pattern with a
// single space.
func (s *State) CollapseWhitespace(text string) string {
	return s.whitespace.ReplaceAllString(text, " ")
}
