package phoneme

import (
	"context"
	"fmt"
)

// Static is a deterministic phonemizer for tests: it maps exact input text
// to a fixed phoneme string and fails on anything unmapped.
type Static struct {
	Mapping map[string]string
}

// Phonemize returns the mapped phoneme string for text.
func (s *Static) Phonemize(_ context.Context, text string) (string, error) {
	ph, ok := s.Mapping[text]
	if !ok {
		return "", fmt.Errorf("static phonemizer: no mapping for %q", text)
	}

	return ph, nil
}
