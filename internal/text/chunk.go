package text

import "strings"

// ChunkBySentence splits normalized text into synthesis chunks of at most
// maxChars characters, measured on the fragment text without the trailing
// period each finished chunk receives.
//
// The text is first split on the literal delimiter ". ". Fragments are
// trimmed, stripped of a sentence-final period, and greedily packed: when
// adding a fragment would push the running size over maxChars, the
// accumulated fragments are flushed as one chunk (joined with ". " and
// terminated with "."). A single fragment longer than maxChars is split at
// word boundaries instead and its pieces are emitted immediately; the
// accumulator is not flushed by that case.
//
// Empty input yields no chunks. The size bound is best-effort: a single word
// longer than maxChars still forms its own chunk.
func ChunkBySentence(text string, maxChars int) []string {
	var chunks []string
	var current []string
	currentSize := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, ". ")+".")
		current = nil
		currentSize = 0
	}

	for _, fragment := range strings.Split(text, ". ") {
		fragment = strings.TrimSpace(fragment)
		fragment = strings.TrimSuffix(fragment, ".")
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}

		if len(fragment) > maxChars {
			chunks = append(chunks, splitLongSentence(fragment, maxChars)...)
			continue
		}

		if currentSize+len(fragment) > maxChars && len(current) > 0 {
			flush()
		}
		current = append(current, fragment)
		currentSize += len(fragment)
	}
	flush()

	return chunks
}

// splitLongSentence breaks an oversized sentence at word boundaries into
// chunks of at most maxChars characters, counting one separator character per
// word already in the sub-chunk. Words are joined with single spaces and each
// emitted chunk is terminated with ".". A word longer than maxChars becomes
// its own chunk.
func splitLongSentence(sentence string, maxChars int) []string {
	var chunks []string
	var current []string
	currentSize := 0

	for _, word := range strings.Fields(sentence) {
		if currentSize+len(word) > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " ")+".")
			current = []string{word}
			currentSize = len(word)
		} else {
			current = append(current, word)
			currentSize += len(word) + 1
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " ")+".")
	}

	return chunks
}
