package audio

import "math"

// SilenceSamples returns the number of zero samples covering the given
// duration, rounded to the nearest sample.
func SilenceSamples(sampleRate int, seconds float64) int {
	if sampleRate < 1 || seconds <= 0 {
		return 0
	}

	return int(math.Round(float64(sampleRate) * seconds))
}

// Assemble concatenates audio segments in order, appending the configured
// silence after every segment including the last. The segments themselves
// are never modified.
func Assemble(segments [][]float32, sampleRate int, silenceSeconds float64) []float32 {
	pad := SilenceSamples(sampleRate, silenceSeconds)

	total := 0
	for _, seg := range segments {
		total += len(seg) + pad
	}

	out := make([]float32, 0, total)
	for _, seg := range segments {
		out = append(out, seg...)
		// The backing array is zeroed by make, so growing within capacity
		// appends pad zero samples.
		out = out[:len(out)+pad]
	}

	return out
}
