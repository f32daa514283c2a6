package audio

import "math"

// Hook transforms an assembled sample buffer in place and returns it.
type Hook func(samples []float32) []float32

// ApplyHooks runs hooks over samples in order.
func ApplyHooks(samples []float32, hooks ...Hook) []float32 {
	out := samples
	for _, hook := range hooks {
		out = hook(out)
	}

	return out
}

// PeakNormalize scales samples so the peak amplitude reaches 1.0. Silent
// input is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}

	scale := 1 / peak
	for i := range samples {
		samples[i] *= scale
	}

	return samples
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampSamples(len(samples), sampleRate, ms)
	for i := 0; i < n; i++ {
		samples[i] *= float32(i) / float32(n)
	}

	return samples
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampSamples(len(samples), sampleRate, ms)
	last := len(samples) - 1
	for i := 0; i < n; i++ {
		samples[last-i] *= float32(i) / float32(n)
	}

	return samples
}

// rampSamples converts a millisecond duration to a sample count clamped to
// the buffer length.
func rampSamples(total, sampleRate int, ms float64) int {
	if sampleRate < 1 || ms <= 0 {
		return 0
	}

	n := int(math.Round(float64(sampleRate) * ms / 1000))
	if n > total {
		n = total
	}

	return n
}
