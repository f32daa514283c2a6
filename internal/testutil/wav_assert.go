package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// wavHeader holds the fmt-chunk fields of a WAV clip plus its data chunk
// size, parsed from the raw container bytes so assertions stay independent
// of the encoder under test.
type wavHeader struct {
	format     uint16
	channels   uint16
	sampleRate uint32
	bitDepth   uint16
	dataBytes  uint32
}

func parseWAVHeader(data []byte) (wavHeader, error) {
	if len(data) < 44 {
		return wavHeader{}, errors.New("container shorter than a minimal WAV header")
	}

	for off, want := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt "} {
		if got := string(data[off : off+4]); got != want {
			return wavHeader{}, errors.New("missing " + want + " marker, got " + got)
		}
	}

	h := wavHeader{
		format:     binary.LittleEndian.Uint16(data[20:22]),
		channels:   binary.LittleEndian.Uint16(data[22:24]),
		sampleRate: binary.LittleEndian.Uint32(data[24:28]),
		bitDepth:   binary.LittleEndian.Uint16(data[34:36]),
	}

	// Walk the chunk list for the data sub-chunk; chunks pad to even sizes.
	off := 12
	for off+8 <= len(data) {
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if string(data[off:off+4]) == "data" {
			h.dataBytes = size
			return h, nil
		}
		off += 8 + int(size) + int(size%2)
	}

	return wavHeader{}, errors.New("data chunk not found")
}

// AssertValidWAV checks that data is a valid PCM WAV clip in the pipeline's
// output format: the given sample rate, mono, 16-bit depth, and a non-zero
// sample count.
func AssertValidWAV(tb testing.TB, data []byte, wantRate int) {
	tb.Helper()

	h, err := parseWAVHeader(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if h.format != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", h.format)
	}
	if h.channels != 1 {
		tb.Fatalf("WAV: expected mono (1 channel), got %d", h.channels)
	}
	if h.sampleRate != uint32(wantRate) {
		tb.Fatalf("WAV: expected sample rate %d, got %d", wantRate, h.sampleRate)
	}
	if h.bitDepth != 16 {
		tb.Fatalf("WAV: expected 16-bit depth, got %d", h.bitDepth)
	}
	if h.dataBytes/2 == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertWAVDurationApprox asserts that the WAV audio duration falls within
// [minSec, maxSec]. The sample rate is read from the fmt chunk.
func AssertWAVDurationApprox(tb testing.TB, data []byte, minSec, maxSec float64) {
	tb.Helper()

	h, err := parseWAVHeader(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}
	if h.sampleRate == 0 {
		tb.Fatal("WAV duration check: zero sample rate in fmt chunk")
	}

	durationSec := float64(h.dataBytes/2) / float64(h.sampleRate)
	if durationSec < minSec || durationSec > maxSec {
		tb.Fatalf("WAV duration %.3fs out of expected range [%.3fs, %.3fs]", durationSec, minSec, maxSec)
	}
}
