package audio

import (
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// Output container format. The sample rate is the caller's choice; the nix
// models are trained at 22050 Hz.
const (
	DefaultSampleRate = 22050
	NumChannels       = 1
	BitDepth          = 16
)

// EncodeWAV encodes float32 PCM samples as a mono 16-bit WAV byte slice at
// the given sample rate.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	// wav.NewEncoder needs an io.WriteSeeker to patch chunk sizes on Close.
	sw := &seekBuffer{}

	enc := wav.NewEncoder(sw, sampleRate, BitDepth, NumChannels, 1) // 1 = PCM

	pcm := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: NumChannels},
		SourceBitDepth: BitDepth,
	}

	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return sw.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker. Seeking past the end grows the
// buffer with zeros on the next write.
type seekBuffer struct {
	data []byte
	pos  int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.data) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}

	copy(s.data[s.pos:end], p)
	s.pos = end

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int

	switch whence {
	case io.SeekStart:
		pos = int(offset)
	case io.SeekCurrent:
		pos = s.pos + int(offset)
	case io.SeekEnd:
		pos = len(s.data) + int(offset)
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if pos < 0 {
		return 0, fmt.Errorf("seek before start")
	}
	s.pos = pos

	return int64(pos), nil
}
