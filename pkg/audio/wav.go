package audio

import (
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps float32 samples in a mono 16-bit PCM WAV container at the
// given sample rate. Used when a transcription backend (whisper-server's
// /inference endpoint) wants a self-describing file rather than raw PCM.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: encode wav: invalid sample rate %d", sampleRate)
	}

	ints := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		ints[i] = int(int16(s * 32767))
	}

	var ws memWriteSeeker
	enc := wav.NewEncoder(&ws, sampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finalise wav: %w", err)
	}
	return ws.data, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker. The wav encoder needs
// seeking to patch chunk sizes into the header on Close.
type memWriteSeeker struct {
	data []byte
	pos  int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.data) {
		grown := make([]byte, need)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("audio: wav seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("audio: wav seek: negative position %d", next)
	}
	m.pos = int(next)
	return next, nil
}
