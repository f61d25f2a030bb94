// Package audio provides the codec utilities and the per-session utterance
// accumulator used by the voxrelay pipeline.
//
// Audio travels the websocket as base64-encoded 16-bit signed little-endian
// PCM ("transport encoding"). Internally the pipeline works on float32
// samples normalised to [-1.0, 1.0]. The functions in this package convert
// between the two representations and measure signal level; they are pure and
// allocate only their return values.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeError describes a malformed transport payload. It is reported to the
// client as a recoverable error; the connection stays open.
type DecodeError struct {
	// Reason is a short human-readable description of what was wrong.
	Reason string

	// Err is the underlying error, if any (e.g. a base64 corruption error).
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio: decode transport: %s: %v", e.Reason, e.Err)
	}
	return "audio: decode transport: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeTransport converts float32 samples to the text-safe transport
// encoding: each sample is clamped to [-1, 1], scaled to the 16-bit signed
// range, packed little-endian, and base64-encoded.
//
// The conversion is deterministic and lossy (16-bit quantisation). Decoding
// the result with [DecodeTransport] reproduces the input within 1/32767 per
// sample.
func EncodeTransport(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// DecodeTransport is the inverse of [EncodeTransport]. It returns a
// *[DecodeError] if the payload is not valid base64 or decodes to an odd
// byte count.
func DecodeTransport(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return DecodePCM16(raw)
}

// DecodeFloat32Transport decodes a base64 payload of raw little-endian
// float32 samples. This is the dtype:"float32" path used by turn-detection
// probes, where the client sends its capture buffer without quantising first.
func DecodeFloat32Transport(encoded string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	if len(raw)%4 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("float32 payload length %d is not a multiple of 4", len(raw))}
	}
	n := len(raw) / 4
	samples := make([]float32, n)
	for i := range n {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

// EncodePCM16 converts float32 samples to 16-bit signed little-endian PCM
// bytes. Samples are clamped to [-1, 1] before scaling so out-of-range input
// cannot wrap around.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(math.Round(float64(s) * 32767))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 reinterprets little-endian 16-bit signed PCM bytes as float32
// samples in approximately [-1, 1]. Returns a *[DecodeError] if the byte
// count is odd.
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("odd byte count %d in PCM16 payload", len(pcm))}
	}
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32767.0
	}
	return samples, nil
}

// MeasureLevel returns the root-mean-square level of the sample window,
// used as the loudness gate in front of remote calls. An empty window
// measures 0 — never NaN.
func MeasureLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
