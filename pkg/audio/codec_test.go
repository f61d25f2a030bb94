package audio

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeTransport_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
	}{
		{"empty", nil},
		{"silence", make([]float32, 160)},
		{"full scale", []float32{-1, -0.5, 0, 0.5, 1}},
		{"sine", sine(440, 16000, 320)},
		{"clipped input", []float32{-2.5, -1.0001, 1.0001, 3.7}},
	}

	const maxErr = 1.0 / 32767.0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeTransport(EncodeTransport(tt.samples))
			if err != nil {
				t.Fatalf("round trip failed: %v", err)
			}
			if len(decoded) != len(tt.samples) {
				t.Fatalf("decoded %d samples, want %d", len(decoded), len(tt.samples))
			}
			for i, want := range tt.samples {
				// Out-of-range input clamps before quantising.
				if want > 1 {
					want = 1
				} else if want < -1 {
					want = -1
				}
				if diff := math.Abs(float64(decoded[i]) - float64(want)); diff > maxErr {
					t.Errorf("sample %d: got %v, want %v (diff %v > %v)", i, decoded[i], want, diff, maxErr)
				}
			}
		})
	}
}

func TestDecodeTransport_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"odd byte count", base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTransport(tt.payload)
			if err == nil {
				t.Fatal("expected error for malformed payload")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err = %T, want *DecodeError", err)
			}
		})
	}
}

func TestDecodeFloat32Transport(t *testing.T) {
	in := []float32{0.25, -0.75, 1.0}
	raw := make([]byte, 0, len(in)*4)
	for _, s := range in {
		bits := math.Float32bits(s)
		raw = append(raw, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}

	out, err := DecodeFloat32Transport(base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}

	// Length not a multiple of four is a decode error.
	if _, err := DecodeFloat32Transport(base64.StdEncoding.EncodeToString(raw[:5])); err == nil {
		t.Fatal("expected error for truncated float32 payload")
	}
}

func TestMeasureLevel(t *testing.T) {
	if got := MeasureLevel(nil); got != 0 {
		t.Fatalf("MeasureLevel(nil) = %v, want 0", got)
	}
	if got := MeasureLevel([]float32{}); got != 0 {
		t.Fatalf("MeasureLevel(empty) = %v, want 0", got)
	}

	// A constant signal of amplitude a has RMS a.
	constant := []float32{0.5, -0.5, 0.5, -0.5}
	if got := MeasureLevel(constant); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("MeasureLevel(constant 0.5) = %v, want 0.5", got)
	}

	// Louder signals measure higher.
	quiet := sine(440, 16000, 160)
	loud := make([]float32, len(quiet))
	for i, s := range quiet {
		loud[i] = s
		quiet[i] = s * 0.01
	}
	if MeasureLevel(loud) <= MeasureLevel(quiet) {
		t.Fatal("expected louder signal to measure a higher level")
	}
}

func TestEncodePCM16_Clamping(t *testing.T) {
	pcm := EncodePCM16([]float32{2.0, -2.0})
	samples, err := DecodePCM16(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if samples[0] != 1.0 {
		t.Errorf("positive overflow decoded to %v, want 1.0", samples[0])
	}
	if samples[1] < -1.0001 {
		t.Errorf("negative overflow decoded to %v, want ≈ -1.0", samples[1])
	}
}

// sine generates n samples of a sine wave at freq Hz and amplitude 0.8.
func sine(freq, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range n {
		out[i] = 0.8 * float32(math.Sin(2*math.Pi*float64(freq)*float64(i)/float64(sampleRate)))
	}
	return out
}
