// This file provides the NativeProvider API surface for builds without CGO,
// where the whisper.cpp bindings cannot be compiled. NewNative always fails;
// the HTTP Provider in whisper.go remains fully functional.

//go:build !cgo

package whisper

import (
	"context"
	"errors"

	"github.com/voxrelay/voxrelay/pkg/provider/stt"
)

// errNoCGO is returned by NewNative when the binary was built without CGO.
var errNoCGO = errors.New("whisper: native provider requires a build with CGO enabled")

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider is unavailable in builds without CGO; see native.go for the
// real implementation backed by the whisper.cpp bindings.
type NativeProvider struct {
	language string
	threads  int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "de", "auto"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the number of CPU threads used per inference.
// Values <= 0 use runtime.NumCPU().
func WithNativeThreads(n int) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative always returns an error in builds without CGO.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	return nil, errNoCGO
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error { return nil }

// Transcribe implements stt.Provider.
func (p *NativeProvider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (stt.Transcript, error) {
	return stt.Transcript{}, errNoCGO
}
