// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/stt"
)

// Provider is a mock stt.Provider. Configure TranscribeFunc to script
// behaviour; calls are recorded for later inspection.
type Provider struct {
	mu    sync.Mutex
	calls []Call

	// TranscribeFunc is invoked by Transcribe when non-nil. When nil,
	// Transcribe returns the zero Transcript.
	TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int) (stt.Transcript, error)
}

// Call records the arguments of one Transcribe invocation.
type Call struct {
	SampleCount int
	SampleRate  int
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (stt.Transcript, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{SampleCount: len(samples), SampleRate: sampleRate})
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, samples, sampleRate)
	}
	return stt.Transcript{}, nil
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
