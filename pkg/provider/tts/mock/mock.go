// Package mock provides a scriptable tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/tts"
)

// Provider is a mock tts.Provider. Configure SynthesizeFunc to script
// behaviour; synthesised texts are recorded for later inspection.
type Provider struct {
	mu    sync.Mutex
	texts []string

	// SynthesizeFunc is invoked by Synthesize when non-nil. When nil,
	// Synthesize returns a small non-empty payload.
	SynthesizeFunc func(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error)
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if p.SynthesizeFunc != nil {
		return p.SynthesizeFunc(ctx, text, voice)
	}
	return []byte{0x01, 0x02, 0x03}, nil
}

// Texts returns a copy of all texts passed to Synthesize.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
