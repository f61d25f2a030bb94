package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
	"github.com/voxrelay/voxrelay/pkg/provider/stt"
	"github.com/voxrelay/voxrelay/pkg/provider/tts"
	"github.com/voxrelay/voxrelay/pkg/provider/turn"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	stt  map[string]func(ProviderEntry) (stt.Provider, error)
	llm  map[string]func(ProviderEntry) (llm.Provider, error)
	tts  map[string]func(ProviderEntry) (tts.Provider, error)
	turn map[string]func(ProviderEntry) (turn.Classifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:  make(map[string]func(ProviderEntry) (stt.Provider, error)),
		llm:  make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts:  make(map[string]func(ProviderEntry) (tts.Provider, error)),
		turn: make(map[string]func(ProviderEntry) (turn.Classifier, error)),
	}
}

// RegisterSTT registers an STT provider factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterTurn registers a turn classifier factory under name.
func (r *Registry) RegisterTurn(name string, factory func(ProviderEntry) (turn.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turn[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if none exists.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTurn instantiates a turn classifier using the factory registered
// under entry.Name.
func (r *Registry) CreateTurn(entry ProviderEntry) (turn.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.turn[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: turn/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
