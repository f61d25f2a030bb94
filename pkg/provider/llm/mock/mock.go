// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
)

// Provider is a mock llm.Provider. Configure CompleteFunc to script
// behaviour; requests are recorded for later inspection.
type Provider struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest

	// CompleteFunc is invoked by Complete when non-nil. When nil, Complete
	// returns an empty response.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return &llm.CompletionResponse{}, nil
}

// Requests returns a copy of all recorded completion requests.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
