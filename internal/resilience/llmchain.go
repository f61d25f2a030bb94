package resilience

import (
	"context"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
)

// LLMChain implements [llm.Provider] with automatic failover across multiple
// language model backends. Each backend carries its own breaker, so a primary
// that has started failing is bypassed in favour of the next healthy fallback.
type LLMChain struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*LLMChain)(nil)

// NewLLMChain creates an [LLMChain] with primary as the preferred backend.
func NewLLMChain(primary llm.Provider, primaryName string, cfg ChainConfig) *LLMChain {
	return &LLMChain{chain: NewChain(primary, primaryName, cfg)}
}

// Add registers an additional language model backend as a fallback.
func (c *LLMChain) Add(name string, provider llm.Provider) {
	c.chain.Add(name, provider)
}

// Len reports the number of registered backends.
func (c *LLMChain) Len() int {
	return c.chain.Len()
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (c *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return RunWithResult(c.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
