// Package mock provides a scriptable turn.Classifier for tests.
package mock

import (
	"context"
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/turn"
)

// Compile-time assertion that Classifier implements turn.Classifier.
var _ turn.Classifier = (*Classifier)(nil)

// Classifier is a scriptable mock implementation of turn.Classifier. The zero
// value reports every probe as an incomplete turn.
type Classifier struct {
	// ClassifyFunc, if set, is invoked for every Classify call.
	ClassifyFunc func(ctx context.Context, samples []float32) (turn.Decision, error)

	mu    sync.Mutex
	calls []int
}

// Classify implements turn.Classifier. It records the sample count of each
// probe and delegates to ClassifyFunc when set.
func (c *Classifier) Classify(ctx context.Context, samples []float32) (turn.Decision, error) {
	c.mu.Lock()
	c.calls = append(c.calls, len(samples))
	c.mu.Unlock()

	if c.ClassifyFunc != nil {
		return c.ClassifyFunc(ctx, samples)
	}
	return turn.Decision{}, nil
}

// Calls returns the sample count of every probe seen so far.
func (c *Classifier) Calls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.calls))
	copy(out, c.calls)
	return out
}
