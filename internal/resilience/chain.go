package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrChainExhausted is returned when every entry in a [Chain] fails or has an
// open breaker.
var ErrChainExhausted = errors.New("all backends failed")

// ChainConfig configures the per-entry breaker created for each backend in a
// [Chain].
type ChainConfig struct {
	Breaker BreakerConfig
}

// chainEntry pairs a backend with its dedicated breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds a primary backend plus zero or more fallbacks of the same
// provider type, each guarded by its own breaker. Entries are tried in
// registration order; open breakers are skipped.
//
// Chain is safe for concurrent use after registration is complete.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     ChainConfig
}

// NewChain creates a [Chain] with primary as the first entry.
func NewChain[T any](primary T, primaryName string, cfg ChainConfig) *Chain[T] {
	bc := cfg.Breaker
	bc.Name = primaryName
	return &Chain[T]{
		entries: []chainEntry[T]{{
			name:    primaryName,
			value:   primary,
			breaker: NewBreaker(bc),
		}},
		cfg: cfg,
	}
}

// Add appends a fallback backend, tried after all previously registered
// entries.
func (c *Chain[T]) Add(name string, fallback T) {
	bc := c.cfg.Breaker
	bc.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewBreaker(bc),
	})
}

// Len reports the number of registered backends.
func (c *Chain[T]) Len() int {
	return len(c.entries)
}

// Run calls fn against each healthy entry in order until one succeeds.
// Returns [ErrChainExhausted] wrapped with the last error when every entry
// fails.
func (c *Chain[T]) Run(fn func(T) error) error {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrChainExhausted, lastErr)
}

// RunWithResult calls fn against each healthy entry until one succeeds and
// returns its result. Package-level because Go does not support method-level
// type parameters.
func RunWithResult[T any, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		entry := &c.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping backend, breaker open", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrChainExhausted, lastErr)
}
