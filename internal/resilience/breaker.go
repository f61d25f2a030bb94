// Package resilience provides circuit breaking and provider failover for the
// remote speech and language services the relay depends on.
//
// The relay's value is a spoken reply within a few seconds, so a backend that
// has started timing out must be bypassed quickly rather than retried on every
// utterance. [Breaker] is a three-state circuit breaker (closed → open →
// half-open); [Chain] composes several instances of a provider type with
// per-entry breakers so the first healthy backend serves each call.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Execute] while the breaker is open
// and the cooldown has not yet elapsed.
var ErrBreakerOpen = errors.New("breaker is open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerHalfOpen lets a bounded number of probe calls through to decide
	// whether the backend has recovered.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// TripAfter is the number of consecutive failures that opens the breaker.
	// Default: 3.
	TripAfter int

	// Cooldown is how long the breaker stays open before probing. Default: 20s.
	Cooldown time.Duration

	// ProbeBudget is the number of half-open probe calls allowed before the
	// breaker commits to closing or re-opening. Default: 2.
	ProbeBudget int
}

// Breaker guards one remote backend. A run of failures opens it; after the
// cooldown a few probes decide whether it closes again.
type Breaker struct {
	name        string
	tripAfter   int
	cooldown    time.Duration
	probeBudget int

	mu         sync.Mutex
	state      BreakerState
	failures   int
	openedAt   time.Time
	probes     int
	probeFails int
}

// NewBreaker creates a [Breaker], filling zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:        cfg.Name,
		tripAfter:   cfg.TripAfter,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
		state:       BreakerClosed,
	}
}

// Execute runs fn unless the breaker rejects the call. Open breakers return
// [ErrBreakerOpen] without invoking fn; half-open breakers admit calls only
// within the probe budget.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probes = 0
		b.probeFails = 0
		slog.Info("breaker probing backend", "name", b.name)

	case BreakerHalfOpen:
		if b.probes >= b.probeBudget {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}

	probing := b.state == BreakerHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.noteFailure(probing)
	} else {
		b.noteSuccess(probing)
	}
	return err
}

// noteFailure must be called with b.mu held.
func (b *Breaker) noteFailure(probing bool) {
	b.openedAt = time.Now()

	if probing {
		b.probeFails++
		b.state = BreakerOpen
		b.failures = b.tripAfter
		slog.Warn("breaker re-opened after failed probe", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.tripAfter {
		b.state = BreakerOpen
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// noteSuccess must be called with b.mu held.
func (b *Breaker) noteSuccess(probing bool) {
	if probing {
		if b.probes-b.probeFails >= b.probeBudget {
			b.state = BreakerClosed
			b.failures = 0
			b.probes = 0
			b.probeFails = 0
			slog.Info("breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's current state. An open breaker whose cooldown
// has elapsed reports [BreakerHalfOpen]; the actual transition happens on the
// next [Breaker.Execute].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [BreakerClosed] and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
}
