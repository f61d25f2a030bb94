// Package turndetect decides when a speaker has finished their conversational
// turn.
//
// A [Detector] wraps a remote [turn.Classifier] with the session-side policy:
// probes are debounced to one per interval, require a minimum amount of
// buffered speech, run at most once concurrently, and are bounded by a
// timeout. A probe that times out or fails yields an inconclusive decision
// rather than an error, since a missed turn boundary just defers detection to
// the next window.
package turndetect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voxrelay/voxrelay/pkg/provider/turn"
)

// Defaults for [Config] fields left at their zero value.
const (
	DefaultInterval   = 5 * time.Second
	DefaultTimeout    = 4 * time.Second
	DefaultThreshold  = 0.7
	DefaultMinSamples = 32_000
)

// Config holds the detection policy for one session.
type Config struct {
	// Interval is the minimum time between classifier probes.
	Interval time.Duration

	// Timeout bounds each classifier call. Expiry yields an inconclusive
	// decision, not an error.
	Timeout time.Duration

	// Threshold is the minimum probability for a positive verdict to count.
	Threshold float64

	// MinSamples is the smallest buffered window worth probing.
	MinSamples int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	return c
}

// Result is the outcome of one probe.
type Result struct {
	// Decision is the classifier's raw verdict. Inconclusive probes carry the
	// zero Decision.
	Decision turn.Decision

	// Complete reports whether the turn should be treated as finished: the
	// classifier said so and its confidence cleared the threshold. Both
	// signals must agree.
	Complete bool
}

// Detector applies the per-session turn detection policy around a remote
// classifier. It is safe for concurrent use; overlapping probes coalesce into
// a single classifier call.
type Detector struct {
	classifier turn.Classifier
	cfg        Config
	now        func() time.Time

	flight singleflight.Group

	mu        sync.Mutex
	checking  bool
	lastProbe time.Time
	last      Result
}

// New creates a Detector for one session. Zero config fields take the package
// defaults.
func New(classifier turn.Classifier, cfg Config) *Detector {
	return &Detector{
		classifier: classifier,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// ShouldProbe reports whether a new probe is currently allowed: no probe in
// flight, the interval since the last probe has elapsed, and at least
// MinSamples of speech are buffered.
func (d *Detector) ShouldProbe(buffered int) bool {
	if buffered < d.cfg.MinSamples {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.checking {
		return false
	}
	return d.lastProbe.IsZero() || d.now().Sub(d.lastProbe) >= d.cfg.Interval
}

// Probe runs one classifier call over window, bounded by the configured
// timeout. Timeouts and classifier errors degrade to an inconclusive Result;
// Probe never returns an error. Concurrent callers share a single in-flight
// classifier call and receive the same Result.
func (d *Detector) Probe(ctx context.Context, window []float32) Result {
	d.mu.Lock()
	d.checking = true
	d.lastProbe = d.now()
	d.mu.Unlock()

	v, err, _ := d.flight.Do("probe", func() (any, error) {
		cctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		return d.classifier.Classify(cctx, window)
	})

	var res Result
	if err != nil {
		slog.Debug("turn probe inconclusive", "error", err)
	} else {
		dec := v.(turn.Decision)
		res = Result{
			Decision: dec,
			Complete: dec.Complete && dec.Probability >= d.cfg.Threshold,
		}
	}

	d.mu.Lock()
	d.checking = false
	d.last = res
	d.mu.Unlock()
	return res
}

// Last returns the most recent probe's Result, or the zero Result before any
// probe has run. Debounced callers answer from this instead of probing again.
func (d *Detector) Last() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
