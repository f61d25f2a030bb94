// Package turn defines the Classifier interface for turn completion backends.
//
// A turn classifier inspects a window of recent speech and judges whether the
// speaker has finished their conversational turn. Unlike frame-level voice
// activity detection, turn classification is a semantic judgement over a large
// audio window, so it is modelled as a remote, context-aware call rather than
// a synchronous per-frame function.
//
// Implementations must be safe for concurrent use.
package turn

import "context"

// Decision is the result of a single turn classification probe.
type Decision struct {
	// Complete reports whether the speaker has finished their turn.
	Complete bool

	// Probability is the classifier's confidence that the turn is complete,
	// in the range [0.0, 1.0].
	Probability float64
}

// Classifier judges turn completion from a window of speech samples.
type Classifier interface {
	// Classify inspects samples, float32 PCM in [-1, 1] at the session sample
	// rate, and returns a completion Decision. Implementations should honour
	// ctx cancellation; callers treat a timeout as an inconclusive probe
	// rather than an error worth surfacing to the speaker.
	Classify(ctx context.Context, samples []float32) (Decision, error)
}
