package audio

import "sync"

const (
	// DefaultHighWater is the sample count at which the accumulator trims,
	// about 6 s of audio at 16 kHz.
	DefaultHighWater = 96_000

	// DefaultLowWater is the sample count retained after a trim, about 4 s
	// at 16 kHz.
	DefaultLowWater = 64_000
)

// Accumulator maintains a bounded sliding window of recent audio samples for
// one session. Appends past the high-water mark trim the buffer down to the
// most recent low-water samples in one step, so the window slides at trim
// granularity rather than evicting sample-by-sample.
//
// All methods are safe for concurrent use, though the session confines
// mutation to its own inbound-frame sequence; the lock exists so the turn
// detector may read the window while appends continue.
type Accumulator struct {
	mu        sync.Mutex
	samples   []float32
	highWater int
	lowWater  int
}

// NewAccumulator creates an accumulator with the given trim marks.
// Non-positive or inverted marks fall back to the package defaults.
func NewAccumulator(highWater, lowWater int) *Accumulator {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	if lowWater <= 0 || lowWater > highWater {
		lowWater = DefaultLowWater
		if lowWater > highWater {
			lowWater = highWater
		}
	}
	return &Accumulator{
		samples:   make([]float32, 0, highWater),
		highWater: highWater,
		lowWater:  lowWater,
	}
}

// Append concatenates chunk onto the buffer, then trims to the low-water mark
// if the high-water mark was exceeded. After Append returns, Len never
// exceeds the high-water mark.
func (a *Accumulator) Append(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, chunk...)
	if len(a.samples) > a.highWater {
		keep := a.samples[len(a.samples)-a.lowWater:]
		// Copy to a fresh slice so the trimmed prefix can be collected.
		fresh := make([]float32, len(keep), a.highWater)
		copy(fresh, keep)
		a.samples = fresh
	}
}

// Window returns a copy of the first min(maxSamples, Len) samples without
// mutating the buffer. maxSamples <= 0 means the whole buffer. Window and
// [Accumulator.Consume] are separate so the caller can inspect an utterance
// before committing to remove it, avoiding data loss when a downstream
// dispatch fails validation.
func (a *Accumulator) Window(maxSamples int) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.samples)
	if maxSamples > 0 && maxSamples < n {
		n = maxSamples
	}
	out := make([]float32, n)
	copy(out, a.samples[:n])
	return out
}

// Consume removes the first n samples from the buffer. Consuming more than
// Len empties the buffer.
func (a *Accumulator) Consume(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if n >= len(a.samples) {
		a.samples = a.samples[:0]
		return
	}
	remaining := len(a.samples) - n
	copy(a.samples, a.samples[n:])
	a.samples = a.samples[:remaining]
}

// Len returns the current number of buffered samples.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}
