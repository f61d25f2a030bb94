package turndetect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxrelay/voxrelay/pkg/provider/turn"
	turnmock "github.com/voxrelay/voxrelay/pkg/provider/turn/mock"
)

func TestShouldProbeGuards(t *testing.T) {
	d := New(&turnmock.Classifier{}, Config{MinSamples: 100, Interval: time.Minute})

	if d.ShouldProbe(50) {
		t.Error("probe allowed below MinSamples")
	}
	if !d.ShouldProbe(100) {
		t.Error("first probe with enough samples should be allowed")
	}

	d.Probe(context.Background(), make([]float32, 100))
	if d.ShouldProbe(100) {
		t.Error("probe allowed before interval elapsed")
	}
}

func TestShouldProbeAfterInterval(t *testing.T) {
	d := New(&turnmock.Classifier{}, Config{MinSamples: 10, Interval: time.Minute})

	base := time.Now()
	d.now = func() time.Time { return base }
	d.Probe(context.Background(), make([]float32, 10))

	d.now = func() time.Time { return base.Add(2 * time.Minute) }
	if !d.ShouldProbe(10) {
		t.Error("probe should be allowed after interval elapsed")
	}
}

func TestProbeAppliesThreshold(t *testing.T) {
	tests := []struct {
		name     string
		decision turn.Decision
		want     bool
	}{
		{"both signals agree", turn.Decision{Complete: true, Probability: 0.9}, true},
		{"at threshold", turn.Decision{Complete: true, Probability: 0.7}, true},
		{"below threshold", turn.Decision{Complete: true, Probability: 0.5}, false},
		{"high probability but incomplete", turn.Decision{Complete: false, Probability: 0.95}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &turnmock.Classifier{
				ClassifyFunc: func(context.Context, []float32) (turn.Decision, error) {
					return tt.decision, nil
				},
			}
			d := New(cls, Config{})
			res := d.Probe(context.Background(), make([]float32, 10))
			if res.Complete != tt.want {
				t.Errorf("Complete = %v, want %v", res.Complete, tt.want)
			}
			if res.Decision != tt.decision {
				t.Errorf("Decision = %+v, want %+v", res.Decision, tt.decision)
			}
		})
	}
}

func TestProbeDegradesOnTimeout(t *testing.T) {
	cls := &turnmock.Classifier{
		ClassifyFunc: func(ctx context.Context, _ []float32) (turn.Decision, error) {
			<-ctx.Done()
			return turn.Decision{}, ctx.Err()
		},
	}
	d := New(cls, Config{Timeout: 20 * time.Millisecond})

	res := d.Probe(context.Background(), make([]float32, 10))
	if res.Complete {
		t.Error("timed-out probe must not report completion")
	}
	if res.Decision != (turn.Decision{}) {
		t.Errorf("Decision = %+v, want zero value", res.Decision)
	}
}

func TestProbeDegradesOnError(t *testing.T) {
	cls := &turnmock.Classifier{
		ClassifyFunc: func(context.Context, []float32) (turn.Decision, error) {
			return turn.Decision{}, errors.New("service down")
		},
	}
	d := New(cls, Config{})

	res := d.Probe(context.Background(), make([]float32, 10))
	if res.Complete || res.Decision != (turn.Decision{}) {
		t.Errorf("degraded result = %+v, want zero value", res)
	}
}

func TestLastCachesMostRecentVerdict(t *testing.T) {
	cls := &turnmock.Classifier{
		ClassifyFunc: func(context.Context, []float32) (turn.Decision, error) {
			return turn.Decision{Complete: true, Probability: 0.8}, nil
		},
	}
	d := New(cls, Config{})

	if d.Last() != (Result{}) {
		t.Errorf("Last before any probe = %+v, want zero value", d.Last())
	}

	res := d.Probe(context.Background(), make([]float32, 10))
	if d.Last() != res {
		t.Errorf("Last = %+v, want %+v", d.Last(), res)
	}
}

func TestProbeSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	cls := &turnmock.Classifier{
		ClassifyFunc: func(context.Context, []float32) (turn.Decision, error) {
			close(started)
			<-release
			return turn.Decision{Complete: true, Probability: 0.9}, nil
		},
	}
	d := New(cls, Config{Timeout: time.Second})

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = d.Probe(context.Background(), make([]float32, 10))
	}()

	<-started
	// While the first probe is in flight, a second must not be allowed.
	if d.ShouldProbe(1_000_000) {
		t.Error("ShouldProbe = true while a probe is in flight")
	}
	// A forced concurrent probe coalesces onto the in-flight call.
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = d.Probe(context.Background(), make([]float32, 10))
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	calls := cls.Calls()
	if len(calls) != 1 {
		t.Fatalf("classifier saw %d calls, want 1", len(calls))
	}
	for i, res := range results {
		if !res.Complete {
			t.Errorf("results[%d].Complete = false, want true", i)
		}
	}
}
