package app

import (
	"sync"
	"time"
)

// sessionInfo holds metadata about one live connection.
type sessionInfo struct {
	startedAt time.Time
}

// tracker records the set of live websocket sessions. All methods are safe
// for concurrent use.
type tracker struct {
	mu   sync.Mutex
	live map[string]sessionInfo
}

func newTracker() *tracker {
	return &tracker{live: make(map[string]sessionInfo)}
}

func (t *tracker) add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[id] = sessionInfo{startedAt: time.Now()}
}

func (t *tracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, id)
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
