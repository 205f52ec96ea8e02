// Package dispatch serializes crawl attempts per (source, category).
package dispatch

import (
	"sync"

	"github.com/huntwise/regwatch/internal/regdata"
)

// Guard rejects overlapping attempts for the same (source, category). A
// slower failing attempt completing after a faster successful one could
// otherwise overwrite good data with a fallback, so the second attempt is
// refused outright rather than queued.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard constructs a Guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAcquire claims the pair. The returned release must be called when the
// attempt finishes; ok is false when another attempt is already running.
func (g *Guard) TryAcquire(sourceID string, category regdata.Category) (release func(), ok bool) {
	key := sourceID + "/" + string(category)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return nil, false
	}
	g.inflight[key] = struct{}{}
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.inflight, key)
	}, true
}
