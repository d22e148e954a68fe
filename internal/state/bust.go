package state

import "sync"

// BustCounter tracks per-image render versions. Counters only grow and
// survive scope changes for the lifetime of the view.
type BustCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewBustCounter returns an empty counter table.
func NewBustCounter() *BustCounter {
	return &BustCounter{counts: make(map[string]int)}
}

// Bump increments each distinct non-empty id once.
func (b *BustCounter) Bump(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		b.counts[id]++
	}
}

// Get returns the current counter for id.
func (b *BustCounter) Get(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[id]
}
