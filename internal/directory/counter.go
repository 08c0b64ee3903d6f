package directory

import "sync"

// CounterTracker is the monotonic per-signer counter map: fingerprint ↦
// last-accepted counter. A message with counter <= last-seen is stale
// and must be rejected. Adapted from the teacher's per-session
// timestamp/sequence manager, generalised from "session" to "signer
// fingerprint" and from timestamp comparison to integer comparison,
// matching spec.md §4.1's monotonic counter check.
type CounterTracker struct {
	mu      sync.Mutex
	lastSeq map[string]uint64
}

// NewCounterTracker creates an empty tracker.
func NewCounterTracker() *CounterTracker {
	return &CounterTracker{lastSeq: make(map[string]uint64)}
}

// Accept records counter for fingerprint if it strictly exceeds the
// last-seen counter for that fingerprint (or none has been seen yet). It
// returns false, without recording, if counter is stale or a replay.
func (c *CounterTracker) Accept(fingerprint string, counter uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, seen := c.lastSeq[fingerprint]
	if seen && counter <= last {
		return false
	}
	c.lastSeq[fingerprint] = counter
	return true
}

// Last returns the last-accepted counter for fingerprint and whether any
// has been recorded.
func (c *CounterTracker) Last(fingerprint string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lastSeq[fingerprint]
	return v, ok
}

// Forget removes all counter state for fingerprint, used when a signer
// is no longer trusted (e.g. its owning peer disconnected).
func (c *CounterTracker) Forget(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastSeq, fingerprint)
}
