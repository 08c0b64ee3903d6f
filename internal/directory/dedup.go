package directory

import "sync"

// SeenIDs tracks envelope ids already processed, so a duplicate can be
// dropped (spec.md §4.2 "clients MUST drop duplicates by id"; servers
// SHOULD for loop damping). Unbounded: a client's lifetime set of
// processed ids is small relative to its session.
type SeenIDs struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSeenIDs creates an empty tracker.
func NewSeenIDs() *SeenIDs {
	return &SeenIDs{seen: make(map[string]struct{})}
}

// CheckAndRecord returns true if id has not been seen before, recording
// it as seen in the same step. A subsequent call with the same id
// returns false.
func (s *SeenIDs) CheckAndRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}
