package services

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSeenCapacity is the default bound on tracked checksums.
const DefaultSeenCapacity = 10000

// SeenSet suppresses duplicate content within a single run by
// tracking recently seen checksums in a bounded LRU. It is purely a
// within-run optimisation: eviction means a very old duplicate can be
// reprocessed, which is acceptable because the persistent version
// check is the correctness backstop.
//
// SeenSet is not safe for concurrent use; a run processes items
// strictly sequentially.
type SeenSet struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeenSet creates a seen-set with the given capacity.
// Non-positive capacities fall back to DefaultSeenCapacity.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	// lru.New only errors on non-positive size, which is guarded above.
	cache, _ := lru.New[string, struct{}](capacity)
	return &SeenSet{cache: cache}
}

// Add records a checksum. It returns true when the checksum was
// unseen and is now recorded, false when it was already present (its
// recency is refreshed). Inserting past capacity evicts the
// least-recently-touched entry.
func (s *SeenSet) Add(checksum string) bool {
	if _, ok := s.cache.Get(checksum); ok {
		return false
	}
	s.cache.Add(checksum, struct{}{})
	return true
}

// Len returns the number of tracked checksums.
func (s *SeenSet) Len() int {
	return s.cache.Len()
}
