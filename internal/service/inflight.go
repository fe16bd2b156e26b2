package service

import "sync"

// inflightSet tracks the request IDs currently being processed and enforces
// the worker's global concurrency ceiling. Both admission paths (poll and
// notification) go through TryAcquire, so a request can never be admitted
// twice and the ceiling holds regardless of how work arrives.
type inflightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
	cap int
}

func newInflightSet(capacity int) *inflightSet {
	if capacity < 1 {
		capacity = 1
	}
	return &inflightSet{
		ids: make(map[string]struct{}, capacity),
		cap: capacity,
	}
}

// TryAcquire admits id if it is not already in flight and a slot is free.
func (s *inflightSet) TryAcquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.ids) >= s.cap {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Readd re-registers id for an internal retry. The retrying goroutine still
// occupies its original slot, so only the dedup check applies here.
func (s *inflightSet) Readd(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Release frees id's slot.
func (s *inflightSet) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Len returns the number of requests currently in flight.
func (s *inflightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Free returns the number of open slots.
func (s *inflightSet) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	free := s.cap - len(s.ids)
	if free < 0 {
		return 0
	}
	return free
}
