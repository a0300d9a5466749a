package dedup

import "sync"

// WorkingSet holds the hashes of frames accepted so far. Membership is a
// linear scan by Hamming distance, acceptable at per-video frame counts.
// The set only grows for its lifetime; callers scope one WorkingSet per
// asset so long-lived workers do not accumulate hashes across videos.
type WorkingSet struct {
	mu        sync.Mutex
	threshold int
	hashes    []uint64
}

func NewWorkingSet(threshold int) *WorkingSet {
	if threshold < 0 {
		threshold = 0
	}
	return &WorkingSet{threshold: threshold}
}

// Admit reports whether h is unique relative to the set and, if so, inserts
// it. The check and the insert happen under one lock so two near-duplicates
// presented concurrently cannot both be accepted.
func (s *WorkingSet) Admit(h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seen := range s.hashes {
		if HammingDistance(h, seen) <= s.threshold {
			return false
		}
	}
	s.hashes = append(s.hashes, h)
	return true
}

// IsDuplicate reports whether any member of the set is within the duplicate
// threshold of h, without inserting.
func (s *WorkingSet) IsDuplicate(h uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seen := range s.hashes {
		if HammingDistance(h, seen) <= s.threshold {
			return true
		}
	}
	return false
}

func (s *WorkingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}
