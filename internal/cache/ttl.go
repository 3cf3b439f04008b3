// Package cache provides a small in-memory TTL set used to deduplicate
// detections and rate-limit re-analysis across scan passes.
package cache

import (
	"sync"
	"time"
)

// TTLSet remembers string keys for a fixed duration. Entries expire on their
// own; expired entries are dropped lazily on access and by Sweep.
type TTLSet struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLSet creates a set whose entries live for ttl.
func NewTTLSet(ttl time.Duration) *TTLSet {
	return &TTLSet{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add inserts key and reports whether it was absent (or expired). A false
// return means the key is still live, so the caller should treat the event
// as a duplicate.
func (s *TTLSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false
	}
	s.entries[key] = now.Add(s.ttl)
	return true
}

// Contains reports whether key is present and unexpired.
func (s *TTLSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *TTLSet) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for key, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, expired ones included until the
// next access or Sweep.
func (s *TTLSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
