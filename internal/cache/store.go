// Package cache implements the TTL request cache behind every backend read:
// a key-value store with per-entry TTL, a request manager that coalesces
// identical in-flight fetches and revalidates in the background, and a
// visibility-aware poller.
package cache

import (
	"sync"
	"time"
)

// entry is one cached value. Entries persist past TTL expiry until
// explicitly deleted or purged; an expired entry only stops being served.
type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) fresh(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Store is the shared mutable cache. All mutations are last-writer-wins;
// there is no multi-key atomicity.
type Store struct {
	mu       sync.Mutex
	entries  map[string]entry
	fetching map[string]bool
	clock    func() time.Time
}

// StoreOption configures Store.
type StoreOption func(*Store)

// WithClock sets the time source, used by tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:  make(map[string]entry),
		fetching: make(map[string]bool),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key if a fresh entry exists.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.fresh(s.clock()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, replacing any prior entry.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, storedAt: s.clock(), ttl: ttl}
}

// IsFetching reports whether a fetch for key is in flight.
func (s *Store) IsFetching(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching[key]
}

// TrySetFetching sets the in-flight flag for key and reports whether this
// caller acquired it. Check and set happen under one lock, so exactly one
// of any concurrent callers wins.
func (s *Store) TrySetFetching(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetching[key] {
		return false
	}
	s.fetching[key] = true
	return true
}

// SetFetching marks or clears the in-flight flag for key.
func (s *Store) SetFetching(key string, fetching bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fetching {
		s.fetching[key] = true
	} else {
		delete(s.fetching, key)
	}
}

// Delete removes the entry for key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Invalidate removes the entries for all given keys. Each delete is
// independent; concurrent readers may observe a partial invalidation.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
}

// Clear removes every entry and fetching flag. Used on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	s.fetching = make(map[string]bool)
}

// PurgeExpired removes entries past their TTL and returns how many were
// dropped. Freshness semantics are unchanged; this only bounds growth.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var purged int
	for key, e := range s.entries {
		if !e.fresh(now) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of entries held, fresh or expired.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
