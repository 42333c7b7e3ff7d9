// Package store keeps finished results in memory for a limited time so they
// can be downloaded again or previewed.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/loopstretch/internal/extend"
	"github.com/satindergrewal/loopstretch/internal/metrics"
)

// Entry is a stored result. Only the encoded MP3 is kept; the decoded
// output is dropped so an entry costs its file size.
type Entry struct {
	ID          string
	Filename    string
	MP3         []byte
	Seconds     float64
	RepeatCount int
	Created     time.Time
	Expires     time.Time
}

// Store is a bounded, expiring map of results. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	order    []string // insertion order, oldest first
	ttl      time.Duration
	capacity int
	maxBytes int64
	bytes    int64
	now      func() time.Time
}

// New creates a store holding at most capacity entries and maxBytes of MP3
// data, each for ttl. maxBytes <= 0 disables the byte bound.
func New(ttl time.Duration, capacity int, maxBytes int64) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		entries:  make(map[string]*Entry),
		ttl:      ttl,
		capacity: capacity,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// Put stores res and returns its entry. The oldest entries are evicted to
// stay within capacity and the byte bound. A result larger than the byte
// bound on its own is not stored and ok is false.
func (s *Store) Put(filename string, res *extend.Result) (e *Entry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(res.MP3))
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, false
	}

	s.sweepLocked()
	for len(s.order) >= s.capacity || (s.maxBytes > 0 && s.bytes+size > s.maxBytes) {
		s.removeLocked(s.order[0])
	}

	now := s.now()
	e = &Entry{
		ID:          uuid.NewString(),
		Filename:    filename,
		MP3:         res.MP3,
		Seconds:     res.OutputSeconds(),
		RepeatCount: res.Plan.RepeatCount,
		Created:     now,
		Expires:     now.Add(s.ttl),
	}
	s.entries[e.ID] = e
	s.order = append(s.order, e.ID)
	s.bytes += size
	metrics.StoredResults.Set(float64(len(s.entries)))
	return e, true
}

// Get returns an unexpired entry.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.Expires) {
		s.removeLocked(id)
		metrics.StoredResults.Set(float64(len(s.entries)))
		return nil, false
	}
	return e, true
}

// Bytes returns the MP3 bytes currently held.
func (s *Store) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Len returns the number of entries, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *Store) sweepLocked() int {
	now := s.now()
	removed := 0
	for _, id := range append([]string(nil), s.order...) {
		if !now.Before(s.entries[id].Expires) {
			s.removeLocked(id)
			removed++
		}
	}
	if removed > 0 {
		metrics.StoredResults.Set(float64(len(s.entries)))
	}
	return removed
}

func (s *Store) removeLocked(id string) {
	if e, ok := s.entries[id]; ok {
		s.bytes -= int64(len(e.MP3))
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
