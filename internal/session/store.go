// Package session keeps per-visitor conversation transcripts in process
// memory. Transcripts are advisory chat context only: they are capped to the
// most recent turns, evicted when idle, and lost on restart by design.
//
// Concurrency: each session owns a mutex, so concurrent turns from the same
// session append atomically instead of interleaving. The outer map is guarded
// separately and performs opportunistic TTL cleanup on lookups, bounding
// memory without a background goroutine.
package session

import (
	"sync"
	"time"
)

// Turn roles within a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged utterance in a conversation transcript. CreatedAt
// is stamped by the store on append when the caller left it zero.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the transcript storage contract used by the consultation service.
type Store interface {
	// Append adds turns to the session transcript, creating the session when
	// absent and evicting the oldest turns beyond the cap.
	Append(sessionID string, turns ...Turn)
	// Snapshot returns a copy of the session transcript, oldest first.
	// Missing sessions yield an empty slice.
	Snapshot(sessionID string) []Turn
	// Len reports the current transcript length for the session.
	Len(sessionID string) int
}

// entry is one live session: its transcript plus bookkeeping for eviction.
type entry struct {
	mu       sync.Mutex
	turns    []Turn
	lastSeen time.Time
}

// MemoryStore is an in-memory Store with FIFO capping and idle eviction.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry

	cap      int
	ttl      time.Duration
	cleanupN uint64
}

// NewMemoryStore constructs a store that keeps at most cap turns per session
// and evicts sessions idle longer than ttl. cap values < 1 are coerced to 1;
// a ttl <= 0 disables idle eviction.
func NewMemoryStore(cap int, ttl time.Duration) *MemoryStore {
	if cap < 1 {
		cap = 1
	}
	return &MemoryStore{
		sessions: make(map[string]*entry),
		cap:      cap,
		ttl:      ttl,
	}
}

// getOrCreate returns the session entry, creating it when absent. It also
// performs opportunistic GC of idle sessions after a threshold of lookups.
// GC runs BEFORE touching the requested entry so an expired session starts
// fresh rather than being refreshed.
func (s *MemoryStore) getOrCreate(id string) *entry {
	now := time.Now()

	s.mu.Lock()
	s.cleanupN++
	if s.ttl > 0 && s.cleanupN >= 1000 {
		for k, e := range s.sessions {
			if now.Sub(e.lastSeen) >= s.ttl {
				delete(s.sessions, k)
			}
		}
		s.cleanupN = 0
	}

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	e.lastSeen = now
	s.mu.Unlock()
	return e
}

// Append implements Store. Appends are serialized per session; when the
// transcript exceeds the cap the oldest turns are dropped first.
func (s *MemoryStore) Append(sessionID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	now := time.Now()
	for i := range turns {
		if turns[i].CreatedAt.IsZero() {
			turns[i].CreatedAt = now
		}
	}
	e := s.getOrCreate(sessionID)

	e.mu.Lock()
	e.turns = append(e.turns, turns...)
	if over := len(e.turns) - s.cap; over > 0 {
		// Copy down instead of re-slicing so evicted turns can be collected.
		kept := make([]Turn, s.cap)
		copy(kept, e.turns[over:])
		e.turns = kept
	}
	e.mu.Unlock()
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(sessionID string) []Turn {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		e.lastSeen = time.Now()
	}
	s.mu.Unlock()
	if !ok {
		return []Turn{}
	}

	e.mu.Lock()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	e.mu.Unlock()
	return out
}

// Len implements Store.
func (s *MemoryStore) Len(sessionID string) int {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	n := len(e.turns)
	e.mu.Unlock()
	return n
}
