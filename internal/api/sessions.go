package api

import (
	"sync"
	"time"

	"github.com/MikeSquared-Agency/studyplan/internal/processor"
)

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultMaxSessions = 1000
)

// sessionEntry serializes turns on one session.
type sessionEntry struct {
	mu       sync.Mutex
	sess     *processor.Session
	lastUsed time.Time
}

// sessions holds live chat sessions. Entries idle for longer than ttl are
// dropped, and the least recently used entry is evicted once limit is reached.
// A dropped session loses only its in-memory history; the next turn reloads
// it from the store.
type sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	limit   int
	now     func() time.Time
}

func newSessions(ttl time.Duration, limit int) *sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if limit <= 0 {
		limit = defaultMaxSessions
	}
	return &sessions{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
	}
}

// get returns the entry for id, creating an empty session on first use.
func (s *sessions) get(id string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	e, ok := s.entries[id]
	if !ok {
		if len(s.entries) >= s.limit {
			s.evictOldestLocked()
		}
		e = &sessionEntry{sess: processor.NewSession(id)}
		s.entries[id] = e
	}
	e.lastUsed = now
	return e
}

// lookup returns the entry for id without creating one.
func (s *sessions) lookup(id string) (*sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	e, ok := s.entries[id]
	if ok {
		e.lastUsed = now
	}
	return e, ok
}

func (s *sessions) pruneLocked(now time.Time) {
	for id, e := range s.entries {
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.entries, id)
		}
	}
}

func (s *sessions) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	delete(s.entries, oldestID)
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
