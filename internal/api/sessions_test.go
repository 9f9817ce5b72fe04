package api

import (
	"testing"
	"time"
)

func TestSessions_LookupDoesNotCreate(t *testing.T) {
	s := newSessions(time.Minute, 10)

	if _, ok := s.lookup("ghost"); ok {
		t.Error("lookup must not find an unknown session")
	}
	if s.len() != 0 {
		t.Errorf("lookup must not create entries, got %d", s.len())
	}

	e := s.get("real")
	got, ok := s.lookup("real")
	if !ok || got != e {
		t.Error("lookup should return the entry created by get")
	}
}

func TestSessions_IdleEntriesExpire(t *testing.T) {
	s := newSessions(time.Minute, 10)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(30 * time.Second)
	s.get("b")
	now = now.Add(45 * time.Second)

	if _, ok := s.lookup("a"); ok {
		t.Error("a was idle past the ttl and should be gone")
	}
	if _, ok := s.lookup("b"); !ok {
		t.Error("b is still within the ttl")
	}
}

func TestSessions_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	s := newSessions(time.Hour, 2)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(time.Second)
	s.get("b")
	now = now.Add(time.Second)
	s.get("a")
	now = now.Add(time.Second)
	s.get("c")

	if s.len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.len())
	}
	if _, ok := s.lookup("b"); ok {
		t.Error("b was least recently used and should be evicted")
	}
	if _, ok := s.lookup("a"); !ok {
		t.Error("a was touched recently and should remain")
	}
}
