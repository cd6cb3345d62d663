package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	deckstore "deckstage/internal/deckbuilder/store"
)

func agedSession(t *testing.T, reg *Registry, deckID, viewerID string, age time.Duration) *Session {
	t.Helper()
	sess, err := reg.Open(context.Background(), deckID, viewerID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	atomic.StoreInt64(&sess.lastAccessed, time.Now().Add(-age).UnixNano())
	return sess
}

func TestJanitor_EvictsIdleCleanSessions(t *testing.T) {
	reg, _ := seededRegistry(t)
	agedSession(t, reg, "d1", "alice", time.Hour)

	j := NewJanitor(reg, 10*time.Minute, time.Minute)
	j.runEvictionCycle()
	if reg.Len() != 0 {
		t.Fatalf("idle clean session must be evicted, len=%d", reg.Len())
	}
}

func TestJanitor_KeepsFreshSessions(t *testing.T) {
	reg, _ := seededRegistry(t)
	sess, _ := reg.Open(context.Background(), "d1", "alice")
	sess.Touch()

	j := NewJanitor(reg, 10*time.Minute, time.Minute)
	j.runEvictionCycle()
	if reg.Len() != 1 {
		t.Fatalf("fresh session must survive eviction")
	}
}

// Dirty sessions hold unapplied edits and are never evicted.
func TestJanitor_SkipsDirtySessions(t *testing.T) {
	reg, _ := seededRegistry(t)
	sess := agedSession(t, reg, "d1", "alice", time.Hour)
	if !sess.Staging().Increment("100") {
		t.Fatalf("edit failed")
	}
	atomic.StoreInt64(&sess.lastAccessed, time.Now().Add(-time.Hour).UnixNano())

	j := NewJanitor(reg, 10*time.Minute, time.Minute)
	j.runEvictionCycle()
	if reg.Len() != 1 {
		t.Fatalf("dirty session must never be evicted")
	}
}

func TestJanitor_SkipsApplyingSessions(t *testing.T) {
	reg, _ := seededRegistry(t)
	sess := agedSession(t, reg, "d1", "alice", time.Hour)
	sess.applying.Store(true)

	j := NewJanitor(reg, 10*time.Minute, time.Minute)
	j.runEvictionCycle()
	if reg.Len() != 1 {
		t.Fatalf("session with an apply in flight must not be evicted")
	}
	sess.applying.Store(false)
}

func TestJanitor_StartStopIdempotent(t *testing.T) {
	reg := NewRegistry(deckstore.NewMemoryStore())
	j := NewJanitor(reg, time.Hour, 10*time.Millisecond)
	j.Start()
	j.Stop()
	j.Stop() // second stop must not panic
}
