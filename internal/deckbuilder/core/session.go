// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package core manages open deck sessions: the in-memory registry, the
// reconciliation of staged edits against the deck store, and the background
// eviction of idle sessions.
package core

import (
	"sync"
	"sync/atomic"
	"time"

	"deckstage"
	deckstore "deckstage/internal/deckbuilder/store"
)

// Session is one open deck for one viewer. The staged edits and undo history
// live in the embedded staging state; this wrapper carries deck identity and
// the lifecycle metadata used by the registry and the janitor.
//
// lastAccessed is updated on every access and read atomically by the
// eviction loop. applying serializes applies per session: a second apply
// while one is in flight fails fast instead of queueing.
type Session struct {
	DeckID     string
	OwnerID    string
	ViewerID   string
	CategoryID int
	Private    bool

	mu   sync.Mutex
	name string

	staging      *deckstage.Staging
	lastAccessed int64
	applying     atomic.Bool
}

// newSession builds a session around a fetched deck. Edit permission is
// owner-only: an empty viewer id never edits.
func newSession(deck deckstore.Deck, viewerID string) *Session {
	s := &Session{
		DeckID:       deck.ID,
		OwnerID:      deck.OwnerID,
		ViewerID:     viewerID,
		CategoryID:   deck.CategoryID,
		Private:      deck.Private,
		name:         deck.Name,
		staging:      deckstage.NewStaging(),
		lastAccessed: time.Now().UnixNano(),
	}
	canEdit := viewerID != "" && viewerID == deck.OwnerID
	s.staging.Load(deck.Items, canEdit)
	return s
}

// Staging exposes the staged deck state for edits and reads.
func (s *Session) Staging() *deckstage.Staging { return s.staging }

// Name returns the current deck name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Touch records an access for eviction bookkeeping.
func (s *Session) Touch() {
	atomic.StoreInt64(&s.lastAccessed, time.Now().UnixNano())
}

// LastAccessed returns the last access time.
func (s *Session) LastAccessed() time.Time {
	return time.Unix(0, atomic.LoadInt64(&s.lastAccessed))
}

// Applying reports whether an apply is in flight on this session.
func (s *Session) Applying() bool { return s.applying.Load() }
