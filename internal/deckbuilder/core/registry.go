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

package core

import (
	"context"
	"sync"

	deckstore "deckstage/internal/deckbuilder/store"
)

// Registry manages the open deck sessions in memory, keyed by deck and
// viewer. It is thread-safe and designed for concurrent access from request
// handlers and the eviction loop.
type Registry struct {
	sessions sync.Map
	store    deckstore.Store
}

// NewRegistry creates a registry backed by the given deck store.
func NewRegistry(store deckstore.Store) *Registry {
	return &Registry{store: store}
}

func sessionKey(deckID, viewerID string) string {
	return deckID + "\x00" + viewerID
}

// Open returns the session for (deckID, viewerID), fetching the deck from
// the store on first open.
//
// Optimization: avoid the store round-trip on the common case where the
// session already exists. We first try a plain Load. Only on a miss do we
// fetch and attempt a LoadOrStore; if another goroutine opened the session
// first, the freshly fetched copy is discarded and theirs wins, so staged
// edits are never clobbered by a concurrent open.
func (r *Registry) Open(ctx context.Context, deckID, viewerID string) (*Session, error) {
	key := sessionKey(deckID, viewerID)
	if actual, ok := r.sessions.Load(key); ok {
		sess := actual.(*Session)
		sess.Touch()
		return sess, nil
	}

	deck, err := r.store.FetchDeck(ctx, deckID, viewerID)
	if err != nil {
		return nil, err
	}
	fresh := newSession(deck, viewerID)
	if actual, loaded := r.sessions.LoadOrStore(key, fresh); loaded {
		sess := actual.(*Session)
		sess.Touch()
		return sess, nil
	}
	return fresh, nil
}

// Get returns an already open session without fetching, or nil.
func (r *Registry) Get(deckID, viewerID string) *Session {
	if actual, ok := r.sessions.Load(sessionKey(deckID, viewerID)); ok {
		sess := actual.(*Session)
		sess.Touch()
		return sess
	}
	return nil
}

// ForEach iterates over all open sessions.
func (r *Registry) ForEach(f func(key string, sess *Session)) {
	r.sessions.Range(func(key, value interface{}) bool {
		f(key.(string), value.(*Session))
		return true
	})
}

// Delete removes a session. Used by the eviction loop.
func (r *Registry) Delete(key string) {
	r.sessions.Delete(key)
}

// Len counts the open sessions.
func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// CloseAll drops every session. Shutdown path; staged edits are in-memory
// only and die with the process either way.
func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, _ interface{}) bool {
		r.sessions.Delete(key)
		return true
	})
}
