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

package deckstore

import (
	"context"
	"sync"
	"time"

	"deckstage"
)

// MemoryStore is an in-process Store used as the default demo backend and in
// tests. It honors ownership and privacy semantics and dedupes write calls
// by commitID like the real adapters.
type MemoryStore struct {
	mu      sync.Mutex
	decks   map[string]*Deck
	applied map[string]bool // commitID -> seen
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decks:   map[string]*Deck{},
		applied: map[string]bool{},
	}
}

// Seed installs a deck, replacing any existing one with the same ID.
// Intended for demo and test setup.
func (m *MemoryStore) Seed(deck Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deck.Items = deckstage.Merge(deck.Items, nil)
	deck.CardCount = deck.Items.Total()
	deck.UpdatedAt = time.Now()
	m.decks[deck.ID] = &deck
}

// FetchDeck returns a copy of the stored deck.
func (m *MemoryStore) FetchDeck(ctx context.Context, deckID, viewerID string) (Deck, error) {
	if err := ctx.Err(); err != nil {
		return Deck{}, &NetworkError{Op: "fetch", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[deckID]
	if !ok {
		return Deck{}, ErrNotFound
	}
	if d.Private && viewerID != d.OwnerID {
		return Deck{}, ErrForbidden
	}
	out := *d
	out.Items = d.Items.Clone()
	out.ColorTags = append([]string(nil), d.ColorTags...)
	return out, nil
}

// UpsertItems overwrites quantities for the given refs. Non-positive imported
// quantities are dropped, matching the backing API's normalization. A repeat
// commitID is a no-op.
func (m *MemoryStore) UpsertItems(ctx context.Context, deckID, viewerID string, items deckstage.ItemMap, meta Metadata, commitID string) error {
	if err := ctx.Err(); err != nil {
		return &NetworkError{Op: "upsert", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.writableLocked(deckID, viewerID)
	if err != nil {
		return err
	}
	if m.applied[commitID] {
		return nil
	}
	for ref, qty := range items {
		if qty > 0 {
			d.Items[ref] = qty
		}
	}
	m.finishWriteLocked(d, meta, commitID)
	return nil
}

// DeleteItems removes the given refs; unknown refs are ignored. A repeat
// commitID is a no-op.
func (m *MemoryStore) DeleteItems(ctx context.Context, deckID, viewerID string, refs []string, meta Metadata, commitID string) error {
	if err := ctx.Err(); err != nil {
		return &NetworkError{Op: "delete", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.writableLocked(deckID, viewerID)
	if err != nil {
		return err
	}
	if m.applied[commitID] {
		return nil
	}
	for _, ref := range refs {
		delete(d.Items, ref)
	}
	m.finishWriteLocked(d, meta, commitID)
	return nil
}

// UpdateName renames the deck and refreshes metadata.
func (m *MemoryStore) UpdateName(ctx context.Context, deckID, viewerID, name string, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return &NetworkError{Op: "rename", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.writableLocked(deckID, viewerID)
	if err != nil {
		return err
	}
	d.Name = name
	m.finishWriteLocked(d, meta, "")
	return nil
}

func (m *MemoryStore) writableLocked(deckID, viewerID string) (*Deck, error) {
	d, ok := m.decks[deckID]
	if !ok {
		return nil, ErrNotFound
	}
	if viewerID != d.OwnerID {
		return nil, ErrForbidden
	}
	return d, nil
}

func (m *MemoryStore) finishWriteLocked(d *Deck, meta Metadata, commitID string) {
	d.CardCount = meta.CardCount
	d.ColorTags = append([]string(nil), meta.ColorTags...)
	d.UpdatedAt = time.Now()
	if commitID != "" {
		m.applied[commitID] = true
	}
}
