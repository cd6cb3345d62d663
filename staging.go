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

package deckstage

import "sync"

// HistoryEntry is one snapshot of the merged deck state. History is a linear
// arena + index: editing while not at the tip truncates the redo tail.
type HistoryEntry struct {
	Items ItemMap
}

// Staging owns the base (server-confirmed) and staged (pending local edits)
// item maps of one open deck session, plus the undo history. All operations
// are guarded by a mutex so each mutation appears atomic to observers.
//
// Every mutating operation is a no-op returning false when the session lacks
// edit permission or no deck is loaded; permission is checked here, not
// delegated to callers.
type Staging struct {
	mu      sync.Mutex
	base    ItemMap
	staged  ItemMap
	history []HistoryEntry
	histIdx int
	canEdit bool
	loaded  bool
}

// NewStaging returns an empty staging session. Call Load before mutating.
func NewStaging() *Staging {
	return &Staging{}
}

// Load installs a fresh server-confirmed baseline: staged edits are cleared
// and history resets to a single snapshot of the baseline. Non-positive
// quantities in base are dropped.
func (s *Staging) Load(base ItemMap, canEdit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = Merge(base, nil)
	s.staged = ItemMap{}
	s.history = []HistoryEntry{{Items: s.base.Clone()}}
	s.histIdx = 0
	s.canEdit = canEdit
	s.loaded = true
}

// Loaded reports whether a deck has been loaded into the session.
func (s *Staging) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// CanEdit reports whether the session viewer may mutate the deck.
func (s *Staging) CanEdit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canEdit
}

// Quantity returns the effective quantity of a ref: the staged override when
// present (zero sentinel counts as removed), the base quantity otherwise.
func (s *Staging) Quantity(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantityLocked(ref)
}

func (s *Staging) quantityLocked(ref string) int {
	if qty, ok := s.staged[ref]; ok {
		if qty < 0 {
			return 0
		}
		return qty
	}
	return s.base[ref]
}

// Increment raises the effective quantity of ref by one.
func (s *Staging) Increment(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() {
		return false
	}
	s.setQuantityLocked(ref, s.quantityLocked(ref)+1)
	s.recordLocked()
	return true
}

// Decrement lowers the effective quantity of ref by one. Going below one on a
// base-backed item leaves the explicit zero sentinel (delete on apply); on a
// staged-only item the staged key is removed entirely, so a fully reverted
// staged-only item vanishes rather than appearing as a removal. Decrementing
// an item already at zero is a no-op.
func (s *Staging) Decrement(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() {
		return false
	}
	current := s.quantityLocked(ref)
	if current <= 0 {
		return false
	}
	s.setQuantityLocked(ref, current-1)
	s.recordLocked()
	return true
}

// SetQuantity sets the effective quantity of ref to qty (clamped at zero).
func (s *Staging) SetQuantity(ref string, qty int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() {
		return false
	}
	if qty < 0 {
		qty = 0
	}
	if qty == s.quantityLocked(ref) {
		return false
	}
	s.setQuantityLocked(ref, qty)
	s.recordLocked()
	return true
}

// Import replaces the deck contents with the imported map: refs present in
// items get exactly the imported quantity (not additive), refs currently in
// the merged view but absent from items are scheduled for removal. This is a
// full replace, not a union.
func (s *Staging) Import(items ItemMap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() {
		return false
	}
	s.staged = DeriveStaged(s.base, Merge(items, nil))
	s.recordLocked()
	return true
}

// Discard drops all staged edits and resets history to the baseline snapshot.
// Idempotent: discarding twice equals discarding once.
func (s *Staging) Discard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() {
		return false
	}
	s.staged = ItemMap{}
	s.history = []HistoryEntry{{Items: s.base.Clone()}}
	s.histIdx = 0
	return true
}

// Undo steps back one history entry and re-derives the staged map relative to
// the current base. Returns false at the oldest entry.
func (s *Staging) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() || s.histIdx == 0 {
		return false
	}
	s.histIdx--
	s.staged = DeriveStaged(s.base, s.history[s.histIdx].Items)
	return true
}

// Redo steps forward one history entry. Returns false at the tip. A new edit
// after an undo truncates the redo tail, so redo is then unavailable.
func (s *Staging) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canMutateLocked() || s.histIdx >= len(s.history)-1 {
		return false
	}
	s.histIdx++
	s.staged = DeriveStaged(s.base, s.history[s.histIdx].Items)
	return true
}

// CanUndo reports whether Undo would succeed.
func (s *Staging) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canEdit && s.loaded && s.histIdx > 0
}

// CanRedo reports whether Redo would succeed.
func (s *Staging) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canEdit && s.loaded && s.histIdx < len(s.history)-1
}

// Dirty reports whether any staged edits are pending.
func (s *Staging) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged) > 0
}

// Base returns a copy of the server-confirmed baseline.
func (s *Staging) Base() ItemMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Clone()
}

// StagedItems returns a copy of the staged map, zero sentinels included.
func (s *Staging) StagedItems() ItemMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged.Clone()
}

// Merged returns the effective deck contents.
func (s *Staging) Merged() ItemMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Merge(s.base, s.staged)
}

// Delta computes the current delta from base to merged.
func (s *Staging) Delta() Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeDelta(s.base, s.staged)
}

// SetBase installs a new baseline while preserving the current merged view:
// the staged map is re-derived so that Merge(newBase, staged) is unchanged.
// History is kept. Used after a partial apply (the baseline advanced past the
// calls that landed, the staged remainder stays pending) and to absorb edits
// staged while an apply was in flight.
func (s *Staging) SetBase(newBase ItemMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := Merge(s.base, s.staged)
	s.base = Merge(newBase, nil)
	s.staged = DeriveStaged(s.base, merged)
}

// Rebase is SetBase plus a history reset to one snapshot of the merged view.
// Used after a fully successful apply: if nothing was staged during the
// apply, the session comes out clean.
func (s *Staging) Rebase(newBase ItemMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := Merge(s.base, s.staged)
	s.base = Merge(newBase, nil)
	s.staged = DeriveStaged(s.base, merged)
	s.history = []HistoryEntry{{Items: merged}}
	s.histIdx = 0
}

func (s *Staging) canMutateLocked() bool {
	return s.loaded && s.canEdit
}

// setQuantityLocked writes the effective quantity into the staged map,
// keeping it minimal: overrides equal to the base quantity are dropped, and
// zero quantities become a sentinel only for base-backed refs.
func (s *Staging) setQuantityLocked(ref string, qty int) {
	baseQty, inBase := s.base[ref]
	switch {
	case qty <= 0:
		if inBase {
			s.staged[ref] = 0
		} else {
			delete(s.staged, ref)
		}
	case inBase && qty == baseQty:
		delete(s.staged, ref)
	default:
		s.staged[ref] = qty
	}
}

// recordLocked snapshots the post-mutation merged state, truncating any redo
// tail beyond the current index.
func (s *Staging) recordLocked() {
	merged := Merge(s.base, s.staged)
	s.history = append(s.history[:s.histIdx+1], HistoryEntry{Items: merged})
	s.histIdx = len(s.history) - 1
}
