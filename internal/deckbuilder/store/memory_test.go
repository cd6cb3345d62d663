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
	"errors"
	"reflect"
	"testing"

	"deckstage"
)

func seedDeck(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	m.Seed(Deck{ID: "d1", OwnerID: "alice", Name: "aggro", CategoryID: 3, Items: deckstage.ItemMap{"100": 2}})
	m.Seed(Deck{ID: "secret", OwnerID: "alice", Private: true, Items: deckstage.ItemMap{"200": 1}})
	return m
}

// TestMemoryStore_FetchSemantics covers not-found, forbidden, and the
// defensive copy of returned items.
func TestMemoryStore_FetchSemantics(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()

	if _, err := m.FetchDeck(ctx, "nope", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.FetchDeck(ctx, "secret", "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for private deck, got %v", err)
	}
	if _, err := m.FetchDeck(ctx, "secret", "alice"); err != nil {
		t.Fatalf("owner must read a private deck: %v", err)
	}

	d, err := m.FetchDeck(ctx, "d1", "bob")
	if err != nil {
		t.Fatalf("public deck must be readable by anyone: %v", err)
	}
	d.Items["100"] = 99
	d2, _ := m.FetchDeck(ctx, "d1", "bob")
	if d2.Items["100"] != 2 {
		t.Fatalf("FetchDeck must return a copy; store was mutated")
	}
}

// TestMemoryStore_WriteOwnership: writes by a non-owner are rejected.
func TestMemoryStore_WriteOwnership(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()
	err := m.UpsertItems(ctx, "d1", "bob", deckstage.ItemMap{"1": 1}, Metadata{}, "c1")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner write, got %v", err)
	}
}

// TestMemoryStore_CommitIDDedup: reapplying the same commit id changes
// nothing, like the real adapters.
func TestMemoryStore_CommitIDDedup(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()

	if err := m.UpsertItems(ctx, "d1", "alice", deckstage.ItemMap{"100": 5}, Metadata{CardCount: 5}, "commit-a"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.DeleteItems(ctx, "d1", "alice", []string{"100"}, Metadata{}, "commit-a"); err != nil {
		t.Fatalf("dedup delete: %v", err)
	}
	d, _ := m.FetchDeck(ctx, "d1", "alice")
	if !reflect.DeepEqual(d.Items, deckstage.ItemMap{"100": 5}) {
		t.Fatalf("repeated commit id must be a no-op, items=%v", d.Items)
	}
}

// TestMemoryStore_UpsertDeleteRoundTrip verifies quantities and metadata
// written through upsert/delete cycles.
func TestMemoryStore_UpsertDeleteRoundTrip(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()

	meta := Metadata{CardCount: 7, ColorTags: []string{"Red"}}
	if err := m.UpsertItems(ctx, "d1", "alice", deckstage.ItemMap{"100": 4, "300": 3}, meta, "c1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.DeleteItems(ctx, "d1", "alice", []string{"100", "missing"}, Metadata{CardCount: 3}, "c2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	d, _ := m.FetchDeck(ctx, "d1", "alice")
	if !reflect.DeepEqual(d.Items, deckstage.ItemMap{"300": 3}) {
		t.Fatalf("items mismatch: %v", d.Items)
	}
	if d.CardCount != 3 {
		t.Fatalf("metadata not persisted: %+v", d)
	}
}

// TestMemoryStore_MetadataTouch: an empty upsert still lands metadata.
func TestMemoryStore_MetadataTouch(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()
	if err := m.UpsertItems(ctx, "d1", "alice", deckstage.ItemMap{}, Metadata{CardCount: 2, ColorTags: []string{"Blue"}}, "touch"); err != nil {
		t.Fatalf("touch upsert: %v", err)
	}
	d, _ := m.FetchDeck(ctx, "d1", "alice")
	if !reflect.DeepEqual(d.ColorTags, []string{"Blue"}) || d.CardCount != 2 {
		t.Fatalf("touch upsert must persist metadata: %+v", d)
	}
	if !reflect.DeepEqual(d.Items, deckstage.ItemMap{"100": 2}) {
		t.Fatalf("touch upsert must not change items: %v", d.Items)
	}
}

// TestMemoryStore_UpdateName renames and enforces ownership.
func TestMemoryStore_UpdateName(t *testing.T) {
	m := seedDeck(t)
	ctx := context.Background()
	if err := m.UpdateName(ctx, "d1", "bob", "stolen", Metadata{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := m.UpdateName(ctx, "d1", "alice", "control", Metadata{CardCount: 2}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	d, _ := m.FetchDeck(ctx, "d1", "alice")
	if d.Name != "control" {
		t.Fatalf("name not updated: %q", d.Name)
	}
}
