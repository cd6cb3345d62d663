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

// Package deckstore provides idempotent deck storage adapters for HTTP,
// Redis, Postgres, and an in-memory backend.
//
// All write operations carry a commitID: a globally unique idempotency key
// for the bulk call. If a call is retried (crash, timeout, duplicate
// delivery), applying it again with the same commitID is a no-op. Callers
// are responsible for keeping commitIDs stable across retries of the same
// logical call; UUIDs are the typical choice.
package deckstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckstage"
)

// Deck is the server-side representation of one deck list.
type Deck struct {
	ID         string            `json:"deck_list_id"`
	OwnerID    string            `json:"user_id"`
	Name       string            `json:"name"`
	CategoryID int               `json:"category_id"`
	Private    bool              `json:"private"`
	Items      deckstage.ItemMap `json:"items"`
	CardCount  int               `json:"card_count"`
	ColorTags  []string          `json:"color_tags,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Metadata is the derived deck metadata persisted alongside item writes.
// The backing store recomputes nothing: card count and color tags are
// computed client-side from the merged set and written through, including on
// metadata-only "touch" upserts with an empty item set.
type Metadata struct {
	CardCount int      `json:"card_count"`
	ColorTags []string `json:"color_tags,omitempty"`
}

// Store is the boundary contract to the backing deck store.
//
// Implementations must be idempotent per commitID for UpsertItems and
// DeleteItems, and must be safe to retry after a timeout. DeleteItems on
// refs the store does not hold is a successful no-op for those refs.
type Store interface {
	// FetchDeck loads a deck. Fails with ErrNotFound for unknown IDs and
	// ErrForbidden for a private deck fetched by a non-owner.
	FetchDeck(ctx context.Context, deckID, viewerID string) (Deck, error)
	// UpsertItems overwrites the quantities of the given refs and persists
	// the metadata. An empty items map is a valid metadata touch.
	UpsertItems(ctx context.Context, deckID, viewerID string, items deckstage.ItemMap, meta Metadata, commitID string) error
	// DeleteItems removes the given refs and persists the metadata.
	DeleteItems(ctx context.Context, deckID, viewerID string, refs []string, meta Metadata, commitID string) error
	// UpdateName renames the deck.
	UpdateName(ctx context.Context, deckID, viewerID, name string, meta Metadata) error
}

// Sentinel errors surfaced as terminal page-level failures.
var (
	ErrNotFound  = errors.New("deck not found")
	ErrForbidden = errors.New("deck is private")
)

// NetworkError wraps a transport-level failure of a single call. The core
// never retries automatically; callers decide. Retrying the same call with
// the same commitID is safe against all adapters.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("deck store %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
