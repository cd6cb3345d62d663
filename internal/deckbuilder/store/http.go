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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckstage"
)

// HTTPStore talks to the deck-lists REST API:
//
//	GET    /deck-lists/{id}          fetch
//	POST   /deck-lists/{id}/items    bulk upsert {items, card_count, color_tags}
//	DELETE /deck-lists/{id}/items    bulk delete {product_ids, card_count, color_tags}
//	PATCH  /deck-lists/{id}          rename {name}
//
// Commit IDs travel in the X-Commit-Id header; the backend treats a repeated
// id as an acknowledged no-op, which makes retries after timeouts safe.
type HTTPStore struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewHTTPStore creates an adapter for the given base URL. A nil client gets
// a default with a 15s timeout.
func NewHTTPStore(baseURL, authToken string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPStore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    client,
	}
}

// deckEnvelope decodes the heterogeneous response shapes the backend has
// produced over time. Normalization happens here, once, at the boundary:
// either a bare deck object or a {data: {...}} wrapper is accepted.
type deckEnvelope struct {
	Data *deckPayload `json:"data"`
	deckPayload
}

type deckPayload struct {
	DeckListID json.Number       `json:"deck_list_id"`
	UserID     string            `json:"user_id"`
	Name       string            `json:"name"`
	CategoryID int               `json:"category_id"`
	Private    bool              `json:"private"`
	Items      map[string]int    `json:"items"`
	CardCount  int               `json:"card_count"`
	ColorTags  []string          `json:"color_tags"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (e deckEnvelope) deck() deckPayload {
	if e.Data != nil {
		return *e.Data
	}
	return e.deckPayload
}

// FetchDeck loads a deck by id.
func (h *HTTPStore) FetchDeck(ctx context.Context, deckID, viewerID string) (Deck, error) {
	resp, err := h.do(ctx, http.MethodGet, "/deck-lists/"+deckID, nil, "")
	if err != nil {
		return Deck{}, &NetworkError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Deck{}, ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return Deck{}, ErrForbidden
	default:
		return Deck{}, &NetworkError{Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var env deckEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return Deck{}, &NetworkError{Op: "fetch decode", Err: err}
	}
	p := env.deck()
	d := Deck{
		ID:         p.DeckListID.String(),
		OwnerID:    p.UserID,
		Name:       p.Name,
		CategoryID: p.CategoryID,
		Private:    p.Private,
		Items:      deckstage.ItemMap{},
		CardCount:  p.CardCount,
		ColorTags:  p.ColorTags,
		UpdatedAt:  p.UpdatedAt,
	}
	if d.ID == "" {
		d.ID = deckID
	}
	// Positive-quantity normalization, mirroring the backend's own rule.
	for ref, qty := range p.Items {
		if qty > 0 {
			d.Items[ref] = qty
		}
	}
	return d, nil
}

// UpsertItems posts the bulk upsert. An empty items map is a metadata touch.
func (h *HTTPStore) UpsertItems(ctx context.Context, deckID, viewerID string, items deckstage.ItemMap, meta Metadata, commitID string) error {
	body := map[string]interface{}{
		"items":      items,
		"card_count": meta.CardCount,
		"color_tags": meta.ColorTags,
	}
	return h.writeCall(ctx, "upsert", http.MethodPost, "/deck-lists/"+deckID+"/items", body, commitID)
}

// DeleteItems issues the bulk delete.
func (h *HTTPStore) DeleteItems(ctx context.Context, deckID, viewerID string, refs []string, meta Metadata, commitID string) error {
	body := map[string]interface{}{
		"product_ids": refs,
		"card_count":  meta.CardCount,
		"color_tags":  meta.ColorTags,
	}
	return h.writeCall(ctx, "delete", http.MethodDelete, "/deck-lists/"+deckID+"/items", body, commitID)
}

// UpdateName patches the deck name.
func (h *HTTPStore) UpdateName(ctx context.Context, deckID, viewerID, name string, meta Metadata) error {
	body := map[string]interface{}{"name": name}
	return h.writeCall(ctx, "rename", http.MethodPatch, "/deck-lists/"+deckID, body, "")
}

func (h *HTTPStore) writeCall(ctx context.Context, op, method, path string, body interface{}, commitID string) error {
	resp, err := h.do(ctx, method, path, body, commitID)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return ErrForbidden
	default:
		return &NetworkError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

func (h *HTTPStore) do(ctx context.Context, method, path string, body interface{}, commitID string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}
	if commitID != "" {
		req.Header.Set("X-Commit-Id", commitID)
	}
	return h.client.Do(req)
}
