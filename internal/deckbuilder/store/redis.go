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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deckstage"
)

// RedisClient abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 or any equivalent.
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// RedisStore persists decks in Redis hashes and applies writes idempotently
// using a Lua script:
//  1. SETNX commit:<deck>:<commit_id> 1
//  2. If set -> HSET/HDEL the item fields and HSET the meta hash
//  3. EXPIRE the marker (TTL) for leak protection
//
// If SETNX fails (already applied), the script returns 0 and makes no
// changes.
type RedisStore struct {
	client    RedisClient
	markerTTL time.Duration
}

// NewRedisStore returns a store with the given client and commit-marker TTL.
// Choose a TTL comfortably larger than your maximum retry window.
func NewRedisStore(client RedisClient, markerTTL time.Duration) *RedisStore {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisStore{client: client, markerTTL: markerTTL}
}

// Key layout helpers (public for interoperability with other components).
func RedisItemsKey(deckID string) string { return fmt.Sprintf("deck:%s:items", deckID) }
func RedisMetaKey(deckID string) string  { return fmt.Sprintf("deck:%s:meta", deckID) }
func RedisCommitMarkerKey(deckID, commitID string) string {
	return fmt.Sprintf("deckcommit:%s:%s", deckID, commitID)
}

// redisWriteScript applies one bulk write idempotently. Returns 1 if applied,
// 0 if the commit marker already existed.
//
// ARGV layout: ttlSeconds, cardCount, colorTagsJSON, nUpserts,
// then nUpserts (ref, qty) pairs, then the refs to delete.
const redisWriteScript = `
local itemsKey = KEYS[1]
local metaKey = KEYS[2]
local markerKey = KEYS[3]
local ttlSeconds = tonumber(ARGV[1])
local set = redis.call('SETNX', markerKey, 1)
if set == 0 then
  return 0
end
local n = tonumber(ARGV[4])
local i = 5
for _ = 1, n do
  redis.call('HSET', itemsKey, ARGV[i], ARGV[i+1])
  i = i + 2
end
while ARGV[i] do
  redis.call('HDEL', itemsKey, ARGV[i])
  i = i + 1
end
redis.call('HSET', metaKey, 'card_count', ARGV[2], 'color_tags', ARGV[3])
if ttlSeconds and ttlSeconds > 0 then
  redis.call('EXPIRE', markerKey, ttlSeconds)
end
return 1
`

// FetchDeck reads the items and meta hashes. Ownership fields live in the
// meta hash; a missing items hash with no meta means the deck is unknown.
func (r *RedisStore) FetchDeck(ctx context.Context, deckID, viewerID string) (Deck, error) {
	meta, err := r.client.HGetAll(ctx, RedisMetaKey(deckID))
	if err != nil {
		return Deck{}, &NetworkError{Op: "fetch meta", Err: err}
	}
	if len(meta) == 0 {
		return Deck{}, ErrNotFound
	}
	d := Deck{
		ID:         deckID,
		OwnerID:    meta["owner_id"],
		Name:       meta["name"],
		Private:    meta["private"] == "1",
		CategoryID: atoiDefault(meta["category_id"], 0),
		CardCount:  atoiDefault(meta["card_count"], 0),
		Items:      deckstage.ItemMap{},
	}
	if d.Private && viewerID != d.OwnerID {
		return Deck{}, ErrForbidden
	}
	if tags := meta["color_tags"]; tags != "" {
		if err := json.Unmarshal([]byte(tags), &d.ColorTags); err != nil {
			// Tolerate legacy comma-joined tags.
			d.ColorTags = strings.Split(tags, ",")
		}
	}
	fields, err := r.client.HGetAll(ctx, RedisItemsKey(deckID))
	if err != nil {
		return Deck{}, &NetworkError{Op: "fetch items", Err: err}
	}
	for ref, raw := range fields {
		if qty := atoiDefault(raw, 0); qty > 0 {
			d.Items[ref] = qty
		}
	}
	return d, nil
}

// UpsertItems applies the bulk upsert in a single EVAL.
func (r *RedisStore) UpsertItems(ctx context.Context, deckID, viewerID string, items deckstage.ItemMap, meta Metadata, commitID string) error {
	return r.write(ctx, "upsert", deckID, items, nil, meta, commitID)
}

// DeleteItems applies the bulk delete in a single EVAL.
func (r *RedisStore) DeleteItems(ctx context.Context, deckID, viewerID string, refs []string, meta Metadata, commitID string) error {
	return r.write(ctx, "delete", deckID, nil, refs, meta, commitID)
}

// UpdateName writes the name field of the meta hash.
func (r *RedisStore) UpdateName(ctx context.Context, deckID, viewerID, name string, meta Metadata) error {
	script := `redis.call('HSET', KEYS[1], 'name', ARGV[1], 'card_count', ARGV[2]) return 1`
	if _, err := r.client.Eval(ctx, script, []string{RedisMetaKey(deckID)}, name, meta.CardCount); err != nil {
		return &NetworkError{Op: "rename", Err: err}
	}
	return nil
}

func (r *RedisStore) write(ctx context.Context, op, deckID string, items deckstage.ItemMap, deletes []string, meta Metadata, commitID string) error {
	if commitID == "" {
		return errors.New("commitID must be set")
	}
	tags, err := json.Marshal(meta.ColorTags)
	if err != nil {
		return fmt.Errorf("marshal color tags: %w", err)
	}
	keys := []string{RedisItemsKey(deckID), RedisMetaKey(deckID), RedisCommitMarkerKey(deckID, commitID)}
	args := []interface{}{int(r.markerTTL.Seconds()), meta.CardCount, string(tags), len(items)}
	for _, ref := range items.Refs() {
		args = append(args, ref, items[ref])
	}
	for _, ref := range deletes {
		args = append(args, ref)
	}
	if _, err := r.client.Eval(ctx, redisWriteScript, keys, args...); err != nil {
		return &NetworkError{Op: fmt.Sprintf("%s deck=%s commit=%s", op, deckID, commitID), Err: err}
	}
	return nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
