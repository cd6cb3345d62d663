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

// Package rules fetches per-category construction rule sets from the
// external rule source and caches them with a short TTL.
package rules

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
	"deckstage/internal/deckbuilder/cache"
	"deckstage/internal/deckbuilder/telemetry"
)

// Source resolves the rule set of a category. Implementations must treat the
// returned rule set as read-only shared state.
type Source interface {
	FetchRules(ctx context.Context, categoryID int) (deckstage.RuleSet, error)
}

// StaticSource serves a fixed rule set for every category. Demo and tests.
type StaticSource struct {
	Rules deckstage.RuleSet
}

func (s StaticSource) FetchRules(ctx context.Context, categoryID int) (deckstage.RuleSet, error) {
	return s.Rules, nil
}

// ruleSetPayload is the wire shape of one rule set.
type ruleSetPayload struct {
	CategoryID    int            `json:"category_id"`
	MaxDuplicates *int           `json:"max_duplicates"`
	DeckSize      *int           `json:"deck_size"`
	Extended      map[string]int `json:"extended_rules"`
}

func (p ruleSetPayload) toRuleSet() deckstage.RuleSet {
	return deckstage.RuleSet{
		MaxDuplicates: p.MaxDuplicates,
		DeckSize:      p.DeckSize,
		Extended:      p.Extended,
	}
}

// HTTPSource fetches rules from the rule source API. The endpoint may return
// either a single rule-set object (queried by id) or an array; both shapes
// are normalized here at the boundary.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a rule source client. A nil http.Client gets a
// default with a 10s timeout.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// FetchRules loads the rule set for a category.
func (h *HTTPSource) FetchRules(ctx context.Context, categoryID int) (deckstage.RuleSet, error) {
	url := fmt.Sprintf("%s/categories/%d/rules", h.baseURL, categoryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return deckstage.RuleSet{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return deckstage.RuleSet{}, fmt.Errorf("rules fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return deckstage.RuleSet{}, fmt.Errorf("rules fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return deckstage.RuleSet{}, fmt.Errorf("rules read: %w", err)
	}
	return decodeRules(body, categoryID)
}

// decodeRules accepts a single object or an array. In the array shape the
// entry matching categoryID wins; with no match the first entry is used.
func decodeRules(body []byte, categoryID int) (deckstage.RuleSet, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []ruleSetPayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return deckstage.RuleSet{}, fmt.Errorf("rules decode: %w", err)
		}
		if len(list) == 0 {
			return deckstage.RuleSet{}, nil
		}
		for _, p := range list {
			if p.CategoryID == categoryID {
				return p.toRuleSet(), nil
			}
		}
		return list[0].toRuleSet(), nil
	}
	var p ruleSetPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return deckstage.RuleSet{}, fmt.Errorf("rules decode: %w", err)
	}
	return p.toRuleSet(), nil
}

// CachedSource wraps any Source with a TTL cache keyed by category.
type CachedSource struct {
	inner Source
	sets  *cache.Cache[int, deckstage.RuleSet]
}

// NewCachedSource creates the caching wrapper.
func NewCachedSource(inner Source, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, sets: cache.New[int, deckstage.RuleSet](ttl)}
}

func (c *CachedSource) FetchRules(ctx context.Context, categoryID int) (deckstage.RuleSet, error) {
	if rs, ok := c.sets.Get(categoryID); ok {
		telemetry.IncCacheHit()
		return rs, nil
	}
	telemetry.IncCacheMiss()
	rs, err := c.inner.FetchRules(ctx, categoryID)
	if err != nil {
		return deckstage.RuleSet{}, err
	}
	c.sets.Set(categoryID, rs)
	return rs, nil
}
