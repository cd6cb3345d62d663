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

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckstage/internal/deckbuilder/cache"
	"deckstage/internal/deckbuilder/telemetry"
)

// Client queries the catalog. Filter covers category browsing with
// filters/sort/refs; Search is the free-text endpoint.
type Client interface {
	Filter(ctx context.Context, q Query) (Page, error)
	Search(ctx context.Context, text string, page, limit int) (Page, error)
}

// HTTPClient talks to the catalog REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a catalog client. A nil http.Client gets a default
// with a 15s timeout.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Filter runs a structured catalog query.
func (h *HTTPClient) Filter(ctx context.Context, q Query) (Page, error) {
	return h.get(ctx, "/catalog/products?"+EncodeQuery(q).Encode())
}

// Search runs a free-text query.
func (h *HTTPClient) Search(ctx context.Context, text string, page, limit int) (Page, error) {
	q := Query{Search: text, Page: page, Limit: limit}
	return h.get(ctx, "/catalog/search?"+EncodeQuery(q).Encode())
}

func (h *HTTPClient) get(ctx context.Context, path string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return Page{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("catalog fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("catalog fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Page{}, fmt.Errorf("catalog read: %w", err)
	}
	return NormalizePage(body)
}

// NormalizePage decodes the heterogeneous envelope shapes the catalog API has
// produced over time: {data: [...]}, {products: [...]}, {results: [...]}, or
// a bare array. All shape-sniffing lives here, once, at the boundary.
func NormalizePage(body []byte) (Page, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var products []Product
		if err := json.Unmarshal(trimmed, &products); err != nil {
			return Page{}, fmt.Errorf("catalog decode: %w", err)
		}
		return Page{Products: products, Total: len(products)}, nil
	}

	var env struct {
		Data     []Product `json:"data"`
		Products []Product `json:"products"`
		Results  []Product `json:"results"`
		Total    int       `json:"total"`
		Page     int       `json:"page"`
		Limit    int       `json:"limit"`
		HasMore  bool      `json:"has_more"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, fmt.Errorf("catalog decode: %w", err)
	}
	p := Page{Total: env.Total, Page: env.Page, Limit: env.Limit, HasMore: env.HasMore}
	switch {
	case env.Data != nil:
		p.Products = env.Data
	case env.Products != nil:
		p.Products = env.Products
	case env.Results != nil:
		p.Products = env.Results
	}
	if p.Total == 0 {
		p.Total = len(p.Products)
	}
	return p, nil
}

// CachedClient wraps a Client with a short-TTL response cache keyed by the
// encoded query. Staleness beyond the TTL is resolved by refetching.
type CachedClient struct {
	inner Client
	pages *cache.Cache[string, Page]
}

// NewCachedClient creates the caching wrapper.
func NewCachedClient(inner Client, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, pages: cache.New[string, Page](ttl)}
}

func (c *CachedClient) Filter(ctx context.Context, q Query) (Page, error) {
	key := "f:" + CacheKey(q)
	if page, ok := c.pages.Get(key); ok {
		telemetry.IncCacheHit()
		return page, nil
	}
	telemetry.IncCacheMiss()
	page, err := c.inner.Filter(ctx, q)
	if err != nil {
		return Page{}, err
	}
	c.pages.Set(key, page)
	return page, nil
}

func (c *CachedClient) Search(ctx context.Context, text string, page, limit int) (Page, error) {
	key := fmt.Sprintf("s:%s:%d:%d", text, page, limit)
	if p, ok := c.pages.Get(key); ok {
		telemetry.IncCacheHit()
		return p, nil
	}
	telemetry.IncCacheMiss()
	p, err := c.inner.Search(ctx, text, page, limit)
	if err != nil {
		return Page{}, err
	}
	c.pages.Set(key, p)
	return p, nil
}
