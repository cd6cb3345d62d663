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
	"context"
	"errors"
	"sync"

	"deckstage/internal/deckbuilder/telemetry"
)

// ErrStalePage marks a page load whose query was superseded while the fetch
// was in flight. The result was discarded; callers just drop it.
var ErrStalePage = errors.New("catalog page superseded by a newer query")

// QuantityFunc resolves the effective deck quantity of a product ref, used to
// annotate listings. May be nil.
type QuantityFunc func(ref string) int

// AnnotatedProduct is a product plus its quantity in the open deck.
type AnnotatedProduct struct {
	Product
	Quantity int `json:"quantity"`
}

// Planner owns the filter/sort/search state of one catalog view and merges
// paginated results. Changing the query bumps a monotonically increasing
// generation token; a page fetched under an older generation is discarded
// when it lands, so a slow response can never overwrite a newer query's
// results. There is no hard abort of the request itself.
type Planner struct {
	client Client

	mu         sync.Mutex
	generation uint64
	query      Query
	nextPage   int
	products   []Product
	seen       map[string]bool
	total      int
	hasMore    bool
}

// NewPlanner creates a planner over the given client. It starts on page one
// of the zero query; call SetQuery before loading for anything else.
func NewPlanner(client Client) *Planner {
	return &Planner{client: client, seen: map[string]bool{}, nextPage: 1, hasMore: true}
}

// SetQuery installs a new query, clearing accumulated results and logically
// cancelling any in-flight page load.
func (p *Planner) SetQuery(q Query) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.query = q
	p.nextPage = 1
	p.products = nil
	p.seen = map[string]bool{}
	p.total = 0
	p.hasMore = true
}

// Generation returns the current query generation token.
func (p *Planner) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// LoadNextPage fetches the next page of the current query and merges it into
// the accumulated list, deduplicating by product id. Returns ErrStalePage if
// the query changed while the fetch was in flight; the accumulated list is
// untouched in that case.
func (p *Planner) LoadNextPage(ctx context.Context) ([]Product, error) {
	p.mu.Lock()
	if !p.hasMore && p.nextPage > 1 {
		list := append([]Product{}, p.products...)
		p.mu.Unlock()
		return list, nil
	}
	gen := p.generation
	q := p.query
	q.Page = p.nextPage
	p.mu.Unlock()

	var (
		page Page
		err  error
	)
	if q.Search != "" {
		page, err = p.client.Search(ctx, q.Search, q.Page, q.Limit)
	} else {
		page, err = p.client.Filter(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		telemetry.IncStalePageDiscarded()
		return nil, ErrStalePage
	}
	for _, prod := range page.Products {
		if prod.ID == "" || p.seen[prod.ID] {
			continue
		}
		p.seen[prod.ID] = true
		p.products = append(p.products, prod)
	}
	p.nextPage++
	p.total = page.Total
	p.hasMore = page.HasMore
	return append([]Product{}, p.products...), nil
}

// Products returns a snapshot of the accumulated list.
func (p *Planner) Products() []Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Product{}, p.products...)
}

// Total returns the server-reported total for the current query.
func (p *Planner) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// HasMore reports whether more pages remain.
func (p *Planner) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Annotate pairs each accumulated product with its deck quantity. A nil
// QuantityFunc annotates everything with zero.
func (p *Planner) Annotate(qty QuantityFunc) []AnnotatedProduct {
	products := p.Products()
	out := make([]AnnotatedProduct, 0, len(products))
	for _, prod := range products {
		n := 0
		if qty != nil {
			n = qty(prod.ID)
		}
		out = append(out, AnnotatedProduct{Product: prod, Quantity: n})
	}
	return out
}
