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
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// SortKey is one (column, direction) pair of a composite ordering. The
// canonical internal representation is always the ordered list; the legacy
// single-column sort_by/sort_order shape exists only at the URL boundary.
type SortKey struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Query is the full filter/sort/search state of one catalog view.
type Query struct {
	CategoryID int
	GroupIDs   []int
	Search     string
	// Refs restricts results to the given product ids (deck-only and
	// owned-only views).
	Refs []string
	// Filters maps an attribute name to accepted values.
	Filters map[string][]string
	Sort    []SortKey
	Page    int
	Limit   int
}

// filterParamPrefix marks attribute filter parameters: filter_Color=Red.
const filterParamPrefix = "filter_"

// EncodeQuery serializes a query to URL parameters. The encoding is the
// persisted-preference format: multi-column sort joins as "col-dir,col-dir",
// attribute filters repeat as filter_<Attribute>=<value>. DecodeQuery of the
// output reproduces the query.
func EncodeQuery(q Query) url.Values {
	v := url.Values{}
	if q.CategoryID != 0 {
		v.Set("category_id", strconv.Itoa(q.CategoryID))
	}
	for _, g := range q.GroupIDs {
		v.Add("group_id", strconv.Itoa(g))
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	for _, ref := range q.Refs {
		v.Add("ref", ref)
	}
	if len(q.Filters) > 0 {
		names := make([]string, 0, len(q.Filters))
		for name := range q.Filters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, val := range q.Filters[name] {
				v.Add(filterParamPrefix+name, val)
			}
		}
	}
	if len(q.Sort) > 0 {
		parts := make([]string, 0, len(q.Sort))
		for _, k := range q.Sort {
			dir := k.Direction
			if dir != Desc {
				dir = Asc
			}
			parts = append(parts, k.Column+"-"+dir)
		}
		v.Set("sort", strings.Join(parts, ","))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// DecodeQuery parses URL parameters into a query. Three sort shapes are
// accepted: the canonical "sort=col-dir,col-dir", the legacy single-column
// "sort=col-dir", and the older still sort_by/sort_order parameter pair.
// All collapse to the canonical SortKey list.
func DecodeQuery(v url.Values) Query {
	q := Query{}
	if s := v.Get("category_id"); s != "" {
		q.CategoryID, _ = strconv.Atoi(s)
	}
	for _, s := range v["group_id"] {
		if g, err := strconv.Atoi(s); err == nil {
			q.GroupIDs = append(q.GroupIDs, g)
		}
	}
	q.Search = v.Get("q")
	q.Refs = append(q.Refs, v["ref"]...)
	for name, vals := range v {
		if !strings.HasPrefix(name, filterParamPrefix) {
			continue
		}
		attr := strings.TrimPrefix(name, filterParamPrefix)
		if attr == "" {
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string][]string{}
		}
		q.Filters[attr] = append(q.Filters[attr], vals...)
	}

	if s := v.Get("sort"); s != "" {
		q.Sort = parseSortList(s)
	} else if col := v.Get("sort_by"); col != "" {
		dir := v.Get("sort_order")
		if dir != Desc {
			dir = Asc
		}
		q.Sort = []SortKey{{Column: col, Direction: dir}}
	}

	if s := v.Get("page"); s != "" {
		q.Page, _ = strconv.Atoi(s)
	}
	if s := v.Get("limit"); s != "" {
		q.Limit, _ = strconv.Atoi(s)
	}
	return q
}

// parseSortList parses "col-dir,col-dir". A part with no direction suffix
// defaults to ascending. Column names may themselves contain hyphens; only
// a trailing -asc/-desc is treated as a direction.
func parseSortList(s string) []SortKey {
	var keys []SortKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		col, dir := part, Asc
		if strings.HasSuffix(part, "-"+Desc) {
			col, dir = strings.TrimSuffix(part, "-"+Desc), Desc
		} else if strings.HasSuffix(part, "-"+Asc) {
			col = strings.TrimSuffix(part, "-"+Asc)
		}
		if col == "" {
			continue
		}
		keys = append(keys, SortKey{Column: col, Direction: dir})
	}
	return keys
}

// CacheKey returns a stable string identifying the query, used by the
// caching client wrapper.
func CacheKey(q Query) string {
	return EncodeQuery(q).Encode()
}
