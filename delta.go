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

// Package deckstage implements the deck staging and reconciliation core for a
// trading-card deck builder. It keeps a strict separation between committed
// (server-confirmed) deck state and staged local edits, computes the minimal
// delta between the two, and validates the merged result against per-category
// construction rules. The package is pure and deterministic: no I/O, no clocks.
package deckstage

import "sort"

// ItemMap maps a product reference (string-normalized catalog id) to a
// quantity. Committed maps never carry zero or negative quantities. Staged
// maps use the convention: key absent = no staged change (defer to base);
// value > 0 = override the quantity; value 0 = delete on apply, which is
// distinct from absence.
type ItemMap map[string]int

// Clone returns a copy of the map. A nil receiver clones to an empty map.
func (m ItemMap) Clone() ItemMap {
	out := make(ItemMap, len(m))
	for ref, qty := range m {
		out[ref] = qty
	}
	return out
}

// Total returns the sum of all quantities (the card count of a merged map).
func (m ItemMap) Total() int {
	total := 0
	for _, qty := range m {
		total += qty
	}
	return total
}

// Refs returns the keys in sorted order, for deterministic iteration.
func (m ItemMap) Refs() []string {
	refs := make([]string, 0, len(m))
	for ref := range m {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// QuantityChange carries the old and new quantity of an updated item.
type QuantityChange struct {
	Old int
	New int
}

// Delta is the minimal added/updated/removed set needed to move a store from
// the base map to the merged map. It is derived state: recompute on demand,
// never persist.
type Delta struct {
	Added   ItemMap
	Updated map[string]QuantityChange
	Removed []string
	Merged  ItemMap
}

// Empty reports whether the delta carries no changes to apply.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Upserts flattens Added and Updated into a single map of new quantities,
// the shape consumed by a bulk upsert call.
func (d Delta) Upserts() ItemMap {
	out := make(ItemMap, len(d.Added)+len(d.Updated))
	for ref, qty := range d.Added {
		out[ref] = qty
	}
	for ref, ch := range d.Updated {
		out[ref] = ch.New
	}
	return out
}

// Merge applies a staged map on top of a base map and returns the effective
// deck contents. Staged values > 0 override the base quantity; staged values
// <= 0 remove the item (explicit zero and any defensive negative). The result
// never contains a non-positive quantity, regardless of input.
func Merge(base, staged ItemMap) ItemMap {
	merged := make(ItemMap, len(base))
	for ref, qty := range base {
		if qty > 0 {
			merged[ref] = qty
		}
	}
	for ref, qty := range staged {
		if qty > 0 {
			merged[ref] = qty
		} else {
			delete(merged, ref)
		}
	}
	return merged
}

// ComputeDelta computes the minimal delta from base to Merge(base, staged).
//
// Removed contains refs present in base but absent from the merged result,
// plus any ref explicitly staged at exactly 0 that is not already captured;
// entries are deduplicated by ref and sorted. The second clause guards the
// case where a base-backed ref was re-added in error and set back to zero.
func ComputeDelta(base, staged ItemMap) Delta {
	merged := Merge(base, staged)
	d := Delta{
		Added:   ItemMap{},
		Updated: map[string]QuantityChange{},
		Merged:  merged,
	}

	for _, ref := range merged.Refs() {
		qty := merged[ref]
		old, inBase := base[ref]
		switch {
		case !inBase || old <= 0:
			d.Added[ref] = qty
		case old != qty:
			d.Updated[ref] = QuantityChange{Old: old, New: qty}
		}
	}

	removed := map[string]bool{}
	for ref, qty := range base {
		if qty <= 0 {
			continue
		}
		if _, ok := merged[ref]; !ok {
			removed[ref] = true
		}
	}
	for ref, qty := range staged {
		if qty == 0 && !removed[ref] {
			if _, ok := merged[ref]; !ok {
				removed[ref] = true
			}
		}
	}
	for ref := range removed {
		d.Removed = append(d.Removed, ref)
	}
	sort.Strings(d.Removed)
	return d
}

// DeriveStaged returns the staged map that transforms base into target:
// overrides for quantities that differ, zero sentinels for base refs absent
// from target. Merge(base, DeriveStaged(base, target)) reproduces target.
func DeriveStaged(base, target ItemMap) ItemMap {
	staged := ItemMap{}
	for ref, qty := range target {
		if qty <= 0 {
			continue
		}
		if baseQty, ok := base[ref]; !ok || baseQty != qty {
			staged[ref] = qty
		}
	}
	for ref, qty := range base {
		if qty <= 0 {
			continue
		}
		if _, ok := target[ref]; !ok {
			staged[ref] = 0
		}
	}
	return staged
}
