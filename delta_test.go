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

import (
	"reflect"
	"testing"
)

// TestMerge_OverridesAndRemovals verifies the three staged conventions:
// absent key defers to base, positive value overrides, zero removes.
func TestMerge_OverridesAndRemovals(t *testing.T) {
	base := ItemMap{"100": 2, "200": 1, "300": 4}
	staged := ItemMap{"100": 5, "200": 0, "400": 3}

	merged := Merge(base, staged)
	want := ItemMap{"100": 5, "300": 4, "400": 3}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("merged mismatch: got %v want %v", merged, want)
	}
}

// TestMerge_NeverLeaksNonPositive ensures no combination of inputs puts a
// zero or negative quantity into the merged result.
func TestMerge_NeverLeaksNonPositive(t *testing.T) {
	base := ItemMap{"a": 0, "b": -2, "c": 3}
	staged := ItemMap{"c": -1, "d": 0, "e": -7, "f": 1}

	merged := Merge(base, staged)
	for ref, qty := range merged {
		if qty <= 0 {
			t.Fatalf("merged leaked non-positive quantity %d for ref %s", qty, ref)
		}
	}
	want := ItemMap{"f": 1}
	if !reflect.DeepEqual(merged, want) {
		t.Fatalf("merged mismatch: got %v want %v", merged, want)
	}
}

// TestComputeDelta_Partition checks the added/updated/removed partition on a
// mixed staged map.
func TestComputeDelta_Partition(t *testing.T) {
	base := ItemMap{"100": 2, "200": 1, "300": 4}
	staged := ItemMap{"100": 3, "200": 0, "400": 2}

	d := ComputeDelta(base, staged)

	if !reflect.DeepEqual(d.Added, ItemMap{"400": 2}) {
		t.Fatalf("added mismatch: %v", d.Added)
	}
	wantUpd := map[string]QuantityChange{"100": {Old: 2, New: 3}}
	if !reflect.DeepEqual(d.Updated, wantUpd) {
		t.Fatalf("updated mismatch: %v", d.Updated)
	}
	if !reflect.DeepEqual(d.Removed, []string{"200"}) {
		t.Fatalf("removed mismatch: %v", d.Removed)
	}
	if !reflect.DeepEqual(d.Merged, ItemMap{"100": 3, "300": 4, "400": 2}) {
		t.Fatalf("merged mismatch: %v", d.Merged)
	}
}

// TestComputeDelta_UnchangedEntriesAbsent verifies that entries with equal
// base and staged quantity appear in neither Added nor Updated.
func TestComputeDelta_UnchangedEntriesAbsent(t *testing.T) {
	base := ItemMap{"1": 2, "2": 3}
	staged := ItemMap{"1": 2}

	d := ComputeDelta(base, staged)
	if len(d.Added) != 0 || len(d.Updated) != 0 || len(d.Removed) != 0 {
		t.Fatalf("expected empty delta, got %+v", d)
	}
	if !d.Empty() {
		t.Fatalf("Empty() should report true for a no-change delta")
	}
}

// TestComputeDelta_ExplicitZeroDeduped covers the re-added-then-zeroed guard:
// a base-backed ref staged at exactly zero is reported once in Removed.
func TestComputeDelta_ExplicitZeroDeduped(t *testing.T) {
	base := ItemMap{"9": 1}
	staged := ItemMap{"9": 0}

	d := ComputeDelta(base, staged)
	if !reflect.DeepEqual(d.Removed, []string{"9"}) {
		t.Fatalf("expected single removal of 9, got %v", d.Removed)
	}
}

// TestComputeDelta_MergeInverse checks the delta/merge inverse property:
// re-deriving with the merged result as the new base and the re-derived
// staged map yields the merged result itself.
func TestComputeDelta_MergeInverse(t *testing.T) {
	base := ItemMap{"1": 4, "2": 2, "3": 1}
	staged := ItemMap{"1": 6, "3": 0, "4": 2}

	d := ComputeDelta(base, staged)
	rederived := Merge(d.Merged, DeriveStaged(d.Merged, d.Merged))
	if !reflect.DeepEqual(rederived, d.Merged) {
		t.Fatalf("merge inverse broken: got %v want %v", rederived, d.Merged)
	}

	// DeriveStaged against the original base must reproduce the merged view.
	if got := Merge(base, DeriveStaged(base, d.Merged)); !reflect.DeepEqual(got, d.Merged) {
		t.Fatalf("DeriveStaged round trip broken: got %v want %v", got, d.Merged)
	}
}

// TestDelta_Upserts verifies the bulk-upsert flattening used by apply.
func TestDelta_Upserts(t *testing.T) {
	d := Delta{
		Added:   ItemMap{"a": 1},
		Updated: map[string]QuantityChange{"b": {Old: 1, New: 4}},
	}
	want := ItemMap{"a": 1, "b": 4}
	if got := d.Upserts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("upserts mismatch: got %v want %v", got, want)
	}
}

// TestItemMap_Helpers exercises Clone, Total, and sorted Refs.
func TestItemMap_Helpers(t *testing.T) {
	m := ItemMap{"b": 2, "a": 1}
	c := m.Clone()
	c["a"] = 9
	if m["a"] != 1 {
		t.Fatalf("Clone must not alias the original")
	}
	if m.Total() != 3 {
		t.Fatalf("Total mismatch: %d", m.Total())
	}
	if !reflect.DeepEqual(m.Refs(), []string{"a", "b"}) {
		t.Fatalf("Refs not sorted: %v", m.Refs())
	}
}
