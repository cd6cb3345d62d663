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

// testAttrs builds an AttributeFunc from a static map for validation tests.
func testAttrs(m map[string][]Attribute) AttributeFunc {
	return func(ref string) []Attribute { return m[ref] }
}

// TestValidate_MaxDuplicates covers the base {A:2}, maxDuplicates=2,
// increment-A scenario: exactly one blocking violation naming the product.
func TestValidate_MaxDuplicates(t *testing.T) {
	merged := ItemMap{"A": 3}
	rules := RuleSet{MaxDuplicates: IntPtr(2)}

	vs := Validate(merged, rules, nil)
	if len(vs) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(vs), vs)
	}
	v := vs[0]
	if v.Kind != ViolationMaxDuplicates || v.Ref != "A" || !v.Blocking {
		t.Fatalf("unexpected violation: %+v", v)
	}
}

// TestValidate_ExtendedRule covers the three-colors-max-two scenario: one
// blocking violation per rule key, not per product.
func TestValidate_ExtendedRule(t *testing.T) {
	merged := ItemMap{"r": 1, "b": 2, "g": 1}
	rules := RuleSet{Extended: map[string]int{"Color": 2}}
	attrs := testAttrs(map[string][]Attribute{
		"r": {{Key: "Color", Value: "Red"}},
		"b": {{Key: "color", Value: "Blue"}}, // case-insensitive key match
		"g": {{Key: "Color", Value: "Green"}},
	})

	vs := Validate(merged, rules, attrs)
	if len(vs) != 1 {
		t.Fatalf("expected a single violation for the Color key, got %v", vs)
	}
	if vs[0].Kind != ViolationExtendedRule || vs[0].Key != "Color" || !vs[0].Blocking {
		t.Fatalf("unexpected violation: %+v", vs[0])
	}
}

// TestValidate_ExtendedRule_IgnoresZeroQuantityAndMissingKeys verifies refs
// with non-positive merged quantity and refs lacking the attribute do not
// count toward the distinct-value set, and that the first match per ref wins
// when keys are duplicated.
func TestValidate_ExtendedRule_IgnoresZeroQuantityAndMissingKeys(t *testing.T) {
	merged := ItemMap{"r": 1, "zero": 0, "noattr": 2, "dup": 1}
	rules := RuleSet{Extended: map[string]int{"Color": 1}}
	attrs := testAttrs(map[string][]Attribute{
		"r":    {{Key: "Color", Value: "Red"}},
		"zero": {{Key: "Color", Value: "Blue"}},
		"dup":  {{Key: "Color", Value: "Red"}, {Key: "Color", Value: "Black"}},
	})

	vs := Validate(merged, rules, attrs)
	// Only Red is collected: zero-quantity Blue is ignored, noattr contributes
	// nothing, dup resolves to its first Color value.
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

// TestValidate_DeckSizeWarningNonBlocking: deckSize=40 with 45 cards yields
// exactly one violation and it never blocks.
func TestValidate_DeckSizeWarningNonBlocking(t *testing.T) {
	merged := ItemMap{"a": 25, "b": 20}
	rules := RuleSet{DeckSize: IntPtr(40)}

	vs := Validate(merged, rules, nil)
	if len(vs) != 1 {
		t.Fatalf("expected 1 violation, got %v", vs)
	}
	if vs[0].Kind != ViolationDeckSize || vs[0].Blocking {
		t.Fatalf("deck_size must be non-blocking: %+v", vs[0])
	}
	if HasBlocking(vs) {
		t.Fatalf("HasBlocking must be false for a lone deck_size warning")
	}
}

// TestValidate_Deterministic runs the same validation repeatedly and expects
// identical output every time.
func TestValidate_Deterministic(t *testing.T) {
	merged := ItemMap{"a": 5, "b": 5, "c": 5}
	rules := RuleSet{
		MaxDuplicates: IntPtr(4),
		DeckSize:      IntPtr(10),
		Extended:      map[string]int{"Color": 1, "Rarity": 1},
	}
	attrs := testAttrs(map[string][]Attribute{
		"a": {{Key: "Color", Value: "Red"}, {Key: "Rarity", Value: "Common"}},
		"b": {{Key: "Color", Value: "Blue"}, {Key: "Rarity", Value: "Rare"}},
		"c": {{Key: "Color", Value: "Green"}},
	})

	first := Validate(merged, rules, attrs)
	for i := 0; i < 10; i++ {
		if got := Validate(merged, rules, attrs); !reflect.DeepEqual(got, first) {
			t.Fatalf("validation output not deterministic: run %d got %v want %v", i, got, first)
		}
	}
	// 3 max_duplicates + 2 extended + 1 deck_size
	if len(first) != 6 {
		t.Fatalf("expected 6 violations, got %d: %v", len(first), first)
	}
}

// TestValidate_NilRules confirms an empty rule set passes everything.
func TestValidate_NilRules(t *testing.T) {
	if vs := Validate(ItemMap{"a": 99}, RuleSet{}, nil); len(vs) != 0 {
		t.Fatalf("expected no violations with empty rules, got %v", vs)
	}
}
