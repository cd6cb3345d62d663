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
	"fmt"
	"sort"
	"strings"
)

// RuleSet holds the construction rules of one category. Fetched externally,
// read-only here. Nil pointer fields disable the corresponding check.
type RuleSet struct {
	// MaxDuplicates caps the quantity of any single product.
	MaxDuplicates *int
	// DeckSize is a soft cap on the total card count. Exceeding it produces
	// a warning, never a blocking violation: product decision, users may
	// build oversized decks.
	DeckSize *int
	// Extended maps an attribute key (e.g. "Color") to the maximum number of
	// distinct values allowed across all cards in the deck.
	Extended map[string]int
}

// Violation kinds.
const (
	ViolationMaxDuplicates = "max_duplicates"
	ViolationExtendedRule  = "extended_rule"
	ViolationDeckSize      = "deck_size"
)

// Violation is one rule violation found in a merged deck.
type Violation struct {
	Kind     string `json:"kind"`
	Ref      string `json:"ref,omitempty"` // offending product, max_duplicates only
	Key      string `json:"key,omitempty"` // rule key, extended_rule only
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Attribute is one extended-data key/value pair of a product.
type Attribute struct {
	Key   string
	Value string
}

// AttributeFunc resolves the extended attributes of a product ref. It may
// return nil for unknown refs. Implementations must be pure with respect to
// a single validation pass.
type AttributeFunc func(ref string) []Attribute

// attributeValue returns the value of the first attribute whose key matches
// case-insensitively, tolerating missing and duplicate keys.
func attributeValue(attrs []Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if strings.EqualFold(a.Key, key) {
			return a.Value, true
		}
	}
	return "", false
}

// Validate evaluates a merged deck against a rule set and returns every
// violation found. Output is deterministic for identical inputs: refs and
// rule keys are visited in sorted order. attrs may be nil, which disables
// the extended-rule checks. Refs with non-positive quantity are ignored.
func Validate(merged ItemMap, rules RuleSet, attrs AttributeFunc) []Violation {
	var out []Violation

	if rules.MaxDuplicates != nil {
		max := *rules.MaxDuplicates
		for _, ref := range merged.Refs() {
			if qty := merged[ref]; qty > max {
				out = append(out, Violation{
					Kind:     ViolationMaxDuplicates,
					Ref:      ref,
					Message:  fmt.Sprintf("product %s has %d copies, limit is %d", ref, qty, max),
					Blocking: true,
				})
			}
		}
	}

	if attrs != nil && len(rules.Extended) > 0 {
		keys := make([]string, 0, len(rules.Extended))
		for key := range rules.Extended {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			maxUnique := rules.Extended[key]
			values := map[string]bool{}
			for _, ref := range merged.Refs() {
				if merged[ref] <= 0 {
					continue
				}
				if v, ok := attributeValue(attrs(ref), key); ok {
					values[v] = true
				}
			}
			if len(values) > maxUnique {
				// One violation per rule key, not per product.
				out = append(out, Violation{
					Kind:     ViolationExtendedRule,
					Key:      key,
					Message:  fmt.Sprintf("deck uses %d distinct %s values, limit is %d", len(values), key, maxUnique),
					Blocking: true,
				})
			}
		}
	}

	if rules.DeckSize != nil {
		if total := merged.Total(); total > *rules.DeckSize {
			out = append(out, Violation{
				Kind:     ViolationDeckSize,
				Message:  fmt.Sprintf("deck has %d cards, recommended size is %d", total, *rules.DeckSize),
				Blocking: false,
			})
		}
	}

	return out
}

// HasBlocking reports whether any violation in the list blocks a commit.
func HasBlocking(violations []Violation) bool {
	for _, v := range violations {
		if v.Blocking {
			return true
		}
	}
	return false
}

// IntPtr is a convenience for building RuleSet literals.
func IntPtr(v int) *int { return &v }
