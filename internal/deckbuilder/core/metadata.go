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

package core

import (
	"sort"
	"strings"

	"deckstage"
	deckstore "deckstage/internal/deckbuilder/store"
)

// colorAttributeKey is the extended-data key that feeds the deck color tags.
const colorAttributeKey = "Color"

// DeriveMetadata computes the denormalized deck metadata shipped with every
// bulk write: the card count is the sum of merged quantities, and the color
// tags are the distinct Color attribute values ordered by total quantity
// descending, name ascending on ties. attrs may be nil, which yields no tags.
func DeriveMetadata(merged deckstage.ItemMap, attrs deckstage.AttributeFunc) deckstore.Metadata {
	meta := deckstore.Metadata{CardCount: merged.Total()}
	if attrs == nil {
		return meta
	}

	weights := map[string]int{}
	for ref, qty := range merged {
		if qty <= 0 {
			continue
		}
		for _, a := range attrs(ref) {
			// Key match is case-insensitive, same as rule validation.
			if strings.EqualFold(a.Key, colorAttributeKey) && a.Value != "" {
				weights[a.Value] += qty
			}
		}
	}
	if len(weights) == 0 {
		return meta
	}

	tags := make([]string, 0, len(weights))
	for tag := range weights {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if weights[tags[i]] != weights[tags[j]] {
			return weights[tags[i]] > weights[tags[j]]
		}
		return tags[i] < tags[j]
	})
	meta.ColorTags = tags
	return meta
}
