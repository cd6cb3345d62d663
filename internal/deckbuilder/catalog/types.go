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

// Package catalog plans paginated product queries against the external
// catalog API and merges their results for display next to an open deck.
// It holds no write authority over deck state.
package catalog

import "encoding/json"

// Product is one catalog entry. Attributes carry the extended data
// (Color, Rarity, ...) consumed by rule validation and filtering.
type Product struct {
	ID         string      `json:"product_id"`
	Name       string      `json:"name"`
	CardNumber string      `json:"card_number,omitempty"`
	GroupID    int         `json:"group_id,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Attributes []Attribute `json:"extended_data,omitempty"`
}

// Attribute is one extended-data key/value pair.
type Attribute struct {
	Key   string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON tolerates numeric product ids; the rest of the system treats
// refs as string-normalized.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		ID json.Number `json:"product_id"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID = aux.ID.String()
	return nil
}

// Page is one normalized page of catalog results.
type Page struct {
	Products []Product `json:"data"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	HasMore  bool      `json:"has_more"`
}
