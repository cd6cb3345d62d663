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

// Package importer turns pasted deck lists into item maps. Parsing splits
// text into (quantity, card number) lines; matching resolves card numbers to
// product refs through a caller-supplied catalog index. The result feeds the
// staging import, which applies full-replace semantics.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"deckstage"
)

// ParsedLine is one recognized deck-list line.
type ParsedLine struct {
	Quantity   int    `json:"quantity"`
	CardNumber string `json:"card_number"`
	Raw        string `json:"raw"`
}

// ParseResult is the output of a Parser run.
type ParseResult struct {
	Parsed []ParsedLine `json:"parsed"`
	Errors []string     `json:"errors"`
	// CardNumbers lists the distinct numbers to resolve against the catalog.
	CardNumbers []string `json:"card_numbers"`
}

// Parser extracts deck-list lines from free text. Implementations own the
// format heuristics.
type Parser interface {
	Parse(text string) ParseResult
}

// LineParser handles the common "<qty> <card-number>" shape, with an
// optional x suffix on the quantity ("4x ST01-006"). Blank lines and
// comment lines starting with # or // are skipped.
type LineParser struct{}

func (LineParser) Parse(text string) ParseResult {
	var res ParseResult
	seen := map[string]bool{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			res.Errors = append(res.Errors, fmt.Sprintf("unrecognized line: %q", line))
			continue
		}
		qtyField := strings.TrimSuffix(strings.ToLower(fields[0]), "x")
		qty, err := strconv.Atoi(qtyField)
		if err != nil || qty <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("bad quantity in line: %q", line))
			continue
		}
		number := fields[1]
		res.Parsed = append(res.Parsed, ParsedLine{Quantity: qty, CardNumber: number, Raw: line})
		if !seen[number] {
			seen[number] = true
			res.CardNumbers = append(res.CardNumbers, number)
		}
	}
	return res
}

// MatchResult is the outcome of resolving parsed lines to products.
type MatchResult struct {
	// Items holds the resolved quantities; repeated lines for the same
	// product sum.
	Items    deckstage.ItemMap `json:"items"`
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// Match resolves parsed lines against a card-number index mapping each
// number to its candidate product refs. An unmatched number is an error; an
// ambiguous one (several candidates) picks the first and warns. The items
// map is what Staging.Import consumes.
func Match(parsed []ParsedLine, numberToProducts map[string][]string) MatchResult {
	res := MatchResult{Items: deckstage.ItemMap{}}
	for _, line := range parsed {
		candidates := numberToProducts[line.CardNumber]
		if len(candidates) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("no product matches card number %s", line.CardNumber))
			continue
		}
		if len(candidates) > 1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("card number %s matches %d products, using %s", line.CardNumber, len(candidates), candidates[0]))
		}
		res.Items[candidates[0]] += line.Quantity
	}
	return res
}
