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
	"errors"
	"fmt"

	"deckstage"
)

var (
	// ErrPermissionDenied rejects mutations from a viewer who does not own
	// the deck.
	ErrPermissionDenied = errors.New("viewer may not edit this deck")
	// ErrApplyInFlight rejects an apply while another apply on the same
	// session has not finished.
	ErrApplyInFlight = errors.New("apply already in flight")
	// ErrNotLoaded rejects operations on a session with no deck loaded.
	ErrNotLoaded = errors.New("no deck loaded")
)

// ValidationError aborts an apply when blocking violations are present.
// Staged edits are retained so the user can fix the deck and retry.
type ValidationError struct {
	Violations []deckstage.Violation
}

func (e *ValidationError) Error() string {
	n := 0
	for _, v := range e.Violations {
		if v.Blocking {
			n++
		}
	}
	return fmt.Sprintf("deck violates %d blocking rule(s)", n)
}

// PartialError reports an apply where the bulk upsert landed but the bulk
// delete did not. Succeeded holds the quantities now confirmed server-side;
// Failed holds the refs still pending removal, which stay staged as explicit
// zero sentinels so the next apply retries only them.
type PartialError struct {
	Succeeded deckstage.ItemMap
	Failed    []string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial apply: %d upserts landed, %d deletes pending: %v", len(e.Succeeded), len(e.Failed), e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }
