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
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deckstage"
	deckstore "deckstage/internal/deckbuilder/store"
	"deckstage/internal/deckbuilder/telemetry"
)

// ApplyRecord is one journal line describing a finished apply.
type ApplyRecord struct {
	DeckID   string    `json:"deck_id"`
	ViewerID string    `json:"viewer_id"`
	CommitID string    `json:"commit_id"`
	Upserts  int       `json:"upserts"`
	Deletes  int       `json:"deletes"`
	Partial  bool      `json:"partial"`
	At       time.Time `json:"at"`
}

// Journal receives a record per apply, success or partial. Implementations
// must be safe for concurrent use.
type Journal interface {
	Record(rec ApplyRecord) error
}

// Reconciler pushes staged deck edits to the durable store. Each apply is
// validated, partitioned into one bulk upsert and one bulk delete, and
// executed under a fresh commit id per call so that retries after timeouts
// are idempotent on the store side.
type Reconciler struct {
	store   deckstore.Store
	attrs   deckstage.AttributeFunc
	journal Journal
}

// NewReconciler creates a reconciler. attrs is the default product attribute
// resolver for validation and metadata (callers with fresher catalog data
// pass their own per call); journal may be nil to disable the apply journal.
func NewReconciler(store deckstore.Store, attrs deckstage.AttributeFunc, journal Journal) *Reconciler {
	return &Reconciler{store: store, attrs: attrs, journal: journal}
}

// Apply reconciles the session's staged edits with the store.
//
// The sequence:
//  1. Snapshot base and delta, validate the merged deck. Blocking violations
//     abort with ValidationError; staged edits stay put.
//  2. Empty delta short-circuits with no network calls.
//  3. The bulk upsert goes out first, unconditionally, so a deletes-only
//     apply still lands the refreshed card count and color tags.
//  4. The bulk delete follows. If it fails after the upsert landed, the
//     baseline advances past the upsert and the removals stay staged as zero
//     sentinels; PartialError reports both halves and the next apply retries
//     only the remainder.
//  5. On full success the baseline is refreshed from the store (best effort)
//     and the history collapses, so a session with no concurrent edits comes
//     out clean.
//
// Applies on one session are serialized: a second call while one is in
// flight returns ErrApplyInFlight. Edits staged during an apply survive it.
//
// attrs resolves product attributes for the extended-rule checks and the
// color-tag metadata; nil falls back to the reconciler's default resolver.
// The returned merged map and violations reflect the validated snapshot;
// non-blocking violations (deck size) are returned even on success.
func (r *Reconciler) Apply(ctx context.Context, sess *Session, rules deckstage.RuleSet, attrs deckstage.AttributeFunc) (deckstage.ItemMap, []deckstage.Violation, error) {
	if attrs == nil {
		attrs = r.attrs
	}
	st := sess.Staging()
	if !st.Loaded() {
		return nil, nil, ErrNotLoaded
	}
	if !st.CanEdit() {
		return nil, nil, ErrPermissionDenied
	}
	if !sess.applying.CompareAndSwap(false, true) {
		return nil, nil, ErrApplyInFlight
	}
	defer sess.applying.Store(false)
	sess.Touch()

	base := st.Base()
	delta := st.Delta()
	merged := delta.Merged

	violations := deckstage.Validate(merged, rules, attrs)
	if deckstage.HasBlocking(violations) {
		RecordValidationBlock(1)
		telemetry.IncApplyBlocked()
		return merged, violations, &ValidationError{Violations: violations}
	}
	if delta.Empty() {
		return merged, violations, nil
	}

	upserts := delta.Upserts()
	meta := DeriveMetadata(merged, attrs)

	// One commit id per call: the upsert and the delete are separate
	// idempotency domains on the store side.
	upsertCommit := uuid.NewString()
	if err := r.store.UpsertItems(ctx, sess.DeckID, sess.ViewerID, upserts, meta, upsertCommit); err != nil {
		RecordApplyError(1)
		telemetry.IncApplyErrors()
		return merged, violations, fmt.Errorf("bulk upsert: %w", err)
	}

	if len(delta.Removed) > 0 {
		deleteCommit := uuid.NewString()
		if err := r.store.DeleteItems(ctx, sess.DeckID, sess.ViewerID, delta.Removed, meta, deleteCommit); err != nil {
			// The upsert landed; advance the baseline past it so only the
			// removals remain staged.
			st.SetBase(deckstage.Merge(base, upserts))
			RecordApplyPartial(1)
			telemetry.IncApplyPartial()
			r.record(sess, upsertCommit, len(upserts), len(delta.Removed), true)
			return merged, violations, &PartialError{Succeeded: upserts, Failed: delta.Removed, Err: err}
		}
	}

	// Full success: refresh from the source of truth. A failed refresh is
	// not fatal; fall back to the locally computed post-apply state.
	applied := deckstage.Merge(base, upserts)
	for _, ref := range delta.Removed {
		delete(applied, ref)
	}
	if fresh, err := r.store.FetchDeck(ctx, sess.DeckID, sess.ViewerID); err == nil {
		applied = fresh.Items
		sess.setName(fresh.Name)
	} else {
		fmt.Printf("WARN: post-apply refresh failed for deck %s: %v\n", sess.DeckID, err)
	}
	st.Rebase(applied)

	RecordApplySuccess(1)
	RecordItemsApplied(int64(len(upserts) + len(delta.Removed)))
	telemetry.IncApplySuccess()
	telemetry.ObserveItemsPerApply(len(upserts) + len(delta.Removed))
	r.record(sess, upsertCommit, len(upserts), len(delta.Removed), false)
	return st.Merged(), violations, nil
}

// Rename updates the deck name in the store and, on success, the session.
// The denormalized metadata rides along, matching the backend contract; nil
// attrs falls back to the reconciler's default resolver.
func (r *Reconciler) Rename(ctx context.Context, sess *Session, name string, attrs deckstage.AttributeFunc) error {
	if attrs == nil {
		attrs = r.attrs
	}
	st := sess.Staging()
	if !st.Loaded() {
		return ErrNotLoaded
	}
	if !st.CanEdit() {
		return ErrPermissionDenied
	}
	sess.Touch()
	meta := DeriveMetadata(st.Merged(), attrs)
	if err := r.store.UpdateName(ctx, sess.DeckID, sess.ViewerID, name, meta); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	sess.setName(name)
	return nil
}

func (r *Reconciler) record(sess *Session, commitID string, upserts, deletes int, partial bool) {
	if r.journal == nil {
		return
	}
	rec := ApplyRecord{
		DeckID:   sess.DeckID,
		ViewerID: sess.ViewerID,
		CommitID: commitID,
		Upserts:  upserts,
		Deletes:  deletes,
		Partial:  partial,
		At:       time.Now().UTC(),
	}
	if err := r.journal.Record(rec); err != nil {
		fmt.Printf("WARN: apply journal write failed: %v\n", err)
	}
}
