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

package deckstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deckstage"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS decks (
//   deck_id TEXT PRIMARY KEY,
//   owner_id TEXT NOT NULL,
//   name TEXT NOT NULL DEFAULT '',
//   category_id BIGINT NOT NULL DEFAULT 0,
//   private BOOLEAN NOT NULL DEFAULT FALSE,
//   card_count BIGINT NOT NULL DEFAULT 0,
//   color_tags TEXT[] NOT NULL DEFAULT '{}',
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );
//
// CREATE TABLE IF NOT EXISTS deck_items (
//   deck_id TEXT NOT NULL REFERENCES decks(deck_id),
//   product_id TEXT NOT NULL,
//   quantity BIGINT NOT NULL,
//   PRIMARY KEY (deck_id, product_id)
// );
//
// CREATE TABLE IF NOT EXISTS applied_commits (
//   commit_id TEXT PRIMARY KEY,
//   deck_id TEXT NOT NULL,
//   ts TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX IF NOT EXISTS idx_applied_commits_deck ON applied_commits(deck_id);
//
// Idempotent transaction per bulk call:
//   INSERT INTO applied_commits(commit_id, deck_id) VALUES ($1,$2)
//     ON CONFLICT DO NOTHING;
//   -- if the insert conflicted (0 rows), the commit was already applied:
//   -- skip the item writes and commit the (empty) transaction.

// PostgresStore applies bulk writes idempotently using the pattern above.
// The *sql.DB and its driver are supplied by the caller.
type PostgresStore struct {
	db *sql.DB
	// per-call timeout fallback if ctx has no deadline
	defaultTimeout time.Duration
}

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, defaultTimeout: 10 * time.Second}
}

// FetchDeck loads the deck row and its items.
func (p *PostgresStore) FetchDeck(ctx context.Context, deckID, viewerID string) (Deck, error) {
	ctx, cancel := p.boundCtx(ctx)
	defer cancel()

	d := Deck{ID: deckID, Items: deckstage.ItemMap{}}
	row := p.db.QueryRowContext(ctx,
		`SELECT owner_id, name, category_id, private, card_count, updated_at FROM decks WHERE deck_id = $1`, deckID)
	if err := row.Scan(&d.OwnerID, &d.Name, &d.CategoryID, &d.Private, &d.CardCount, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deck{}, ErrNotFound
		}
		return Deck{}, &NetworkError{Op: "fetch", Err: err}
	}
	if d.Private && viewerID != d.OwnerID {
		return Deck{}, ErrForbidden
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT product_id, quantity FROM deck_items WHERE deck_id = $1 AND quantity > 0`, deckID)
	if err != nil {
		return Deck{}, &NetworkError{Op: "fetch items", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		var qty int
		if err := rows.Scan(&ref, &qty); err != nil {
			return Deck{}, &NetworkError{Op: "fetch items", Err: err}
		}
		d.Items[ref] = qty
	}
	if err := rows.Err(); err != nil {
		return Deck{}, &NetworkError{Op: "fetch items", Err: err}
	}
	return d, nil
}

// UpsertItems writes the given quantities within a single transaction,
// guarded by the applied_commits marker.
func (p *PostgresStore) UpsertItems(ctx context.Context, deckID, viewerID string, items deckstage.ItemMap, meta Metadata, commitID string) error {
	return p.write(ctx, "upsert", deckID, commitID, meta, func(tx *sql.Tx, txCtx context.Context) error {
		for _, ref := range items.Refs() {
			if _, err := tx.ExecContext(txCtx,
				`INSERT INTO deck_items(deck_id, product_id, quantity) VALUES ($1,$2,$3)
				   ON CONFLICT (deck_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
				deckID, ref, items[ref]); err != nil {
				return fmt.Errorf("upsert item %s: %w", ref, err)
			}
		}
		return nil
	})
}

// DeleteItems removes the given refs within a single guarded transaction.
// Refs absent from the table are a no-op.
func (p *PostgresStore) DeleteItems(ctx context.Context, deckID, viewerID string, refs []string, meta Metadata, commitID string) error {
	return p.write(ctx, "delete", deckID, commitID, meta, func(tx *sql.Tx, txCtx context.Context) error {
		for _, ref := range refs {
			if _, err := tx.ExecContext(txCtx,
				`DELETE FROM deck_items WHERE deck_id = $1 AND product_id = $2`, deckID, ref); err != nil {
				return fmt.Errorf("delete item %s: %w", ref, err)
			}
		}
		return nil
	})
}

// UpdateName renames the deck row.
func (p *PostgresStore) UpdateName(ctx context.Context, deckID, viewerID, name string, meta Metadata) error {
	ctx, cancel := p.boundCtx(ctx)
	defer cancel()
	res, err := p.db.ExecContext(ctx,
		`UPDATE decks SET name = $2, updated_at = now() WHERE deck_id = $1 AND owner_id = $3`,
		deckID, name, viewerID)
	if err != nil {
		return &NetworkError{Op: "rename", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) write(ctx context.Context, op, deckID, commitID string, meta Metadata, apply func(*sql.Tx, context.Context) error) error {
	if commitID == "" {
		return errors.New("commitID must be set")
	}
	ctx, cancel := p.boundCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	// Ensure rollback on any failure.
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO applied_commits(commit_id, deck_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		commitID, deckID)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("insert applied_commits(%s): %w", commitID, err)}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already applied; no-op.
		return tx.Commit()
	}

	if err := apply(tx, ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE decks SET card_count = $2, updated_at = now() WHERE deck_id = $1`,
		deckID, meta.CardCount); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("update deck meta: %w", err)}
	}
	if err := tx.Commit(); err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	return nil
}

func (p *PostgresStore) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && p.defaultTimeout > 0 {
		return context.WithTimeout(ctx, p.defaultTimeout)
	}
	return ctx, func() {}
}
