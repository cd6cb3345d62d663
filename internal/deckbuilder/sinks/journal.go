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

// Package sinks holds append-only output sinks for audit data.
package sinks

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"deckstage/internal/deckbuilder/core"
)

// ApplyJournal is a buffered JSONL sink recording one line per apply. It is
// safe for concurrent use and optimized for append-only workloads.
type ApplyJournal struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string

	lastFlush time.Time
}

// NewApplyJournal opens (or creates) the file at path in append mode with a
// buffered writer. Call Close() when done.
func NewApplyJournal(path string) (*ApplyJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	j := &ApplyJournal{f: f, w: bufio.NewWriterSize(f, 1<<20 /*1MiB*/), path: path, lastFlush: time.Now()}
	return j, nil
}

// Record writes one apply record as a JSON line.
func (j *ApplyJournal) Record(rec core.ApplyRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	enc := json.NewEncoder(j.w)
	if err := enc.Encode(&rec); err != nil {
		// best effort: on error, try to flush and retry once
		_ = j.w.Flush()
		if err := enc.Encode(&rec); err != nil {
			return err
		}
	}
	// Flush periodically to bound data loss on crash.
	if time.Since(j.lastFlush) > 100*time.Millisecond {
		_ = j.w.Flush()
		j.lastFlush = time.Now()
	}
	return nil
}

// Flush forces buffered data to be written to disk.
func (j *ApplyJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastFlush = time.Now()
	return j.w.Flush()
}

// Close flushes and closes the underlying file.
func (j *ApplyJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.w.Flush()
	return j.f.Close()
}

// ReadAll reads an apply journal back as a slice. Intended for demo/replay.
func ReadAll(path string) ([]core.ApplyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []core.ApplyRecord
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var rec core.ApplyRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}
