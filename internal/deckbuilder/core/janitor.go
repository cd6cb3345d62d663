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

// Package core provides the deck session business logic. This file
// implements the background worker responsible for memory management
// (eviction of idle sessions).
package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"deckstage/internal/deckbuilder/telemetry"
)

// Janitor evicts idle deck sessions from the registry. Sessions with staged
// edits or an apply in flight are never evicted; their edits only leave
// memory through an apply or a discard.
type Janitor struct {
	registry         *Registry
	evictionAge      time.Duration
	evictionInterval time.Duration
	stopChan         chan struct{}
	wg               sync.WaitGroup
	stopped          uint32
}

// NewJanitor creates and configures a session janitor.
//
// evictionAge: how long a session may sit untouched before removal.
// evictionInterval: how often the registry is scanned.
func NewJanitor(registry *Registry, evictionAge, evictionInterval time.Duration) *Janitor {
	return &Janitor{
		registry:         registry,
		evictionAge:      evictionAge,
		evictionInterval: evictionInterval,
		stopChan:         make(chan struct{}),
	}
}

// Start launches the background eviction goroutine.
func (j *Janitor) Start() {
	fmt.Println("Starting session janitor...")
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.evictionLoop()
	}()
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	if !atomic.CompareAndSwapUint32(&j.stopped, 0, 1) {
		return
	}
	fmt.Println("Stopping session janitor...")
	close(j.stopChan)
	j.wg.Wait()
}

func (j *Janitor) evictionLoop() {
	ticker := time.NewTicker(j.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.runEvictionCycle()
		case <-j.stopChan:
			return
		}
	}
}

// runEvictionCycle finds and removes stale sessions.
func (j *Janitor) runEvictionCycle() {
	var keysToEvict []string
	now := time.Now()

	j.registry.ForEach(func(key string, sess *Session) {
		if now.Sub(sess.LastAccessed()) > j.evictionAge {
			keysToEvict = append(keysToEvict, key)
		}
	})

	if len(keysToEvict) == 0 {
		return
	}

	evicted := 0
	for _, key := range keysToEvict {
		sess, ok := j.registry.sessions.Load(key)
		if !ok {
			continue
		}
		s := sess.(*Session)
		// Re-check staleness; the session may have been touched since the scan.
		if time.Since(s.LastAccessed()) <= j.evictionAge {
			continue
		}
		if s.Applying() || s.Staging().Dirty() {
			// Never drop unapplied edits.
			continue
		}
		j.registry.Delete(key)
		evicted++
	}
	if evicted > 0 {
		fmt.Printf("Evicted %d stale deck sessions...\n", evicted)
		telemetry.SetOpenSessions(j.registry.Len())
	}
}
