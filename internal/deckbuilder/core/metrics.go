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

// Package core contains shared, process-level metrics counters used for
// the final end-of-process summary. These are kept lightweight and use
// atomic counters to avoid allocation and locks on the hot path.
package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	edits            atomic.Int64
	appliesSucceeded atomic.Int64
	appliesPartial   atomic.Int64
	applyErrors      atomic.Int64
	validationBlocks atomic.Int64
	itemsApplied     atomic.Int64

	// thresholds holds human-readable configuration knobs captured at runtime.
	thresholdsMu sync.RWMutex
	thresholds   = make(map[string]string)
)

// RecordEdit increments the number of staged edit operations.
func RecordEdit(n int64) {
	if n > 0 {
		edits.Add(n)
	}
}

// RecordApplySuccess increments the number of fully applied reconciliations.
func RecordApplySuccess(n int64) {
	if n > 0 {
		appliesSucceeded.Add(n)
	}
}

// RecordApplyPartial increments the number of applies where deletes failed
// after the upsert landed.
func RecordApplyPartial(n int64) {
	if n > 0 {
		appliesPartial.Add(n)
	}
}

// RecordApplyError increments the number of applies that failed outright.
func RecordApplyError(n int64) {
	if n > 0 {
		applyErrors.Add(n)
	}
}

// RecordValidationBlock increments the number of applies aborted by blocking
// rule violations.
func RecordValidationBlock(n int64) {
	if n > 0 {
		validationBlocks.Add(n)
	}
}

// RecordItemsApplied adds the number of item mutations confirmed server-side.
func RecordItemsApplied(n int64) {
	if n > 0 {
		itemsApplied.Add(n)
	}
}

// Threshold setters capture important runtime thresholds/config knobs for final printing.
func SetThreshold(name string, value string) {
	thresholdsMu.Lock()
	thresholds[name] = value
	thresholdsMu.Unlock()
}

func SetThresholdInt(name string, v int) { SetThreshold(name, fmt.Sprintf("%d", v)) }
func SetThresholdDuration(name string, d time.Duration) { SetThreshold(name, d.String()) }
func SetThresholdBool(name string, b bool) { SetThreshold(name, fmt.Sprintf("%t", b)) }

// getEventTotals provides a snapshot of current counters.
func getEventTotals() (editsN, successN, partialN, errorN, blockedN, itemsN int64) {
	return edits.Load(), appliesSucceeded.Load(), appliesPartial.Load(),
		applyErrors.Load(), validationBlocks.Load(), itemsApplied.Load()
}

// getThresholdSnapshot returns a copy of thresholds for stable iteration/printing.
func getThresholdSnapshot() map[string]string {
	thresholdsMu.RLock()
	defer thresholdsMu.RUnlock()
	out := make(map[string]string, len(thresholds))
	for k, v := range thresholds {
		out[k] = v
	}
	return out
}

// resetEventTotals resets counters to zero. Intended for tests only.
func resetEventTotals() {
	edits.Store(0)
	appliesSucceeded.Store(0)
	appliesPartial.Store(0)
	applyErrors.Store(0)
	validationBlocks.Store(0)
	itemsApplied.Store(0)
}

// PrintFinalMetrics prints a single yellow summary once at the end of the
// process: apply outcomes plus the configured thresholds captured at start.
func PrintFinalMetrics(openSessions int) {
	editsN, successN, partialN, errorN, blockedN, itemsN := getEventTotals()

	th := getThresholdSnapshot()
	keys := make([]string, 0, len(th))
	for k := range th {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	yellow := "\x1b[33m"
	reset := "\x1b[0m"
	now := time.Now().Format(time.RFC3339)

	sep := strings.Repeat("-", 60)
	fmt.Printf("%s[%s] Final deck staging metrics\n", yellow, now)
	fmt.Println(sep)
	fmt.Printf("%-22s %12s\n", "Metric", "Value")
	fmt.Println(sep)
	fmt.Printf("%-22s %12d\n", "Staged edits", editsN)
	fmt.Printf("%-22s %12d\n", "Applies OK", successN)
	fmt.Printf("%-22s %12d\n", "Applies partial", partialN)
	fmt.Printf("%-22s %12d\n", "Apply errors", errorN)
	fmt.Printf("%-22s %12d\n", "Blocked by rules", blockedN)
	fmt.Printf("%-22s %12d\n", "Item writes", itemsN)
	fmt.Printf("%-22s %12d\n", "Open sessions", openSessions)
	fmt.Println(sep)

	if len(keys) > 0 {
		fmt.Printf("Configured thresholds\n")
		fmt.Println(sep)
		fmt.Printf("%-30s %24s\n", "Name", "Value")
		fmt.Println(sep)
		for _, k := range keys {
			fmt.Printf("%-30s %24s\n", k, th[k])
		}
		fmt.Println(sep)
	}

	fmt.Println("Pending edits: dirty sessions keep their staged changes in memory until applied; abrupt termination discards them.")
	fmt.Print(reset)
}
