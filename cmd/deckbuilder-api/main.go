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

// Package main provides the entry point for the deck staging service.
//
// The service keeps one in-memory staging session per open deck and viewer:
// edits accumulate locally with full undo history, and an explicit apply
// reconciles them with the durable deck store as one bulk upsert plus one
// bulk delete. This file orchestrates the whole thing:
//  1. Loading configuration (defaults, YAML file, flags).
//  2. Building the deck store adapter, session registry, and reconciler.
//  3. Starting the background janitor that evicts idle clean sessions.
//  4. Starting the API server and managing graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckstage/internal/config"
	"deckstage/internal/deckbuilder/api"
	"deckstage/internal/deckbuilder/catalog"
	"deckstage/internal/deckbuilder/core"
	"deckstage/internal/deckbuilder/rules"
	"deckstage/internal/deckbuilder/sinks"
	deckstore "deckstage/internal/deckbuilder/store"
	"deckstage/internal/deckbuilder/telemetry"
)

func main() {
	// 1. Parse configuration. The YAML file carries the full config; the
	// flags override the knobs most often changed per deployment.
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	httpAddr := flag.String("http_addr", "", "HTTP listen address (overrides config)")
	storeAdapter := flag.String("store", "", "Deck store adapter: memory | redis | http (overrides config)")
	journalPath := flag.String("journal", "", "Apply journal path, JSONL append-only (overrides config)")
	telemetryEnabled := flag.Bool("telemetry", false, "Enable Prometheus telemetry (opt-in)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *storeAdapter != "" {
		cfg.Store.Adapter = *storeAdapter
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}
	if *telemetryEnabled {
		cfg.Telemetry = true
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	// Capture the effective configuration for final metrics printing.
	core.SetThreshold("http_addr", cfg.HTTPAddr)
	core.SetThreshold("store_adapter", cfg.Store.Adapter)
	core.SetThreshold("journal_path", cfg.JournalPath)
	core.SetThresholdBool("telemetry", cfg.Telemetry)
	core.SetThresholdDuration("eviction_age", cfg.Session.EvictionAge.Std())
	core.SetThresholdDuration("eviction_interval", cfg.Session.EvictionInterval.Std())
	core.SetThresholdInt("catalog_page_limit", cfg.Catalog.PageLimit)

	// Initialize telemetry (no-op if disabled).
	telemetry.Enable(telemetry.Config{
		Enabled:     cfg.Telemetry,
		MetricsAddr: cfg.MetricsAddr,
	})

	// 2. Build the deck store adapter and the core components around it.
	store, err := deckstore.BuildStore(cfg.Store.Adapter, deckstore.Options{
		RedisAddr:      cfg.Store.RedisAddr,
		RedisMarkerTTL: cfg.Store.MarkerTTL.Std(),
		APIBaseURL:     cfg.Store.APIBaseURL,
		AuthToken:      cfg.Store.AuthToken,
	})
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	var journal core.Journal
	var journalSink *sinks.ApplyJournal
	if cfg.JournalPath != "" {
		journalSink, err = sinks.NewApplyJournal(cfg.JournalPath)
		if err != nil {
			log.Fatalf("journal: %v", err)
		}
		journal = journalSink
	}

	registry := core.NewRegistry(store)
	reconciler := core.NewReconciler(store, nil, journal)

	// 3. Start the janitor. It drops idle sessions from memory but never one
	// with unapplied edits or an apply in flight.
	janitor := core.NewJanitor(registry, cfg.Session.EvictionAge.Std(), cfg.Session.EvictionInterval.Std())
	janitor.Start()

	// Rule source: HTTP-backed with a short TTL cache when configured,
	// otherwise permissive static rules so the demo runs standalone.
	var ruleSource rules.Source
	if cfg.Rules.BaseURL != "" {
		ruleSource = rules.NewCachedSource(rules.NewHTTPSource(cfg.Rules.BaseURL, nil), cfg.Rules.CacheTTL.Std())
	} else {
		ruleSource = rules.StaticSource{}
	}

	// Catalog client: cached HTTP client when configured, nil otherwise (the
	// catalog endpoints then answer 503).
	var catalogClient catalog.Client
	if cfg.Catalog.BaseURL != "" {
		catalogClient = catalog.NewCachedClient(
			catalog.NewHTTPClient(cfg.Catalog.BaseURL, nil),
			cfg.Catalog.CacheTTL.Std(),
		)
	}

	// 4. Create the API server and set up routes. The http.Server lives here
	// in main so shutdown stays graceful.
	apiServer := api.NewServer(registry, reconciler, ruleSource, catalogClient, cfg.Catalog.PageLimit)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 5. Start the HTTP server in a separate goroutine so it doesn't block.
	go func() {
		fmt.Printf("Deck staging API server listening on %s\n", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.HTTPAddr, err)
		}
	}()

	// 6. Wait for an OS signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down server...")

	// 7. Stop the janitor first so no session is evicted mid-shutdown, then
	// flush the apply journal.
	janitor.Stop()
	if journalSink != nil {
		if err := journalSink.Close(); err != nil {
			fmt.Printf("WARN: journal close failed: %v\n", err)
		}
	}

	// Print a single end-of-process summary in yellow.
	core.PrintFinalMetrics(registry.Len())
	registry.CloseAll()

	// 8. Gracefully shut down the HTTP server with a timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	fmt.Println("Server gracefully stopped.")
}
