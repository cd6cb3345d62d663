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
	"errors"
	"fmt"
	"time"
)

// BuildStore constructs a Store based on a string selector.
// Supported adapters:
//   - "memory": in-process store (default; demo and tests)
//   - "redis": idempotent Redis adapter; uses a logging client when no
//     address is configured, so the demo runs without infrastructure
//   - "http": REST adapter against a deck-lists API
//   - "postgres": not wired here (returns an error to avoid hidden nil DB
//     usage); construct NewPostgresStore with a real *sql.DB directly
func BuildStore(adapter string, opts Options) (Store, error) {
	switch adapter {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		ttl := opts.RedisMarkerTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		var client RedisClient
		if opts.RedisAddr != "" {
			// Use a real Redis client when an address is provided.
			client = NewGoRedisClient(opts.RedisAddr)
		} else {
			// Fallback to the logging client for a dependency-free demo.
			client = LoggingRedisClient{}
		}
		return NewRedisStore(client, ttl), nil
	case "http":
		if opts.APIBaseURL == "" {
			return nil, errors.New("http adapter requires an API base URL")
		}
		return NewHTTPStore(opts.APIBaseURL, opts.AuthToken, nil), nil
	case "postgres":
		return nil, errors.New("postgres adapter is not enabled here; wire a real *sql.DB through NewPostgresStore")
	default:
		return nil, fmt.Errorf("unknown deck store adapter: %s", adapter)
	}
}
