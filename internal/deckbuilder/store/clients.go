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
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// LoggingRedisClient is a tiny demo client that just logs the commands.
// It lets the demo select the Redis adapter without needing a real Redis.
// Not for production use.

type LoggingRedisClient struct{}

func (LoggingRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fmt.Printf("[redis-demo] EVAL script(len=%d) KEYS=%v ARGS=%v\n", len(script), keys, args)
	return int64(1), nil // pretend we applied it
}

func (LoggingRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fmt.Printf("[redis-demo] HGETALL %s\n", key)
	return map[string]string{}, nil
}

// GoRedisClient is a production-ready client wrapper implementing
// RedisClient. It uses github.com/redis/go-redis/v9 under the hood.
// Use NewGoRedisClient with an address like "127.0.0.1:6379".

type GoRedisClient struct{ c *redis.Client }

func NewGoRedisClient(addr string) *GoRedisClient {
	opt := &redis.Options{Addr: addr}
	return &GoRedisClient{c: redis.NewClient(opt)}
}

func (g *GoRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func (g *GoRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.c.HGetAll(ctx, key).Result()
}

// Options holds the knobs consumed by BuildStore.

type Options struct {
	// RedisAddr selects a real Redis client when non-empty.
	RedisAddr string
	// RedisMarkerTTL bounds commit-marker lifetime; defaults to 24h.
	RedisMarkerTTL time.Duration
	// APIBaseURL is the deck-lists REST endpoint for the http adapter.
	APIBaseURL string
	// AuthToken is sent as a bearer token by the http adapter.
	AuthToken string
}
