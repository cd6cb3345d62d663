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

// Package config loads the service configuration: defaults, overlaid by an
// optional YAML file, overlaid by flags in main.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts human strings like "30s" or
// "5m". yaml.v3 has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std converts back to the standard type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full service configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	Telemetry   bool   `yaml:"telemetry"`
	JournalPath string `yaml:"journal_path"`

	Store   StoreConfig   `yaml:"store"`
	Catalog CatalogConfig `yaml:"catalog"`
	Rules   RulesConfig   `yaml:"rules"`
	Session SessionConfig `yaml:"session"`
}

// StoreConfig selects and configures the deck store adapter.
type StoreConfig struct {
	Adapter    string   `yaml:"adapter"` // memory | redis | http
	RedisAddr  string   `yaml:"redis_addr"`
	MarkerTTL  Duration `yaml:"marker_ttl"`
	APIBaseURL string   `yaml:"api_base_url"`
	AuthToken  string   `yaml:"auth_token"`
}

// CatalogConfig configures the catalog client.
type CatalogConfig struct {
	BaseURL   string   `yaml:"base_url"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	PageLimit int      `yaml:"page_limit"`
}

// RulesConfig configures the rule source.
type RulesConfig struct {
	BaseURL  string   `yaml:"base_url"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// SessionConfig tunes the in-memory session registry.
type SessionConfig struct {
	EvictionAge      Duration `yaml:"eviction_age"`
	EvictionInterval Duration `yaml:"eviction_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Store:    StoreConfig{Adapter: "memory", MarkerTTL: Duration(24 * time.Hour)},
		Catalog:  CatalogConfig{CacheTTL: Duration(30 * time.Second), PageLimit: 24},
		Rules:    RulesConfig{CacheTTL: Duration(5 * time.Minute)},
		Session: SessionConfig{
			EvictionAge:      Duration(30 * time.Minute),
			EvictionInterval: Duration(time.Minute),
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
