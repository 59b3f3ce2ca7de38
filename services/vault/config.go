// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config contains all engine configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// StoreDir is the root directory of the object store. Objects,
	// refs, the metadata journal and the optional git mirror all live
	// below it.
	StoreDir string `json:"store_dir" yaml:"store_dir" validate:"required"`

	// JournalDir overrides the commit metadata journal location.
	// Empty means "<store_dir>/journal".
	JournalDir string `json:"journal_dir" yaml:"journal_dir"`

	// JournalInMemory runs the journal without disk persistence.
	// History survives only as long as the process; the object store
	// remains the source of truth either way.
	JournalInMemory bool `json:"journal_in_memory" yaml:"journal_in_memory"`

	// DefaultBranch is used when an operation names no branch.
	DefaultBranch string `json:"default_branch" yaml:"default_branch" validate:"required,excludesall=/\\."`

	// HistoryLimit bounds log listings.
	HistoryLimit int `json:"history_limit" yaml:"history_limit" validate:"gte=1,lte=10000"`

	// CacheTTL is the branch-log cache lifetime.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`

	// WatchRefs starts a filesystem watcher on refs/heads that
	// invalidates the log cache when another process moves a ref.
	WatchRefs bool `json:"watch_refs" yaml:"watch_refs"`

	// Mirror contains git mirror settings.
	Mirror MirrorConfig `json:"mirror" yaml:"mirror"`
}

// MirrorConfig contains settings for the optional git mirror of the
// object store.
type MirrorConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultConfig returns the default configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		StoreDir:      dir,
		DefaultBranch: "main",
		HistoryLimit:  100,
		CacheTTL:      5 * time.Second,
		WatchRefs:     false,
		Mirror:        MirrorConfig{Enabled: false},
	}
}

// journalDir resolves the effective journal location.
func (c Config) journalDir() string {
	if c.JournalDir != "" {
		return c.JournalDir
	}
	return filepath.Join(c.StoreDir, "journal")
}

var configValidate = validator.New()

// Validate checks the configuration using go-playground/validator
// tags.
//
// Outputs:
//   - error: Non-nil if validation failed, wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, applying defaults for
// unset fields.
//
// Inputs:
//   - path: YAML file path.
//
// Outputs:
//   - Config: Parsed and validated configuration.
//   - error: Non-nil on read, parse or validation failure.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
