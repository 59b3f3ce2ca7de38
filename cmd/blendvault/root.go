// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/BlendVault/pkg/logging"
	"github.com/AleutianAI/BlendVault/services/vault"
	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	flagConfig  string // Optional config.yaml path
	flagStore   string // Store root override
	flagDoc     string // Scene document file
	flagBranch  string // Branch for history commands
	flagVerbose bool   // Debug logging
	flagJSON    bool   // JSON log output
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "blendvault",
	Short: "Version control for scene documents",
	Long: `blendvault versions a hierarchical scene document the way git
versions files: commits are content-addressed signature trees, and
checkouts restore entities from differential snapshots kept inside
the document itself.

Typical flow:
  blendvault init                       # first commit of scene.yaml
  blendvault commit -m "move the lamp"  # record changes
  blendvault log                        # list commits
  blendvault checkout 20250614120301    # restore an earlier state`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Path to a YAML config file (flags override it)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", ".blendvault",
		"Object store directory")
	rootCmd.PersistentFlags().StringVar(&flagDoc, "doc", "scene.yaml",
		"Scene document file")
	rootCmd.PersistentFlags().StringVar(&flagBranch, "branch", "",
		"Branch to operate on (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false,
		"Log in JSON format")
}

// =============================================================================
// WIRING HELPERS
// =============================================================================

// docStore persists the scene document back to its YAML file around
// engine operations.
type docStore struct {
	doc  *scene.Document
	path string
}

func (s *docStore) Save(ctx context.Context) error {
	return scene.SaveYAML(s.doc, s.path)
}

// newLogger builds the CLI logger from the global flags.
func newLogger() *logging.Logger {
	level := logging.LevelInfo
	if flagVerbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "cli",
		JSON:    flagJSON,
	})
}

// loadConfig resolves the engine configuration: the config file when
// given, defaults otherwise, with the --store flag taking precedence.
func loadConfig() (vault.Config, error) {
	if flagConfig != "" {
		cfg, err := vault.LoadConfig(flagConfig)
		if err != nil {
			return vault.Config{}, err
		}
		if flagStore != "" && rootCmd.PersistentFlags().Changed("store") {
			cfg.StoreDir = flagStore
		}
		return cfg, nil
	}
	return vault.DefaultConfig(flagStore), nil
}

// openEngine loads the scene document and opens the engine over it.
// With allowMissingDoc, a missing document file yields a fresh empty
// document instead of an error (used by init).
func openEngine(allowMissingDoc bool) (*vault.Engine, *scene.Document, *logging.Logger, error) {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	var doc *scene.Document
	if _, statErr := os.Stat(flagDoc); statErr != nil {
		if !allowMissingDoc {
			return nil, nil, nil, fmt.Errorf("scene document %s: %w", flagDoc, statErr)
		}
		doc = scene.NewDocument()
	} else {
		doc, err = scene.LoadYAML(flagDoc)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	eng, err := vault.NewEngine(doc, cfg,
		vault.WithLogger(log),
		vault.WithDocumentStore(&docStore{doc: doc, path: flagDoc}),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, doc, log, nil
}
