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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/BlendVault/services/vault"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// initCmd creates the object store and records the first commit.
//
// # Exit Codes
//
//	0 - Success (including already-initialized with no changes)
//	1 - Initialization failed
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the store and record the first commit",
	Long: `Initialize the object store next to the scene document and
record an "Initialize" commit of its current state.

A missing scene document file is created empty. Re-running init on an
unchanged document is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runInitCommand,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInitCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(true)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	res, err := eng.Initialize(cmd.Context())
	if errors.Is(err, vault.ErrNoChanges) {
		fmt.Println("Already initialized; nothing to commit.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Initialized %s on branch %s (commit %s)\n",
		flagStore, res.Branch, res.UID)
	return nil
}
