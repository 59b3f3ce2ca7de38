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
// COMMAND FLAGS
// =============================================================================

var commitMessage string

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// commitCmd records the document's current state as a commit.
//
// # Exit Codes
//
//	0 - Commit recorded, or nothing to commit
//	1 - Commit failed
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record the current document state on a branch",
	Long: `Commit computes signatures over the working root, compares them to
the branch head and, when anything changed, creates a differential
snapshot plus a content-addressed commit.

Examples:
  blendvault commit -m "rough blockout"
  blendvault commit -m "fix lamp parent" --branch lighting`,
	Args: cobra.NoArgs,
	RunE: runCommitCommand,
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "",
		"Commit message (required)")
	_ = commitCmd.MarkFlagRequired("message")
	rootCmd.AddCommand(commitCmd)
}

func runCommitCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	res, err := eng.Commit(cmd.Context(), flagBranch, commitMessage)
	if errors.Is(err, vault.ErrNoChanges) {
		fmt.Println("No changes detected; nothing to commit.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("[%s %s] %s\n", res.Branch, res.UID, res.Message)
	fmt.Printf("  %d entities changed, snapshot %s\n",
		len(res.Changed), res.SnapshotName)
	if res.Mirrored {
		fmt.Println("  mirrored to git")
	}
	return nil
}
