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
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// checkoutCmd restores the working root to an earlier commit.
//
// The branch ref does not move; committing after a checkout records
// the restored state as a new commit on top of the branch head.
var checkoutCmd = &cobra.Command{
	Use:   "checkout <uid>",
	Short: "Restore the working root to the state of a commit",
	Long: `Checkout resolves a commit by uid, removes entities the commit does
not know, and restores the rest from the archive snapshots.

Examples:
  blendvault checkout 20250614120301
  blendvault checkout 20250614120301 --branch lighting`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckoutCommand,
}

func init() {
	rootCmd.AddCommand(checkoutCmd)
}

func runCheckoutCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	counts, err := eng.Checkout(cmd.Context(), flagBranch, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d entities (%d removed, %d skipped)\n",
		counts.Restored, counts.Removed, counts.Skipped)
	return nil
}
