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
// COMMAND FLAGS
// =============================================================================

var branchFrom string

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "List, create, or delete branches",
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List branches with at least one commit",
	Args:  cobra.NoArgs,
	RunE:  runBranchListCommand,
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a branch at another branch's head",
	Long: `Create points a new branch at the head of an existing one.

Examples:
  blendvault branch create lighting
  blendvault branch create retopo --from lighting`,
	Args: cobra.ExactArgs(1),
	RunE: runBranchCreateCommand,
}

var branchDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a branch, its journal entries and its snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runBranchDeleteCommand,
}

// undoCmd removes the newest commit on a branch.
var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Remove the newest commit on a branch",
	Long: `Undo moves the branch ref to the parent commit and deletes the
commit's archive snapshot. Blobs and trees stay in the object store;
they are content addressed and may back other commits.`,
	Args: cobra.NoArgs,
	RunE: runUndoCommand,
}

func init() {
	branchCreateCmd.Flags().StringVar(&branchFrom, "from", "",
		"Source branch (default: configured default branch)")
	branchCmd.AddCommand(branchListCmd, branchCreateCmd, branchDeleteCmd)
	rootCmd.AddCommand(branchCmd, undoCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runBranchListCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	branches, err := eng.Branches()
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		fmt.Println("No branches yet; run init first.")
		return nil
	}
	for _, b := range branches {
		fmt.Println(b)
	}
	return nil
}

func runBranchCreateCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	if err := eng.CreateBranch(cmd.Context(), args[0], branchFrom); err != nil {
		return err
	}
	fmt.Printf("Branch %s created\n", args[0])
	return nil
}

func runBranchDeleteCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	if err := eng.DeleteBranch(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Branch %s deleted\n", args[0])
	return nil
}

func runUndoCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	uid, err := eng.UndoCommit(cmd.Context(), flagBranch)
	if err != nil {
		return err
	}
	fmt.Printf("Removed commit %s\n", uid)
	return nil
}
