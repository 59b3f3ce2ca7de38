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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	logOutputJSON   bool
	logChangedSince string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// logCmd lists branch history newest first.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List commits on a branch, newest first",
	Long: `Log walks the branch from its head through parent links and prints
one line per commit.

Examples:
  blendvault log
  blendvault log --branch lighting
  blendvault log --output-json | jq '.[0].Commit.uid'
  blendvault log --changed-since 20250614120301`,
	Args: cobra.NoArgs,
	RunE: runLogCommand,
}

func init() {
	logCmd.Flags().BoolVar(&logOutputJSON, "output-json", false,
		"Print commits as JSON for scripting")
	logCmd.Flags().StringVar(&logChangedSince, "changed-since", "",
		"Print the entity names changed since the given commit uid instead of commits")
	rootCmd.AddCommand(logCmd)
}

func runLogCommand(cmd *cobra.Command, args []string) error {
	eng, _, log, err := openEngine(false)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer log.Close()

	if logChangedSince != "" {
		names, err := eng.ChangedBetween(cmd.Context(), flagBranch, logChangedSince, "")
		if err != nil {
			return err
		}
		if logOutputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(names)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	entries, err := eng.Log(cmd.Context(), flagBranch)
	if err != nil {
		return err
	}

	if logOutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No commits yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s\n", e.Commit.UID, e.Commit.Timestamp, e.Commit.Message)
	}
	return nil
}
