// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cas

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadRef returns the head commit id of a branch, or "" when the
// branch has no commits.
func (s *Store) ReadRef(branch string) (string, error) {
	if err := validBranch(branch); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.refsDir(), branch))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read ref %q: %w: %w", branch, ErrStoreIO, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// UpdateRef points branch at commitID.
//
// Description:
//
//	The only mutable write in the store. The new value lands in a
//	temp file first and is renamed over the ref, so an interrupted
//	update leaves the prior value fully intact. No locking beyond
//	that: concurrent writers to one branch can race and lose an
//	update, so callers serialize commit operations externally.
func (s *Store) UpdateRef(branch, commitID string) error {
	if err := validBranch(branch); err != nil {
		refUpdateTotal.WithLabelValues("invalid").Inc()
		return err
	}
	path := filepath.Join(s.refsDir(), branch)
	if err := s.atomicWrite(path, []byte(commitID)); err != nil {
		refUpdateTotal.WithLabelValues("error").Inc()
		return err
	}
	refUpdateTotal.WithLabelValues("ok").Inc()
	return nil
}

// ListBranches returns every branch with a ref file, sorted.
func (s *Store) ListBranches() ([]string, error) {
	entries, err := os.ReadDir(s.refsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list branches: %w: %w", ErrStoreIO, err)
	}
	var branches []string
	for _, ent := range entries {
		if ent.IsDir() || strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		branches = append(branches, ent.Name())
	}
	sort.Strings(branches)
	return branches, nil
}

// DeleteRef removes a branch ref. Missing refs are not an error.
func (s *Store) DeleteRef(branch string) error {
	if err := validBranch(branch); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.refsDir(), branch))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete ref %q: %w: %w", branch, ErrStoreIO, err)
	}
	return nil
}
