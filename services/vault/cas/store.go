// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cas implements the content-addressable object store:
// immutable blobs, trees, and commits addressed by the SHA-256 of
// their canonical serialization, plus mutable branch refs updated via
// atomic rename.
//
// On-disk layout under the store root:
//
//	objects/blobs/<id>.json
//	objects/trees/<id>.json
//	objects/commits/<id>.json
//	refs/heads/<branch>
//
// Object files are pretty-printed for readability; the id is always
// computed over the compact sorted-key form, so presentation never
// affects addressing.
package cas

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store is a single-writer object store rooted at one directory.
//
// Description:
//
//	Store provides write-once object persistence and atomic ref
//	updates. All writes go through a temp-file-then-rename sequence,
//	so a crash can never leave a partially written object at an
//	addressable path.
//
// Thread Safety: safe for concurrent readers; callers must serialize
// writers to the same branch externally.
type Store struct {
	root string
	log  *slog.Logger
}

// NewStore opens (creating if needed) a store rooted at root.
func NewStore(root string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{root: root, log: log}
	for _, dir := range []string{
		s.blobsDir(), s.treesDir(), s.commitsDir(), s.refsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dirs: %w: %w", ErrStoreIO, err)
		}
	}
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) objectsDir() string { return filepath.Join(s.root, "objects") }
func (s *Store) blobsDir() string   { return filepath.Join(s.objectsDir(), "blobs") }
func (s *Store) treesDir() string   { return filepath.Join(s.objectsDir(), "trees") }
func (s *Store) commitsDir() string { return filepath.Join(s.objectsDir(), "commits") }
func (s *Store) refsDir() string    { return filepath.Join(s.root, "refs", "heads") }

func (s *Store) objectPath(kind objectKind, id string) string {
	switch kind {
	case kindBlob:
		return filepath.Join(s.blobsDir(), id+".json")
	case kindTree:
		return filepath.Join(s.treesDir(), id+".json")
	default:
		return filepath.Join(s.commitsDir(), id+".json")
	}
}

type objectKind string

const (
	kindBlob   objectKind = "blob"
	kindTree   objectKind = "tree"
	kindCommit objectKind = "commit"
)

// writeIfAbsent persists data at path unless an object already exists
// there. Existing objects are never rewritten; ids are pure functions
// of content, so the bytes on disk are already correct.
func (s *Store) writeIfAbsent(kind objectKind, path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		objectWriteTotal.WithLabelValues(string(kind), "dedup").Inc()
		return nil
	}
	if err := s.atomicWrite(path, data); err != nil {
		objectWriteTotal.WithLabelValues(string(kind), "error").Inc()
		return err
	}
	objectWriteTotal.WithLabelValues(string(kind), "written").Inc()
	return nil
}

// atomicWrite writes to a temp file in the target directory, syncs it,
// then renames over path. Rename on the same filesystem is atomic, so
// readers see either the old content or the new, never a partial file.
func (s *Store) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w: %w", path, ErrStoreIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp for %s: %w: %w", path, ErrStoreIO, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp for %s: %w: %w", path, ErrStoreIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w: %w", path, ErrStoreIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w: %w", path, ErrStoreIO, err)
	}
	return nil
}

// readObject loads and decodes one object file. A missing object
// returns (false, nil); only decode failures and real IO errors are
// reported.
func (s *Store) readObject(kind objectKind, id string, out any) (bool, error) {
	if id == "" {
		return false, nil
	}
	path := s.objectPath(kind, id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		objectReadTotal.WithLabelValues(string(kind), "miss").Inc()
		return false, nil
	}
	if err != nil {
		objectReadTotal.WithLabelValues(string(kind), "error").Inc()
		return false, fmt.Errorf("read %s %s: %w: %w", kind, id, ErrStoreIO, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		objectReadTotal.WithLabelValues(string(kind), "corrupt").Inc()
		return false, fmt.Errorf("decode %s %s: %w: %w", kind, id, ErrCorruptObject, err)
	}
	objectReadTotal.WithLabelValues(string(kind), "hit").Inc()
	return true, nil
}

// validBranch rejects names that would escape the refs directory.
func validBranch(branch string) error {
	if branch == "" || strings.ContainsAny(branch, "/\\") ||
		branch == "." || branch == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidBranch, branch)
	}
	return nil
}
