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
	"sort"
	"time"

	"github.com/AleutianAI/BlendVault/services/vault/signature"
)

// SchemaVersion tags every stored object for future migrations.
const SchemaVersion = 1

// TypeCommit is the envelope type string for commit objects. Exported
// so indexes holding commit metadata can rebuild the decoded form.
const TypeCommit = "commit"

// Blob is the decoded form of one stored entity payload.
type Blob struct {
	Version int               `json:"version"`
	Type    string            `json:"type"`
	Data    map[string]string `json:"data"`
}

// Tree is the decoded form of one group level: entity names to blob
// ids and child group names to tree ids, both sorted by key.
type Tree struct {
	Version  int               `json:"version"`
	Type     string            `json:"type"`
	Objects  map[string]string `json:"objects"`
	Children map[string]string `json:"children"`
}

// Commit is the decoded form of one commit object. Parents holds zero
// or one id; history is strictly linear.
type Commit struct {
	Version   int      `json:"version"`
	Type      string   `json:"type"`
	Tree      string   `json:"tree"`
	Parents   []string `json:"parents"`
	UID       string   `json:"uid"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
}

// Parent returns the single parent id, or "" for a root commit.
func (c *Commit) Parent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

// blobEnvelope builds the addressable payload from a signature,
// stripping identity and placement fields. Placement belongs to the
// tree; keeping it out of the blob is what lets a moved or renamed
// entity deduplicate against its old content.
func blobEnvelope(sig signature.Signature) map[string]any {
	return map[string]any{
		"version": SchemaVersion,
		"type":    "object-blob",
		"data":    map[string]string(sig.StripIdentity()),
	}
}

// PutBlob stores one entity signature payload.
//
// Description:
//
//	Canonical-serialize, hash, write-if-absent. Calling twice with
//	the same content returns the same id and leaves the first file
//	untouched byte for byte.
func (s *Store) PutBlob(sig signature.Signature) (string, error) {
	envelope := blobEnvelope(sig)
	id, err := hashContent(envelope)
	if err != nil {
		return "", err
	}
	data, err := prettyJSON(envelope)
	if err != nil {
		return "", err
	}
	if err := s.writeIfAbsent(kindBlob, s.objectPath(kindBlob, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// ReadBlob loads a blob's signature payload. A missing id yields an
// empty map, never an error.
func (s *Store) ReadBlob(id string) (signature.Signature, error) {
	var blob Blob
	ok, err := s.readObject(kindBlob, id, &blob)
	if err != nil {
		return nil, err
	}
	if !ok {
		return signature.Signature{}, nil
	}
	return signature.Signature(blob.Data), nil
}

// treeNode is the in-memory shape assembled before the post-order
// flush.
type treeNode struct {
	objects  map[string]string
	children map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{
		objects:  make(map[string]string),
		children: make(map[string]*treeNode),
	}
}

func (n *treeNode) insert(path []string, name, blobID string) {
	node := n
	for _, seg := range path {
		child, ok := node.children[seg]
		if !ok {
			child = newTreeNode()
			node.children[seg] = child
		}
		node = child
	}
	node.objects[name] = blobID
}

// flush writes the subtree bottom-up so every child id is resolved
// before the parent content is hashed.
func (s *Store) flush(n *treeNode) (string, error) {
	childEntries := make(map[string]string, len(n.children))
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, err := s.flush(n.children[name])
		if err != nil {
			return "", err
		}
		childEntries[name] = id
	}

	content := map[string]any{
		"version":  SchemaVersion,
		"type":     "tree",
		"objects":  n.objects,
		"children": childEntries,
	}
	id, err := hashContent(content)
	if err != nil {
		return "", err
	}
	data, err := prettyJSON(content)
	if err != nil {
		return "", err
	}
	if err := s.writeIfAbsent(kindTree, s.objectPath(kindTree, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// WriteTree stores blobs and trees for a whole flattened graph.
//
// Description:
//
//	Each signature becomes a blob; its collection_path places it in
//	the group hierarchy, which is then flushed post-order. A
//	signature that fails to serialize is skipped; its absence from
//	the tree reads back as a removal.
//
// Outputs:
//   - string: root tree id.
//   - map[string]string: entity name to blob id.
func (s *Store) WriteTree(sigs map[string]signature.Signature) (string, map[string]string, error) {
	timer := time.Now()
	root := newTreeNode()
	mapping := make(map[string]string, len(sigs))
	for name, sig := range sigs {
		blobID, err := s.PutBlob(sig)
		if err != nil {
			s.log.Warn("skipping unserializable entity", "entity", name, "error", err)
			continue
		}
		mapping[name] = blobID
		root.insert(splitPath(sig[signature.FieldCollectionPath]), name, blobID)
	}
	treeID, err := s.flush(root)
	if err != nil {
		return "", nil, err
	}
	treeWriteDuration.Observe(time.Since(timer).Seconds())
	return treeID, mapping, nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '|' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

// ReadTree loads one tree level. Missing ids yield an empty tree.
func (s *Store) ReadTree(id string) (Tree, error) {
	var tree Tree
	ok, err := s.readObject(kindTree, id, &tree)
	if err != nil {
		return Tree{}, err
	}
	if !ok {
		return Tree{Objects: map[string]string{}, Children: map[string]string{}}, nil
	}
	if tree.Objects == nil {
		tree.Objects = map[string]string{}
	}
	if tree.Children == nil {
		tree.Children = map[string]string{}
	}
	return tree, nil
}

// WriteCommit stores a commit object pointing at treeID. parent may be
// "" for a root commit.
func (s *Store) WriteCommit(treeID, uid, timestamp, message, parent string) (string, error) {
	parents := []string{}
	if parent != "" {
		parents = append(parents, parent)
	}
	content := map[string]any{
		"version":   SchemaVersion,
		"type":      TypeCommit,
		"tree":      treeID,
		"parents":   parents,
		"uid":       uid,
		"timestamp": timestamp,
		"message":   message,
	}
	id, err := hashContent(content)
	if err != nil {
		return "", err
	}
	data, err := prettyJSON(content)
	if err != nil {
		return "", err
	}
	if err := s.writeIfAbsent(kindCommit, s.objectPath(kindCommit, id), data); err != nil {
		return "", err
	}
	return id, nil
}

// ReadCommit loads a commit. A missing id yields a zero Commit.
func (s *Store) ReadCommit(id string) (Commit, error) {
	var commit Commit
	ok, err := s.readObject(kindCommit, id, &commit)
	if err != nil {
		return Commit{}, err
	}
	if !ok {
		return Commit{}, nil
	}
	return commit, nil
}

// FlattenTree reconstructs the flat name-to-signature map for a whole
// tree, rebuilding each entity's collection_path from walk position so
// the result compares directly against a live graph's signature map.
func (s *Store) FlattenTree(treeID string) (map[string]signature.Signature, error) {
	out := make(map[string]signature.Signature)
	if err := s.flattenInto(treeID, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) flattenInto(treeID, path string, out map[string]signature.Signature) error {
	tree, err := s.ReadTree(treeID)
	if err != nil {
		return err
	}
	for name, blobID := range tree.Objects {
		sig, err := s.ReadBlob(blobID)
		if err != nil {
			return fmt.Errorf("flatten tree %s: %w", treeID, err)
		}
		if len(sig) == 0 {
			continue
		}
		sig[signature.FieldName] = name
		sig[signature.FieldCollectionPath] = path
		out[name] = sig
	}
	for childName, childID := range tree.Children {
		childPath := childName
		if path != "" {
			childPath = path + "|" + childName
		}
		if err := s.flattenInto(childID, childPath, out); err != nil {
			return err
		}
	}
	return nil
}
