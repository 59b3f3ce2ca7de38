// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vault is the engine orchestrator. It ties the signature,
// diff, snapshot, object store, history and mirror services into the
// user-facing operations: initialize, commit, log, checkout, undo and
// branch management.
//
// The engine is single-writer and synchronous. The only concurrency
// guard is the atomic ref rename inside the object store; everything
// else assumes one operation at a time over one host document.
package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/BlendVault/pkg/logging"
	"github.com/AleutianAI/BlendVault/services/vault/cas"
	"github.com/AleutianAI/BlendVault/services/vault/diff"
	"github.com/AleutianAI/BlendVault/services/vault/history"
	"github.com/AleutianAI/BlendVault/services/vault/mirror"
	"github.com/AleutianAI/BlendVault/services/vault/scene"
	"github.com/AleutianAI/BlendVault/services/vault/signature"
	"github.com/AleutianAI/BlendVault/services/vault/snapshot"
	"github.com/AleutianAI/BlendVault/services/vault/storage/badger"
)

var tracer = otel.Tracer("blendvault.vault")

// slugMaxLen bounds the message slug embedded in snapshot names.
const slugMaxLen = 50

// DocumentStore persists the host document around mutating
// operations. The engine calls Save before it mutates the document
// and again after the operation completes.
type DocumentStore interface {
	Save(ctx context.Context) error
}

// CommitResult reports one completed commit.
type CommitResult struct {
	// OpID correlates the commit's log lines and spans.
	OpID string

	Branch    string
	UID       string
	CommitID  string
	TreeID    string
	Message   string
	Timestamp string

	// SnapshotName is the final name of the archive snapshot group.
	SnapshotName string

	// Changed lists the entities materialized in the snapshot, after
	// dependency closure, sorted.
	Changed []string

	// Mirrored reports whether the git mirror recorded the commit.
	// MirrorStatus carries the bridge's reason code either way.
	Mirrored     bool
	MirrorStatus string
}

// Engine runs vault operations over one host document and one object
// store.
//
// Thread Safety: NOT safe for concurrent use.
type Engine struct {
	cfg  Config
	host scene.Host
	log  *logging.Logger

	store   *cas.Store
	snaps   *snapshot.Manager
	db      *badger.DB
	journal *history.Journal
	cache   *history.LogCache
	watcher *history.RefWatcher
	bridge  *mirror.Bridge

	uids  *uidSource
	now   func() time.Time
	saver DocumentStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides the engine clock. Commit uids and timestamps
// derive from it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDocumentStore registers a persistence hook for the host
// document.
func WithDocumentStore(s DocumentStore) Option {
	return func(e *Engine) { e.saver = s }
}

// NewEngine opens the object store and journal and wires up the
// engine.
//
// Inputs:
//   - host: the live scene document.
//   - cfg: engine configuration; validated before anything opens.
//   - opts: optional overrides.
//
// Outputs:
//   - *Engine: ready engine. Call Close when done.
//   - error: Non-nil on invalid config or store/journal open failure.
func NewEngine(host scene.Host, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:  cfg,
		host: host,
		log:  logging.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.uids = newUIDSource(e.now)

	store, err := cas.NewStore(cfg.StoreDir, e.log.Slog())
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	e.store = store
	e.snaps = snapshot.NewManager(host, e.log.Slog())

	dbCfg := badger.DefaultConfig()
	dbCfg.Path = cfg.journalDir()
	if cfg.JournalInMemory {
		dbCfg = badger.InMemoryConfig()
	}
	dbCfg.Logger = e.log.Slog()
	db, err := badger.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	e.db = db
	e.journal = history.NewJournal(db, e.log.Slog())

	e.cache = history.NewLogCache(
		history.WithTTL(cfg.CacheTTL),
		history.WithClock(e.now),
	)
	if cfg.WatchRefs {
		w, err := history.NewRefWatcher(cfg.StoreDir, e.cache, nil)
		if err != nil {
			e.log.Warn("ref watcher unavailable", "error", err)
		} else {
			e.watcher = w
			go e.watcher.Start(context.Background())
		}
	}

	e.bridge = mirror.NewBridge(cfg.StoreDir, cfg.Mirror.Enabled, e.log.Slog())
	return e, nil
}

// Close releases the journal database and stops the ref watcher.
func (e *Engine) Close() error {
	if e.watcher != nil {
		if err := e.watcher.Stop(); err != nil {
			e.log.Warn("stopping ref watcher", "error", err)
		}
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Store exposes the underlying object store, mainly for tests and the
// CLI's plumbing commands.
func (e *Engine) Store() *cas.Store { return e.store }

func (e *Engine) branchOrDefault(branch string) string {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return e.cfg.DefaultBranch
	}
	return branch
}

// initialized reports whether the document carries an archive. Hosts
// other than Document are assumed initialized.
func (e *Engine) initialized() bool {
	if doc, ok := e.host.(*scene.Document); ok {
		return doc.HasArchive()
	}
	return true
}

// entityDeps resolves one entity's referenced names for the diff
// closure.
func (e *Engine) entityDeps(name string) []string {
	ent, ok := e.host.LookupEntity(name)
	if !ok {
		return nil
	}
	return ent.Dependencies()
}

// saveDocument runs the persistence hook. Failures after a commit are
// logged, not returned; the store already holds the truth.
func (e *Engine) saveDocument(ctx context.Context, stage string) error {
	if e.saver == nil {
		return nil
	}
	if err := e.saver.Save(ctx); err != nil {
		return fmt.Errorf("save document (%s): %w", stage, err)
	}
	return nil
}

// Initialize prepares the document and records the first commit.
//
// Description:
//
//	Creates the archive root if missing and delegates to Commit with
//	an "Initialize" message. Re-running on an initialized store with
//	an unchanged graph returns ErrNoChanges like any other commit.
func (e *Engine) Initialize(ctx context.Context) (CommitResult, error) {
	e.host.Archive()
	return e.Commit(ctx, e.cfg.DefaultBranch, "Initialize")
}

// Commit records the working graph as a new commit on a branch.
//
// Description:
//
//	Computes entity signatures over the working root, skips when the
//	graph matches the branch head, derives the changed set plus its
//	dependency closure, creates a differential snapshot in the
//	archive, writes blobs, tree, commit and ref to the object store,
//	appends to the metadata journal, invalidates the log cache and
//	optionally mirrors into git. Journal and mirror failures are
//	warnings; the object store write is the commit.
//
// Inputs:
//   - ctx: carries the trace span and cancellation for journal and
//     mirror work.
//   - branch: target branch; "" means the configured default.
//   - message: commit message, must be non-empty after trimming.
//
// Outputs:
//   - CommitResult: identifiers of everything written.
//   - error: ErrEmptyMessage, ErrNotInitialized, ErrNoChanges, or a
//     wrapped store error.
func (e *Engine) Commit(ctx context.Context, branch, message string) (CommitResult, error) {
	branch = e.branchOrDefault(branch)
	ctx, span := tracer.Start(ctx, "vault.Commit",
		trace.WithAttributes(attribute.String("vault.branch", branch)))
	defer span.End()

	fail := func(err error) (CommitResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CommitResult{}, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return fail(ErrEmptyMessage)
	}
	if !e.initialized() {
		return fail(ErrNotInitialized)
	}

	opID := uuid.NewString()
	log := e.log.With("op_id", opID, "branch", branch)

	if err := e.saveDocument(ctx, "pre-commit"); err != nil {
		return fail(err)
	}

	src := e.host.Source()
	sigs, graphHash := signature.ComputeGraphSignature(src)

	head, err := e.store.ReadRef(branch)
	if err != nil {
		return fail(err)
	}

	var prev map[string]signature.Signature
	if head != "" {
		commit, err := e.store.ReadCommit(head)
		if err != nil {
			return fail(err)
		}
		prev, err = e.store.FlattenTree(commit.Tree)
		if err != nil {
			return fail(err)
		}
		if diff.ShouldSkip(sigs, prev) {
			log.Info("graph unchanged, skipping commit", "graph_hash", graphHash)
			span.SetStatus(codes.Ok, "skipped")
			return CommitResult{}, ErrNoChanges
		}
	}

	var changed []string
	if head == "" {
		for name := range sigs {
			changed = append(changed, name)
		}
	} else {
		_, names := diff.DeriveChangedSet(sigs, prev)
		changed = names
	}
	changed = diff.ExpandClosure(changed, sigs, e.entityDeps)

	changedSet := make(map[string]bool, len(changed))
	for _, name := range changed {
		changedSet[name] = true
	}

	uid := e.uids.Next()
	snap, err := e.snaps.Create(src, uid, changedSet)
	if err != nil {
		return fail(fmt.Errorf("snapshot: %w", err))
	}

	// Snapshot groups carry the branch and message slug in their
	// name for humans; the machine-readable identity stays in tags.
	base := branch
	if slug := Slugify(message, slugMaxLen); slug != "" {
		base = branch + "-" + slug
	}
	snapName, err := e.host.RenameGroup(snap.Root, fmt.Sprintf("%s_%s", base, uid))
	if err != nil {
		log.Warn("snapshot rename failed", "error", err)
		snapName = snap.Root.Name
	}

	treeID, _, err := e.store.WriteTree(sigs)
	if err != nil {
		return fail(fmt.Errorf("write tree: %w", err))
	}
	timestamp := e.now().Format(timestampLayout)
	commitID, err := e.store.WriteCommit(treeID, uid, timestamp, message, head)
	if err != nil {
		return fail(fmt.Errorf("write commit: %w", err))
	}
	if err := e.store.UpdateRef(branch, commitID); err != nil {
		return fail(fmt.Errorf("update ref: %w", err))
	}

	// Rebuild changed from the closure in deterministic order for
	// reporting and journaling.
	changed = changed[:0]
	for name := range changedSet {
		changed = append(changed, name)
	}
	sort.Strings(changed)

	if err := e.journal.Record(ctx, history.Entry{
		CommitID:       commitID,
		Branch:         branch,
		UID:            uid,
		TreeID:         treeID,
		ParentID:       head,
		Timestamp:      timestamp,
		Message:        message,
		ChangedObjects: changed,
		SnapshotUID:    uid,
	}); err != nil {
		log.Warn("journal append failed", "uid", uid, "error", err)
	}
	e.cache.Invalidate(branch)

	mirrored, status := e.bridge.Commit(ctx, branch, message, uid)

	if err := e.saveDocument(ctx, "post-commit"); err != nil {
		log.Warn("post-commit save failed", "error", err)
	}

	log.Info("commit recorded",
		"uid", uid, "commit_id", commitID, "tree_id", treeID,
		"changed", len(changed), "mirrored", mirrored)
	span.SetAttributes(
		attribute.String("vault.uid", uid),
		attribute.Int("vault.changed", len(changed)),
	)
	span.SetStatus(codes.Ok, "")

	return CommitResult{
		OpID:         opID,
		Branch:       branch,
		UID:          uid,
		CommitID:     commitID,
		TreeID:       treeID,
		Message:      message,
		Timestamp:    timestamp,
		SnapshotName: snapName,
		Changed:      changed,
		Mirrored:     mirrored,
		MirrorStatus: status,
	}, nil
}

// Log lists a branch's commits newest first, through the TTL cache.
// Cache misses are answered from the journal index when it is current,
// walking the commit object files only as a last resort.
func (e *Engine) Log(ctx context.Context, branch string) ([]cas.CommitEntry, error) {
	branch = e.branchOrDefault(branch)
	return e.cache.CachedLog(ctx, e.store, e.journal, branch, e.cfg.HistoryLimit)
}

// ChangedBetween lists the entity names touched by the commits after
// fromUID up to and including toUID, sorted. An empty toUID means the
// branch head; an empty fromUID covers the whole history.
//
// The answer comes from the journal index, which records each commit's
// changed set at commit time. Commits made while journaling was
// unavailable are absent from the union.
func (e *Engine) ChangedBetween(ctx context.Context, branch, fromUID, toUID string) ([]string, error) {
	branch = e.branchOrDefault(branch)
	if toUID == "" {
		head, err := e.store.ReadRef(branch)
		if err != nil {
			return nil, err
		}
		if head == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCommits, branch)
		}
		commit, err := e.store.ReadCommit(head)
		if err != nil {
			return nil, err
		}
		toUID = commit.UID
	}
	return e.journal.ChangedObjectsBetween(ctx, branch, fromUID, toUID)
}

// Checkout restores the working root to the state of one commit.
//
// Description:
//
//	Resolves the commit by uid on the branch, flattens its tree into
//	the desired signature set, gathers archive snapshots up to and
//	including the commit's uid, and runs the restore: entities
//	outside the desired set are removed, desired entities are
//	re-duplicated from the newest snapshot that holds them, and
//	references among the restored set are remapped. The branch ref
//	does not move.
//
// Outputs:
//   - snapshot.RestoreCounts: restored, skipped and removed entity
//     counts.
//   - error: ErrNotInitialized, ErrUnknownCommit, or a restore
//     failure detected before mutation.
func (e *Engine) Checkout(ctx context.Context, branch, uid string) (snapshot.RestoreCounts, error) {
	branch = e.branchOrDefault(branch)
	ctx, span := tracer.Start(ctx, "vault.Checkout",
		trace.WithAttributes(
			attribute.String("vault.branch", branch),
			attribute.String("vault.uid", uid),
		))
	defer span.End()

	fail := func(err error) (snapshot.RestoreCounts, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return snapshot.RestoreCounts{}, err
	}

	if !e.initialized() {
		return fail(ErrNotInitialized)
	}

	entry, ok, err := e.store.ResolveCommitByUID(branch, uid)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return fail(fmt.Errorf("%w: %s on %s", ErrUnknownCommit, uid, branch))
	}

	desired, err := e.store.FlattenTree(entry.Commit.Tree)
	if err != nil {
		return fail(fmt.Errorf("flatten tree: %w", err))
	}

	if err := e.saveDocument(ctx, "pre-checkout"); err != nil {
		return fail(err)
	}

	src := e.host.Source()
	roots := e.snaps.ListSnapshots(src.Name, entry.Commit.UID)
	counts, err := e.snaps.Restore(desired, src, roots)
	if err != nil {
		return fail(fmt.Errorf("restore: %w", err))
	}

	if err := e.saveDocument(ctx, "post-checkout"); err != nil {
		e.log.Warn("post-checkout save failed", "error", err)
	}

	e.log.Info("checkout complete",
		"branch", branch, "uid", uid,
		"restored", counts.Restored, "skipped", counts.Skipped,
		"removed", counts.Removed)
	span.SetStatus(codes.Ok, "")
	return counts, nil
}

// UndoCommit removes the newest commit on a branch.
//
// Description:
//
//	Moves the branch ref to the parent commit (or deletes the ref
//	for a root commit), deletes the commit's archive snapshot group,
//	and rewinds the journal. Object store blobs and trees stay; they
//	are content addressed and may back other commits.
//
// Outputs:
//   - string: uid of the removed commit.
//   - error: ErrNoCommits or a wrapped store error.
func (e *Engine) UndoCommit(ctx context.Context, branch string) (string, error) {
	branch = e.branchOrDefault(branch)

	head, err := e.store.ReadRef(branch)
	if err != nil {
		return "", err
	}
	if head == "" {
		return "", fmt.Errorf("%w: %s", ErrNoCommits, branch)
	}
	commit, err := e.store.ReadCommit(head)
	if err != nil {
		return "", err
	}

	parent := commit.Parent()
	if parent != "" {
		if err := e.store.UpdateRef(branch, parent); err != nil {
			return "", fmt.Errorf("rewind ref: %w", err)
		}
	} else if err := e.store.DeleteRef(branch); err != nil {
		return "", fmt.Errorf("delete ref: %w", err)
	}

	e.removeSnapshotByUID(commit.UID)

	if err := e.journal.Remove(ctx, branch, commit.UID, parent); err != nil {
		e.log.Warn("journal rewind failed", "branch", branch, "error", err)
	}
	e.cache.Invalidate(branch)

	e.log.Info("commit undone", "branch", branch, "uid", commit.UID)
	return commit.UID, nil
}

// removeSnapshotByUID drops the archive snapshot group tagged with
// uid, when one exists.
func (e *Engine) removeSnapshotByUID(uid string) {
	archive := e.host.Archive()
	for _, child := range archive.Children {
		if child.TagValue(snapshot.TagUID) != uid {
			continue
		}
		if err := e.host.RemoveGroup(child.Name); err != nil {
			e.log.Warn("snapshot removal failed", "group", child.Name, "error", err)
		}
		return
	}
}

// Branches lists every branch with at least one commit.
func (e *Engine) Branches() ([]string, error) {
	return e.store.ListBranches()
}

// CreateBranch points a new branch at another branch's head.
//
// Inputs:
//   - name: new branch name.
//   - from: source branch; "" means the configured default.
//
// Outputs:
//   - error: ErrBranchExists, ErrNoCommits when the source has no
//     history, or a wrapped ref error.
func (e *Engine) CreateBranch(ctx context.Context, name, from string) error {
	from = e.branchOrDefault(from)

	existing, err := e.store.ReadRef(name)
	if err != nil {
		return err
	}
	if existing != "" {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	head, err := e.store.ReadRef(from)
	if err != nil {
		return err
	}
	if head == "" {
		return fmt.Errorf("%w: %s", ErrNoCommits, from)
	}
	if err := e.store.UpdateRef(name, head); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	e.log.Info("branch created", "branch", name, "from", from)
	return nil
}

// DeleteBranch removes a branch's ref, journal entries, cached log
// and archive snapshots. The default branch is protected.
func (e *Engine) DeleteBranch(ctx context.Context, name string) error {
	if name == e.cfg.DefaultBranch {
		return ErrProtectedBranch
	}
	if err := e.store.DeleteRef(name); err != nil {
		return err
	}
	if err := e.journal.DeleteBranch(ctx, name); err != nil {
		e.log.Warn("journal branch delete failed", "branch", name, "error", err)
	}
	e.cache.Invalidate(name)
	e.removeBranchSnapshots(name)
	e.log.Info("branch deleted", "branch", name)
	return nil
}

// removeBranchSnapshots best-effort deletes archive snapshot groups
// named for the branch.
func (e *Engine) removeBranchSnapshots(branch string) {
	archive := e.host.Archive()
	var doomed []string
	for _, child := range archive.Children {
		if strings.HasPrefix(child.Name, branch+"-") || strings.HasPrefix(child.Name, branch+"_") {
			doomed = append(doomed, child.Name)
		}
	}
	for _, name := range doomed {
		if err := e.host.RemoveGroup(name); err != nil {
			e.log.Warn("snapshot removal failed", "group", name, "error", err)
		}
	}
}
