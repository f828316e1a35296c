package optimistic

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brunoga/optimistic/internal/core"
)

// Tracker maintains the set of edits made to a live document since the last
// snapshot agreed with the remote authority (the "original").
//
// Edits are either recorded incrementally through Record, or, when nothing
// was recorded, computed by diffing the original against the document's
// current snapshot.
type Tracker struct {
	doc      Document
	cfg      *config
	differ   *Differ
	original Snapshot
	version  string
	ops      OperationSet
	muted    int
}

// NewTracker creates a tracker for doc whose agreed state is original.
func NewTracker(doc Document, original Snapshot, opts ...Option) *Tracker {
	return newTracker(doc, original, newConfig(opts))
}

func newTracker(doc Document, original Snapshot, cfg *config) *Tracker {
	return &Tracker{
		doc:      doc,
		cfg:      cfg,
		differ:   NewDiffer(cfg.identityField),
		original: original,
	}
}

// Document returns the live document being tracked.
func (t *Tracker) Document() Document {
	return t.doc
}

// Original returns the last agreed snapshot with ignored fields stripped.
func (t *Tracker) Original() Snapshot {
	return t.original.Omit(t.cfg.ignored...)
}

// SetOriginal replaces the agreed snapshot and persists the window when a
// state store is configured.
func (t *Tracker) SetOriginal(s Snapshot) error {
	t.original = s
	return t.persist()
}

// Version returns the last remote version token seen.
func (t *Tracker) Version() string {
	return t.version
}

// SetVersion stores the remote version token.
func (t *Tracker) SetVersion(version string) {
	t.version = version
}

// Record adds a local edit to the incremental log. Edits made while the
// engine itself mutates the document are ignored, and so are edits of
// ignored fields.
//
// The log holds at most one edit per target: a new edit replaces the
// previous one at the same path, a removal cancels an earlier addition, an
// edit that restores the original value cancels the entry altogether and an
// edit of a value supersedes earlier edits below it. Appends always stand on
// their own.
func (t *Tracker) Record(op Operation) {
	if t.muted > 0 || t.ignores(op) {
		return
	}
	if op.IsAppend() {
		t.ops = append(t.ops, op)
		return
	}

	key := t.targetKey(op)
	var prev *Operation
	kept := make(OperationSet, 0, len(t.ops)+1)
	for _, l := range t.ops {
		sameTarget := t.targetKey(l) == key
		switch {
		case prev == nil && sameTarget && l.Path == op.Path && !(l.Kind == OpRemove && op.Kind == OpRemove):
			p := l
			prev = &p
		case op.Kind != OpAdd && strings.HasPrefix(l.Path, op.Path+"/") && (op.Context == nil || sameTarget):
			t.cfg.logger.Debug("edit superseded", zap.Stringer("old", l), zap.Stringer("new", op))
		default:
			kept = append(kept, l)
		}
	}

	merged, ok := t.merge(prev, op)
	if ok {
		kept = append(kept, merged)
	}
	t.ops = kept
}

// merge combines the previous log entry for a target with a new edit. It
// returns false when the two cancel out.
func (t *Tracker) merge(prev *Operation, op Operation) (Operation, bool) {
	merged := op
	if prev != nil {
		switch {
		case prev.Kind == OpAdd && op.Kind == OpRemove:
			return Operation{}, false
		case prev.Kind == OpAdd:
			merged.Kind = OpAdd
		case prev.Kind == OpRemove && op.Kind != OpRemove:
			merged.Kind = OpReplace
		}
	}
	if merged.Kind == OpReplace && merged.Context == nil {
		if orig, found := Resolve(t.Original(), merged.Path); found && core.Equal(orig, merged.Value) {
			return Operation{}, false
		}
	}
	return merged, true
}

// targetKey identifies the collection member an edit belongs to, if any.
// Edits outside collections share the empty key.
func (t *Tracker) targetKey(op Operation) string {
	el, ok := op.Context.Element()
	if !ok {
		return ""
	}
	return t.differ.Identity(el)
}

func (t *Tracker) ignores(op Operation) bool {
	root := op.Tokens().Root()
	for _, name := range t.cfg.ignored {
		if root == name {
			return true
		}
	}
	return false
}

// Log returns a copy of the incremental edit log.
func (t *Tracker) Log() OperationSet {
	return t.ops.Clone()
}

// ResetLog discards the incremental edit log. Subsequent LocalOps calls fall
// back to diffing.
func (t *Tracker) ResetLog() {
	t.ops = nil
}

func (t *Tracker) setLog(ops OperationSet) {
	if t.ops != nil {
		t.ops = ops.Clone()
	}
}

// withoutRecording runs fn with recording suspended.
func (t *Tracker) withoutRecording(fn func()) {
	t.muted++
	defer func() { t.muted-- }()
	fn()
}

// LocalOps returns the local edit set. A non-empty incremental log is
// returned as is. Otherwise original (default: Original()) is diffed against
// current (default: the document's materialized snapshot), after sorting the
// current collections and running the configured comparators.
func (t *Tracker) LocalOps(original, current Snapshot) OperationSet {
	if len(t.ops) > 0 {
		return t.ops.Clone()
	}
	if original == nil {
		original = t.Original()
	}
	if current == nil {
		current = t.doc.Materialize()
	}
	current = t.SortCollections(current.Omit(t.cfg.ignored...))

	var ops OperationSet
	var omit []string
	for _, field := range t.cfg.compareOrder {
		result, custom := t.cfg.comparators[field](original[field], current[field])
		switch result {
		case CompareEqual:
			omit = append(omit, field)
		case CompareCustom:
			ops = append(ops, custom...)
			omit = append(omit, field)
		}
	}
	if len(omit) > 0 {
		t.cfg.logger.Debug("custom comparators excluded fields", zap.Strings("fields", omit))
	}

	return append(ops, t.differ.Diff(original.Omit(omit...), current.Omit(omit...))...)
}

// SortCollections returns a copy of s whose collections are ordered by their
// configured sort key. Fields without a sort key are left untouched.
func (t *Tracker) SortCollections(s Snapshot) Snapshot {
	if len(t.cfg.sortKeys) == 0 && t.cfg.defaultSort == "" {
		return s
	}
	out := s.Omit()
	for _, name := range t.doc.Schema().Collections() {
		key := t.cfg.sortKeys[name]
		if key == "" {
			key = t.cfg.defaultSort
		}
		list, ok := core.AsArray(out[name])
		if key == "" || !ok || list == nil {
			continue
		}
		sorted := make([]any, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return core.Compare(sortValue(sorted[i], key), sortValue(sorted[j], key)) < 0
		})
		t.cfg.logger.Debug("sorted collection", zap.String("collection", name), zap.String("key", key))
		out[name] = sorted
	}
	return out
}

func sortValue(member any, key string) any {
	m, ok := core.AsObject(member)
	if !ok {
		return member
	}
	return m[key]
}

// Restore loads the persisted window from the configured state store.
func (t *Tracker) Restore() error {
	if t.cfg.store == nil {
		return ErrNoStateStore
	}
	state, err := t.cfg.store.LoadState(t.cfg.storeKey)
	if err != nil {
		return fmt.Errorf("restoring %q: %w", t.cfg.storeKey, err)
	}
	t.original = state.Original
	t.version = state.Version
	return nil
}

func (t *Tracker) persist() error {
	if t.cfg.store == nil {
		return nil
	}
	state := State{Version: t.version, Original: t.original}
	if err := t.cfg.store.SaveState(t.cfg.storeKey, state); err != nil {
		return fmt.Errorf("persisting %q: %w", t.cfg.storeKey, err)
	}
	return nil
}
