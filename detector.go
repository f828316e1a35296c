package optimistic

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"go.uber.org/zap"
)

// Detector runs detection passes for one live document: it classifies remote
// changes against local edits, auto-applies what the policy allows and
// produces a Report.
//
// A Detector is not safe for concurrent use; the host must serialize passes
// for the same document.
type Detector struct {
	cfg     *config
	doc     Document
	tracker *Tracker
	applier *Applier
	differ  *Differ
}

// NewDetector creates a Detector for doc. original is the last snapshot agreed
// with the remote side. When it is nil, the window persisted in the
// configured StateStore is loaded; if none exists either, the document's
// current snapshot is taken as the original.
func NewDetector(doc Document, original Snapshot, opts ...Option) (*Detector, error) {
	cfg := newConfig(opts)
	d := &Detector{
		cfg:     cfg,
		doc:     doc,
		tracker: newTracker(doc, original, cfg),
		applier: newApplier(cfg),
		differ:  NewDiffer(cfg.identityField),
	}
	if original != nil {
		return d, nil
	}
	if cfg.store != nil {
		err := d.tracker.Restore()
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrStateNotFound) {
			return nil, err
		}
	}
	d.tracker.original = doc.Materialize()
	return d, nil
}

// Tracker returns the local edit tracker of the document.
func (d *Detector) Tracker() *Tracker {
	return d.tracker
}

// Applier returns the applier used for auto-resolution.
func (d *Detector) Applier() *Applier {
	return d.applier
}

// DetectRaw parses raw with the document's RemoteParser, or as plain JSON
// when the document does not implement one, and runs Detect.
func (d *Detector) DetectRaw(version string, raw []byte, policy Policy) (*Report, Diagnostics, error) {
	server, err := d.ParseRemote(raw)
	if err != nil {
		return nil, nil, err
	}
	report, diags := d.Detect(version, server, policy)
	return report, diags, nil
}

// ParseRemote converts a wire payload into a snapshot.
func (d *Detector) ParseRemote(raw []byte) (Snapshot, error) {
	if p, ok := d.doc.(RemoteParser); ok {
		s, err := p.ParseRemote(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing remote payload: %w", err)
		}
		return s, nil
	}
	return ParseSnapshot(raw)
}

// Detect runs one detection pass against the remote snapshot server at
// version. It returns nil when there was nothing to report: no conflicts and
// no remote change applied. Problems met along the way never abort the pass;
// they are returned as diagnostics.
func (d *Detector) Detect(version string, server Snapshot, policy Policy) (*Report, Diagnostics) {
	start := time.Now()
	log := d.cfg.logger.With(zap.String("version", version), zap.Stringer("policy", policy))

	d.tracker.SetVersion(version)
	full := server
	server = server.Omit(d.cfg.ignored...)
	original := d.tracker.Original()

	remote := d.differ.Diff(original, server)
	unsaved := d.tracker.LocalOps(original, nil)
	log.Debug("computed changes", zap.Int("remote", len(remote)), zap.Int("local", len(unsaved)))

	var (
		conflicts   []ConflictRecord
		dropRemote  = make(map[int]bool)
		dropLocal   = make(map[int]bool)
		clientValue = make(map[int]any)
	)
	for i, rop := range remote {
		j, found := findCollision(unsaved, rop, dropLocal)
		if !found {
			if policy.AutoResolves() {
				continue
			}
			dropRemote[i] = true
			conflicts = append(conflicts, ConflictRecord{
				Server:   cloneOp(rop),
				Original: d.originalAt(original, rop),
			})
			continue
		}

		lop := unsaved[j]
		log.Debug("found collision", zap.Stringer("server", rop), zap.Stringer("client", lop))
		bothRemoved := rop.Kind == OpRemove
		sameChange := rop.Kind == OpReplace && Equal(rop.Value, lop.Value)
		bothAppend := rop.Kind == OpAdd && rop.IsAppend()

		switch {
		case bothRemoved || sameChange:
			dropRemote[i] = true
			dropLocal[j] = true
		case bothAppend && policy.AutoResolves():
		case policy == ServerWins:
			dropLocal[j] = true
			clientValue[i] = lop.Value
		default:
			dropRemote[i] = true
			client := cloneOp(lop)
			conflicts = append(conflicts, ConflictRecord{
				Client:   &client,
				Server:   cloneOp(rop),
				Original: d.originalAt(original, rop),
			})
		}
	}

	if len(dropLocal) > 0 {
		log.Debug("cleaning up local edits", zap.Int("dropped", len(dropLocal)))
		d.tracker.setLog(unsaved.Without(dropLocal))
	}
	pending := unsaved.Without(dropLocal)
	annotated := make([]UnsavedOperation, len(pending))
	for i, op := range pending {
		annotated[i] = UnsavedOperation{Operation: cloneOp(op), Original: d.originalAt(original, op)}
	}

	var resolved []ResolvedOperation
	var changed OperationSet
	if policy.AutoResolves() {
		for i, rop := range remote {
			if dropRemote[i] {
				continue
			}
			changed = append(changed, rop)
			v, discarded := clientValue[i]
			orig, _ := Resolve(original, rop.Path)
			resolved = append(resolved, ResolvedOperation{
				Server:          cloneOp(rop),
				Original:        clone.Clone(orig),
				ClientDiscarded: discarded,
				Client:          clone.Clone(v),
			})
		}
	}

	var diags Diagnostics
	if len(changed) > 0 {
		log.Debug("auto-resolving", zap.Int("operations", len(changed)))
		d.tracker.withoutRecording(func() {
			diags = d.applier.Apply(d.doc, original, changed)
		})
	}

	if len(conflicts) == 0 && len(resolved) == 0 {
		d.observe(KindNone, nil, start, diags)
		return nil, diags
	}

	report := &Report{
		ID:          uuid.NewString(),
		Kind:        KindConflict,
		Version:     version,
		Conflicts:   conflicts,
		Resolved:    resolved,
		Unsaved:     annotated,
		ServerState: server.Clone(),
		Original:    original.Clone(),
	}
	if len(conflicts) == 0 {
		report.Kind = KindAutoResolved
		if err := d.tracker.SetOriginal(full); err != nil {
			diags = append(diags, newDiagnostic(StoreFailure, nil, "%v", err))
		}
	}
	log.Debug("emitting report", zap.String("id", report.ID), zap.String("kind", string(report.Kind)),
		zap.Int("conflicts", len(conflicts)), zap.Int("resolved", len(resolved)))
	d.observe(report.Kind, report, start, diags)
	return report, diags
}

func (d *Detector) observe(kind ReportKind, report *Report, start time.Time, diags Diagnostics) {
	if d.cfg.recorder == nil {
		return
	}
	var conflicts, resolved, discarded int
	if report != nil {
		conflicts = len(report.Conflicts)
		for _, r := range report.Resolved {
			if r.ClientDiscarded {
				discarded++
			} else {
				resolved++
			}
		}
	}
	d.cfg.recorder.ObservePass(kind, conflicts, resolved, discarded, time.Since(start))
	if len(diags) > 0 {
		d.cfg.recorder.ObserveDiagnostics(diags)
	}
}

// originalAt returns the value op's path held in original, nil for additions
// and for paths that do not resolve.
func (d *Detector) originalAt(original Snapshot, op Operation) any {
	if op.Kind == OpAdd {
		return nil
	}
	v, ok := Resolve(original, op.Path)
	if !ok {
		d.cfg.logger.Debug("lookup miss", zap.String("path", op.Path))
		return nil
	}
	return clone.Clone(v)
}

// findCollision returns the index of the first local operation with the same
// kind and path as op, skipping the ones already consumed.
func findCollision(local OperationSet, op Operation, consumed map[int]bool) (int, bool) {
	for j, l := range local {
		if !consumed[j] && l.Same(op) {
			return j, true
		}
	}
	return -1, false
}

func cloneOp(op Operation) Operation {
	out := op
	out.Value = clone.Clone(op.Value)
	if op.Test != nil {
		t := *op.Test
		t.Value = clone.Clone(op.Test.Value)
		out.Test = &t
	}
	return out
}
