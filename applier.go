package optimistic

import (
	"strconv"

	"github.com/huandu/go-clone"
	"go.uber.org/zap"

	"github.com/brunoga/optimistic/internal/core"
)

// Applier applies edit scripts to a live document through the Document
// capability interface.
type Applier struct {
	cfg    *config
	differ *Differ
}

// NewApplier creates an Applier.
func NewApplier(opts ...Option) *Applier {
	return newApplier(newConfig(opts))
}

func newApplier(cfg *config) *Applier {
	return &Applier{cfg: cfg, differ: NewDiffer(cfg.identityField)}
}

// Apply mutates doc according to ops. original is the snapshot the operations
// were computed against; it is used to relocate collection members whose
// index shifted. Every operation that cannot be applied is skipped and
// reported; the rest of the batch always runs. Neither ops nor original are
// modified.
func (a *Applier) Apply(doc Document, original Snapshot, ops OperationSet) Diagnostics {
	var diags Diagnostics
	for i := range ops {
		op := ops[i]
		if !op.Kind.Supported() {
			a.cfg.logger.Warn("skipping unsupported operation",
				zap.String("op", string(op.Kind)), zap.String("path", op.Path))
			diags = append(diags, newDiagnostic(UnsupportedOperation, &op, "%s is not supported", op.Kind))
			continue
		}
		a.cfg.logger.Debug("applying operation", zap.Stringer("op", op))
		if d, ok := a.applyTo(doc, plain(original), op.Tokens(), op); !ok {
			diags = append(diags, d)
		}
	}
	return diags
}

// applyTo applies op to doc, tokens being the path relative to doc and
// original the snapshot of doc the operation was computed against.
func (a *Applier) applyTo(doc Document, original any, tokens core.Path, op Operation) (Diagnostic, bool) {
	if len(tokens) == 0 {
		return a.replaceAll(doc, op)
	}
	root, rest := tokens.Root(), tokens[1:]
	origField, _ := resolveTokens(original, core.Path{root})

	switch doc.Schema().Kind(root) {
	case FieldCollection:
		return a.applyCollection(doc, root, origField, rest, op)
	case FieldChild:
		return a.applyChild(doc, root, origField, rest, op)
	}
	return a.applyField(doc, root, rest, op)
}

func (a *Applier) applyField(doc Document, name string, rest core.Path, op Operation) (Diagnostic, bool) {
	if len(rest) == 0 {
		if op.Kind == OpRemove {
			doc.UnsetField(name)
		} else {
			doc.SetField(name, clone.Clone(op.Value))
		}
		return Diagnostic{}, true
	}

	current, ok := doc.Field(name)
	if !ok {
		return a.notFound(op, "field %q is not set", name)
	}
	patched, err := patchValue(current, rest, op)
	if err != nil {
		return a.notFound(op, "%v", err)
	}
	doc.SetField(name, patched)
	return Diagnostic{}, true
}

func (a *Applier) applyChild(doc Document, name string, original any, rest core.Path, op Operation) (Diagnostic, bool) {
	child, ok := doc.Child(name)
	if !ok {
		if len(rest) == 0 && op.Kind != OpRemove {
			if _, isObject := core.AsObject(op.Value); isObject {
				doc.SetField(name, clone.Clone(op.Value))
				return Diagnostic{}, true
			}
			return a.mismatch(op, "child %q requires an object", name)
		}
		return a.notFound(op, "child %q does not exist", name)
	}
	if len(rest) == 0 {
		if op.Kind == OpRemove {
			a.cfg.logger.Debug("detaching child", zap.String("child", name))
			doc.DetachChild(name)
			return Diagnostic{}, true
		}
		return a.replaceAll(child, op)
	}
	return a.applyTo(child, original, rest, op)
}

func (a *Applier) applyCollection(doc Document, name string, original any, rest core.Path, op Operation) (Diagnostic, bool) {
	coll, ok := doc.Collection(name)
	if !ok {
		return a.notFound(op, "collection %q does not exist", name)
	}

	if op.Kind == OpAdd && len(rest) <= 1 {
		a.cfg.logger.Debug("adding member", zap.String("collection", name))
		coll.Add(clone.Clone(op.Value))
		return Diagnostic{}, true
	}
	if len(rest) == 0 {
		return a.resetCollection(coll, name, op)
	}

	member, origMember := a.findMember(coll, original, rest, op)
	if member == nil {
		return a.notFound(op, "no member of %q matches %s", name, op.Path)
	}

	sub := rest[1:]
	if len(sub) == 0 {
		if op.Kind == OpRemove {
			a.cfg.logger.Debug("removing member", zap.String("collection", name))
			coll.Remove(member)
			return Diagnostic{}, true
		}
		return a.replaceAll(member, op)
	}
	// The context describes this collection, not arrays nested in the member.
	inner := op
	inner.Context = nil
	return a.applyTo(member, origMember, sub, inner)
}

// resetCollection handles a remove or replace of a whole collection.
func (a *Applier) resetCollection(coll Collection, name string, op Operation) (Diagnostic, bool) {
	var values []any
	if op.Kind == OpReplace {
		list, ok := core.AsArray(op.Value)
		if !ok {
			return a.mismatch(op, "collection %q requires an array", name)
		}
		values = list
	}
	for coll.Len() > 0 {
		member, _ := coll.At(coll.Len() - 1)
		coll.Remove(member)
	}
	for _, v := range values {
		coll.Add(clone.Clone(v))
	}
	return Diagnostic{}, true
}

func (a *Applier) replaceAll(doc Document, op Operation) (Diagnostic, bool) {
	if op.Kind == OpRemove {
		return a.notFound(op, "cannot remove the document root")
	}
	attrs, ok := core.AsObject(op.Value)
	if !ok {
		return a.mismatch(op, "whole-object replace requires an object")
	}
	doc.SetFields(clone.Clone(attrs).(map[string]any))
	return Diagnostic{}, true
}

// findMember locates the collection member an operation targets. The
// strategies are tried in order: the element recorded in the operation
// context, the original element at the path index, the element at the path
// index cross-checked against a folded test, and finally the plain index when
// no identity information exists at all. It also returns the original
// snapshot of the member, if known.
func (a *Applier) findMember(coll Collection, original any, rest core.Path, op Operation) (Document, any) {
	index, hasIndex := rest.Index(0)

	// The context element is authoritative: path indices may have shifted.
	if el, ok := op.Context.Element(); ok {
		if m := a.lookup(coll, el); m != nil {
			return m, el
		}
		return nil, nil
	}

	var origEl any
	if list, ok := core.AsArray(original); ok && hasIndex && index < len(list) {
		origEl = list[index]
		if m := a.lookup(coll, origEl); m != nil {
			return m, origEl
		}
	}

	if op.Test != nil {
		if hasIndex {
			if m, ok := coll.At(index); ok && a.matches(m, op.Test.Value) {
				return m, op.Test.Value
			}
		}
		if m := a.lookup(coll, op.Test.Value); m != nil {
			return m, op.Test.Value
		}
		return nil, nil
	}

	if !hasIndex || origEl != nil {
		return nil, nil
	}
	a.cfg.logger.Debug("falling back to positional lookup", zap.String("index", strconv.Itoa(index)))
	if m, ok := coll.At(index); ok {
		return m, nil
	}
	return nil, nil
}

// lookup finds the member matching el, by identity when el has one and by
// structural equality otherwise.
func (a *Applier) lookup(coll Collection, el any) Document {
	if id, ok := a.differ.IdentityValue(el); ok {
		if m, ok := coll.Get(id); ok {
			return m
		}
		return nil
	}
	m, ok := coll.Find(func(s Snapshot) bool {
		return core.Equal(map[string]any(s), el)
	})
	if !ok {
		return nil
	}
	return m
}

func (a *Applier) matches(member Document, expected any) bool {
	current := map[string]any(member.Materialize())
	if id, ok := a.differ.IdentityValue(expected); ok {
		got, ok := current[a.cfg.identityField]
		return ok && core.Equal(got, id)
	}
	return core.Equal(current, expected)
}

func (a *Applier) notFound(op Operation, format string, args ...any) (Diagnostic, bool) {
	d := newDiagnostic(TargetNotFound, &op, format, args...)
	a.cfg.logger.Error("target not found", zap.String("path", op.Path), zap.String("reason", d.Message))
	return d, false
}

func (a *Applier) mismatch(op Operation, format string, args ...any) (Diagnostic, bool) {
	d := newDiagnostic(TypeMismatch, &op, format, args...)
	a.cfg.logger.Debug("type mismatch", zap.String("path", op.Path), zap.String("reason", d.Message))
	return d, false
}
