package optimistic

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/brunoga/optimistic/internal/core"
)

// wireOperation is the RFC 6902 form of an Operation.
type wireOperation struct {
	Op    OpKind          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (o Operation) wire() (wireOperation, error) {
	w := wireOperation{Op: o.Kind, Path: o.Path, From: o.From}
	switch o.Kind {
	case OpAdd, OpReplace, OpTest:
		data, err := json.Marshal(o.Value)
		if err != nil {
			return w, fmt.Errorf("encoding value at %s: %w", o.Path, err)
		}
		w.Value = data
	}
	return w, nil
}

// MarshalJSON encodes the operation in its RFC 6902 form. A folded test is
// not part of the encoding; OperationSet.MarshalJSON re-expands it.
func (o Operation) MarshalJSON() ([]byte, error) {
	w, err := o.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// MarshalJSON encodes the set as an RFC 6902 document. Folded tests are
// emitted as a "test" operation right before the operation they guard.
func (s OperationSet) MarshalJSON() ([]byte, error) {
	out := make([]wireOperation, 0, len(s))
	for _, op := range s {
		if op.Test != nil {
			w, err := op.Test.wire()
			if err != nil {
				return nil, err
			}
			out = append(out, w)
		}
		w, err := op.wire()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// MarshalJSON flattens the annotated operation so the original value sits
// next to the RFC 6902 fields.
func (u UnsavedOperation) MarshalJSON() ([]byte, error) {
	w, err := u.Operation.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		wireOperation
		Original any `json:"original"`
	}{w, u.Original})
}

// DecodeOperations parses an RFC 6902 document. Test operations are folded
// into the operation that follows them.
func DecodeOperations(data []byte) (OperationSet, error) {
	var raw []wireOperation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding operations: %w", err)
	}
	ops := make(OperationSet, 0, len(raw))
	for i, w := range raw {
		op := Operation{Kind: w.Op, Path: w.Path, From: w.From}
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &op.Value); err != nil {
				return nil, fmt.Errorf("decoding value of operation %d: %w", i, err)
			}
		}
		ops = append(ops, op)
	}
	return FoldTests(ops), nil
}

func applyOptions() *jsonpatch.ApplyOptions {
	opts := jsonpatch.NewApplyOptions()
	opts.AllowMissingPathOnRemove = true
	return opts
}

// ApplyToSnapshot applies ops to a copy of s and returns the result. Folded
// tests are checked; a failing test aborts the whole script.
func ApplyToSnapshot(s Snapshot, ops OperationSet) (Snapshot, error) {
	doc, err := json.Marshal(map[string]any(s))
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	script, err := ops.MarshalJSON()
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.DecodePatch(script)
	if err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}
	out, err := patch.ApplyWithOptions(doc, applyOptions())
	if err != nil {
		return nil, fmt.Errorf("applying patch: %w", err)
	}
	return ParseSnapshot(out)
}

// patchValue applies op, whose path is relative to value, and returns the
// patched copy. Folded tests are not checked: indices recorded against the
// original may have shifted.
func patchValue(value any, rel core.Path, op Operation) (any, error) {
	doc, err := json.Marshal(map[string]any{"v": value})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", op.Path, err)
	}
	inner := op
	inner.Path = core.Path(append([]string{"v"}, rel...)).String()
	inner.Test = nil
	w, err := inner.wire()
	if err != nil {
		return nil, err
	}
	script, err := json.Marshal([]wireOperation{w})
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.DecodePatch(script)
	if err != nil {
		return nil, fmt.Errorf("decoding patch for %s: %w", op.Path, err)
	}
	out, err := patch.ApplyWithOptions(doc, applyOptions())
	if err != nil {
		return nil, fmt.Errorf("patching %s: %w", op.Path, err)
	}
	var wrapped map[string]any
	if err := json.Unmarshal(out, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding patched %s: %w", op.Path, err)
	}
	return wrapped["v"], nil
}
