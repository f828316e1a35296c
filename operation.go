package optimistic

import (
	"fmt"
	"strings"

	"github.com/brunoga/optimistic/internal/core"
)

// OpKind defines the JSON Patch operation types.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
	OpMove    OpKind = "move"
	OpCopy    OpKind = "copy"
	OpTest    OpKind = "test"
)

// Supported reports whether the Applier can apply operations of this kind.
func (k OpKind) Supported() bool {
	return k == OpAdd || k == OpRemove || k == OpReplace
}

// OpContext records where an array operation was computed: the index of the
// element and the sibling sequence it was computed against. It lets the
// Applier relocate a collection member when earlier edits shifted indices.
type OpContext struct {
	Index  int   `json:"index"`
	Source []any `json:"source"`
}

// Element returns the sibling the operation was computed against.
func (c *OpContext) Element() (any, bool) {
	if c == nil || c.Index < 0 || c.Index >= len(c.Source) {
		return nil, false
	}
	return c.Source[c.Index], true
}

// Operation is a single add/remove/replace instruction.
//
// Value is meaningful for add, replace and test. Test, when set, is a
// precondition folded from a preceding "test" operation at the same path.
type Operation struct {
	Kind    OpKind     `json:"op"`
	Path    string     `json:"path"`
	Value   any        `json:"value,omitempty"`
	From    string     `json:"from,omitempty"`
	Test    *Operation `json:"test,omitempty"`
	Context *OpContext `json:"context,omitempty"`
}

// Add returns an add operation.
func Add(path string, value any) Operation {
	return Operation{Kind: OpAdd, Path: path, Value: value}
}

// Remove returns a remove operation.
func Remove(path string) Operation {
	return Operation{Kind: OpRemove, Path: path}
}

// Replace returns a replace operation.
func Replace(path string, value any) Operation {
	return Operation{Kind: OpReplace, Path: path, Value: value}
}

// Test returns a test operation. Test operations only survive as the Test
// attachment of the operation that follows them.
func Test(path string, value any) Operation {
	return Operation{Kind: OpTest, Path: path, Value: value}
}

// Tokens returns the parsed path of the operation.
func (o Operation) Tokens() core.Path {
	return core.CachedPath(o.Path)
}

// IsAppend reports whether the operation targets the append marker.
func (o Operation) IsAppend() bool {
	return strings.HasSuffix(o.Path, "/"+core.AppendMarker)
}

// Same reports whether o and other have the same kind and path. This is what
// makes two operations collide.
func (o Operation) Same(other Operation) bool {
	return o.Kind == other.Kind && o.Path == other.Path
}

// Equal reports whether two operations are the same instruction: same kind,
// path and value. Attachments are ignored.
func (o Operation) Equal(other Operation) bool {
	return o.Same(other) && o.From == other.From && core.Equal(o.Value, other.Value)
}

func (o Operation) String() string {
	switch o.Kind {
	case OpRemove:
		return fmt.Sprintf("remove %s", o.Path)
	case OpMove, OpCopy:
		return fmt.Sprintf("%s %s -> %s", o.Kind, o.From, o.Path)
	}
	return fmt.Sprintf("%s %s = %s", o.Kind, o.Path, core.Canonical(o.Value))
}

// OperationSet is an ordered edit script.
type OperationSet []Operation

// Find returns the index of the first operation with the given kind and path.
func (s OperationSet) Find(kind OpKind, path string) (int, bool) {
	for i, op := range s {
		if op.Kind == kind && op.Path == path {
			return i, true
		}
	}
	return -1, false
}

// Without returns a copy of s with the operations at the given indices removed.
func (s OperationSet) Without(drop map[int]bool) OperationSet {
	if len(drop) == 0 {
		return s.Clone()
	}
	out := make(OperationSet, 0, len(s))
	for i, op := range s {
		if !drop[i] {
			out = append(out, op)
		}
	}
	return out
}

// Clone returns a shallow copy of the set.
func (s OperationSet) Clone() OperationSet {
	if s == nil {
		return nil
	}
	out := make(OperationSet, len(s))
	copy(out, s)
	return out
}

func (s OperationSet) String() string {
	var b strings.Builder
	for i, op := range s {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(op.String())
	}
	return b.String()
}

// FoldTests folds every "test" operation into the operation immediately
// following it when both share a path. Test operations without such a
// follower are dropped, so no bare test survives in the result.
func FoldTests(ops OperationSet) OperationSet {
	out := make(OperationSet, 0, len(ops))
	for i := 0; i < len(ops); i++ {
		op := ops[i]
		if op.Kind != OpTest {
			out = append(out, op)
			continue
		}
		if i+1 < len(ops) && ops[i+1].Kind != OpTest && ops[i+1].Path == op.Path {
			next := ops[i+1]
			test := op
			test.Test = nil
			test.Context = nil
			next.Test = &test
			out = append(out, next)
			i++
		}
	}
	return out
}
