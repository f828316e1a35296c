package optimistic

import (
	"sort"
	"strconv"

	"github.com/brunoga/optimistic/internal/core"
)

// DefaultIdentityField is the field used to align array elements when no
// other identity field is configured.
const DefaultIdentityField = "id"

// Differ computes edit scripts between snapshot trees. It is stateless and
// safe for concurrent use.
type Differ struct {
	identityField string
}

// NewDiffer creates a Differ that aligns array elements by identityField.
// An empty identityField selects DefaultIdentityField.
func NewDiffer(identityField string) *Differ {
	if identityField == "" {
		identityField = DefaultIdentityField
	}
	return &Differ{identityField: identityField}
}

var defaultDiffer = NewDiffer(DefaultIdentityField)

// Diff computes the edit script transforming lhs into rhs using the default
// identity field.
func Diff(lhs, rhs any) OperationSet {
	return defaultDiffer.Diff(lhs, rhs)
}

// Diff computes the edit script transforming lhs into rhs.
//
// Maps are compared key by key. Array elements are aligned by identity (the
// identity field when present, a structural hash otherwise), so an element
// found on both sides produces no add/remove pair even if it moved; only
// changes to its content are reported, at its position in lhs. Element
// removals carry a folded test precondition holding the removed element.
// Diff(x, x) is always empty.
func (d *Differ) Diff(lhs, rhs any) OperationSet {
	var ops OperationSet
	d.diffValue(nil, plain(lhs), plain(rhs), nil, &ops)
	return FoldTests(ops)
}

// Identity returns the alignment key of an array element.
func (d *Differ) Identity(v any) string {
	if m, ok := core.AsObject(v); ok {
		if id, ok := m[d.identityField]; ok && id != nil {
			return "id:" + core.Canonical(id)
		}
	}
	return "h:" + strconv.FormatUint(core.Hash(v), 16)
}

// IdentityValue returns the identity field value of v, if it has one.
func (d *Differ) IdentityValue(v any) (any, bool) {
	m, ok := core.AsObject(v)
	if !ok {
		return nil, false
	}
	id, ok := m[d.identityField]
	return id, ok && id != nil
}

func (d *Differ) diffValue(path core.Path, a, b any, ctx *OpContext, ops *OperationSet) {
	ka, kb := core.KindOf(a), core.KindOf(b)
	switch {
	case ka == core.KindObject && kb == core.KindObject:
		ma, _ := core.AsObject(a)
		mb, _ := core.AsObject(b)
		d.diffObject(path, ma, mb, ctx, ops)
	case ka == core.KindArray && kb == core.KindArray:
		aa, _ := core.AsArray(a)
		ab, _ := core.AsArray(b)
		d.diffArray(path, aa, ab, ctx, ops)
	case !core.Equal(a, b):
		*ops = append(*ops, Operation{Kind: OpReplace, Path: path.String(), Value: b, Context: ctx})
	}
}

func (d *Differ) diffObject(path core.Path, a, b map[string]any, ctx *OpContext, ops *OperationSet) {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		va, inA := a[k]
		vb, inB := b[k]
		child := path.Child(k)
		switch {
		case inA && !inB:
			*ops = append(*ops, Operation{Kind: OpRemove, Path: child.String(), Context: ctx})
		case !inA && inB:
			*ops = append(*ops, Operation{Kind: OpAdd, Path: child.String(), Value: vb, Context: ctx})
		default:
			d.diffValue(child, va, vb, ctx, ops)
		}
	}
}

func (d *Differ) diffArray(path core.Path, a, b []any, ctx *OpContext, ops *OperationSet) {
	keysA := make([]string, len(a))
	for i, v := range a {
		keysA[i] = d.Identity(v)
	}
	keysB := make([]string, len(b))
	for j, v := range b {
		keysB[j] = d.Identity(v)
	}

	edits := pairMoves(alignKeys(keysA, keysB), keysA, keysB)

	elementContext := func(i int) *OpContext {
		if ctx != nil {
			return ctx
		}
		return &OpContext{Index: i, Source: a}
	}

	cur, length := 0, len(a)
	for _, e := range edits {
		switch e.kind {
		case editMatch:
			if !core.Equal(a[e.i], b[e.j]) {
				d.diffValue(path.Child(strconv.Itoa(cur)), a[e.i], b[e.j], elementContext(e.i), ops)
			}
			cur++
		case editDelete:
			at := path.Child(strconv.Itoa(cur)).String()
			ectx := elementContext(e.i)
			*ops = append(*ops,
				Operation{Kind: OpTest, Path: at, Value: a[e.i], Context: ectx},
				Operation{Kind: OpRemove, Path: at, Context: ectx},
			)
			length--
		case editInsert:
			token := strconv.Itoa(cur)
			if cur == length {
				token = core.AppendMarker
			}
			*ops = append(*ops, Operation{Kind: OpAdd, Path: path.Child(token).String(), Value: b[e.j], Context: ctx})
			cur++
			length++
		}
	}
}

type editKind int

const (
	editMatch editKind = iota
	editDelete
	editInsert
	editSkip
)

type edit struct {
	kind editKind
	i, j int
}

// pairMoves turns a delete and an insert of the same identity into a single
// match at the position of the delete: the element moved but still exists.
func pairMoves(edits []edit, keysA, keysB []string) []edit {
	deletes := make(map[string][]int)
	for n, e := range edits {
		if e.kind == editDelete {
			deletes[keysA[e.i]] = append(deletes[keysA[e.i]], n)
		}
	}
	if len(deletes) == 0 {
		return edits
	}
	for n, e := range edits {
		if e.kind != editInsert {
			continue
		}
		queue := deletes[keysB[e.j]]
		if len(queue) == 0 {
			continue
		}
		del := queue[0]
		deletes[keysB[e.j]] = queue[1:]
		edits[del] = edit{kind: editMatch, i: edits[del].i, j: e.j}
		edits[n].kind = editSkip
	}
	return edits
}

// alignKeys computes a shortest edit script between two key sequences using
// Myers' algorithm.
func alignKeys(a, b []string) []edit {
	n, m := len(a), len(b)
	max := n + m
	if max == 0 {
		return nil
	}

	offset := max
	v := make([]int, 2*max+2)
	var trace [][]int

	for dStep := 0; dStep <= max; dStep++ {
		vc := make([]int, len(v))
		copy(vc, v)
		trace = append(trace, vc)

		for k := -dStep; k <= dStep; k += 2 {
			var x int
			if k == -dStep || (k != dStep && v[k-1+offset] < v[k+1+offset]) {
				x = v[k+1+offset]
			} else {
				x = v[k-1+offset] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[k+offset] = x
			if x >= n && y >= m {
				return backtrackKeys(n, m, trace, offset)
			}
		}
	}
	return nil
}

func backtrackKeys(n, m int, trace [][]int, offset int) []edit {
	var edits []edit
	x, y := n, m

	for dStep := len(trace) - 1; dStep >= 0; dStep-- {
		v := trace[dStep]
		k := x - y

		var prevK int
		if k == -dStep || (k != dStep && v[k-1+offset] < v[k+1+offset]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[prevK+offset]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			edits = append(edits, edit{kind: editMatch, i: x - 1, j: y - 1})
			x--
			y--
		}

		if dStep > 0 {
			if x == prevX {
				edits = append(edits, edit{kind: editInsert, i: x, j: prevY})
			} else {
				edits = append(edits, edit{kind: editDelete, i: prevX, j: y})
			}
		}
		x, y = prevX, prevY
	}

	for i := 0; i < len(edits)/2; i++ {
		edits[i], edits[len(edits)-1-i] = edits[len(edits)-1-i], edits[i]
	}
	return edits
}

// plain unwraps named snapshot types so the differ works on map[string]any.
func plain(v any) any {
	if s, ok := v.(Snapshot); ok {
		return map[string]any(s)
	}
	return v
}
