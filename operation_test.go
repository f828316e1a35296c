package optimistic

import (
	"testing"
)

func TestOperation_Predicates(t *testing.T) {
	add := Add("/shoes/-", map[string]any{"id": 5})
	if !add.IsAppend() {
		t.Error("append add not detected")
	}
	if Add("/shoes/1", nil).IsAppend() {
		t.Error("indexed add detected as append")
	}
	if !Replace("/a", 1).Same(Replace("/a", 2)) {
		t.Error("Same must ignore values")
	}
	if Replace("/a", 1).Same(Remove("/a")) {
		t.Error("Same must compare kinds")
	}
	if !Replace("/a", 1).Equal(Replace("/a", 1.0)) {
		t.Error("Equal must compare numbers by value")
	}
	if Replace("/a", 1).Equal(Replace("/a", 2)) {
		t.Error("Equal must compare values")
	}
}

func TestOpKind_Supported(t *testing.T) {
	for kind, want := range map[OpKind]bool{
		OpAdd: true, OpRemove: true, OpReplace: true,
		OpMove: false, OpCopy: false, OpTest: false,
	} {
		if kind.Supported() != want {
			t.Errorf("%s.Supported() = %v", kind, !want)
		}
	}
}

func TestOpContext_Element(t *testing.T) {
	var nilCtx *OpContext
	if _, ok := nilCtx.Element(); ok {
		t.Error("nil context returned an element")
	}
	ctx := &OpContext{Index: 1, Source: []any{"a", "b"}}
	if el, ok := ctx.Element(); !ok || el != "b" {
		t.Errorf("Element() = %v, %v", el, ok)
	}
	ctx.Index = 2
	if _, ok := ctx.Element(); ok {
		t.Error("out of range index returned an element")
	}
}

func TestFoldTests(t *testing.T) {
	ops := OperationSet{
		Test("/shoes/0", "x"),
		Remove("/shoes/0"),
		Test("/name", "Ada"),
		Replace("/age", 3),
		Test("/car", nil),
	}
	got := FoldTests(ops)
	if len(got) != 2 {
		t.Fatalf("FoldTests kept %d operations: %v", len(got), got)
	}
	if got[0].Kind != OpRemove || got[0].Test == nil || got[0].Test.Value != "x" {
		t.Errorf("test not folded into remove: %+v", got[0])
	}
	if got[1].Kind != OpReplace || got[1].Test != nil {
		t.Errorf("unmatched test folded: %+v", got[1])
	}
	for _, op := range got {
		if op.Kind == OpTest {
			t.Errorf("bare test survived: %v", op)
		}
	}
	if ops[1].Test != nil {
		t.Error("input was modified")
	}
}

func TestOperationSet_Without(t *testing.T) {
	s := OperationSet{Remove("/a"), Remove("/b"), Remove("/c")}
	got := s.Without(map[int]bool{1: true})
	if len(got) != 2 || got[0].Path != "/a" || got[1].Path != "/c" {
		t.Errorf("Without = %v", got)
	}
	if i, ok := s.Find(OpRemove, "/c"); !ok || i != 2 {
		t.Errorf("Find = %d, %v", i, ok)
	}
	if _, ok := s.Find(OpAdd, "/c"); ok {
		t.Error("Find matched another kind")
	}
}

func TestDiagnostics(t *testing.T) {
	var ds Diagnostics
	if ds.Err() != nil {
		t.Error("empty diagnostics produced an error")
	}
	op := Remove("/shoes/3")
	ds = append(ds,
		newDiagnostic(TargetNotFound, &op, "no member"),
		newDiagnostic(UnsupportedOperation, nil, "move"),
	)
	if ds.Count(TargetNotFound) != 1 {
		t.Errorf("Count = %d", ds.Count(TargetNotFound))
	}
	if ds[0].Path != "/shoes/3" {
		t.Errorf("Path = %q", ds[0].Path)
	}
	if err := ds.Err(); err == nil || err.Error() == "" {
		t.Error("Err() lost the diagnostics")
	}
}
