package core

import (
	"encoding/json"
	"testing"
)

type namedMap map[string]any

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    any
		want Kind
	}{
		{nil, KindNull},
		{true, KindBool},
		{1, KindNumber},
		{1.5, KindNumber},
		{json.Number("3"), KindNumber},
		{"x", KindString},
		{[]any{1}, KindArray},
		{[]string{"a"}, KindArray},
		{map[string]any{}, KindObject},
		{namedMap{}, KindObject},
		{struct{}{}, KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.v); got != tt.want {
			t.Errorf("KindOf(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil", nil, nil, true},
		{"nil vs zero", nil, 0, false},
		{"int vs float", 30, 30.0, true},
		{"different numbers", 1, 2, false},
		{"strings", "a", "a", true},
		{"bool vs string", true, "true", false},
		{"arrays", []any{1, "a"}, []any{1.0, "a"}, true},
		{"array order", []any{1, 2}, []any{2, 1}, false},
		{"objects", map[string]any{"a": 1, "b": []any{}}, map[string]any{"b": []any{}, "a": 1.0}, true},
		{"missing key", map[string]any{"a": 1}, map[string]any{"b": 1}, false},
		{"null value vs missing", map[string]any{"a": nil}, map[string]any{}, false},
		{"named map", namedMap{"a": "x"}, map[string]any{"a": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	ordered := []any{nil, false, true, -1, 2.5, 10, "a", "b"}
	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j && got >= 0, i > j && got <= 0, i == j && got != 0:
				t.Errorf("Compare(%v, %v) = %d", ordered[i], ordered[j], got)
			}
		}
	}
}

func TestCanonical(t *testing.T) {
	a := map[string]any{"b": 1, "a": []any{true, nil, "x"}}
	want := `{"a":[true,null,"x"],"b":1}`
	if got := Canonical(a); got != want {
		t.Errorf("Canonical = %s, want %s", got, want)
	}
	if Canonical(int64(7)) != Canonical(7.0) {
		t.Error("numeric types encode differently")
	}
}

func TestHash(t *testing.T) {
	a := map[string]any{"style": "Vans", "color": "Brown"}
	b := map[string]any{"color": "Brown", "style": "Vans"}
	if Hash(a) != Hash(b) {
		t.Error("equal values hash differently")
	}
	b["color"] = "Black"
	if Hash(a) == Hash(b) {
		t.Error("different values hash equally")
	}
}
