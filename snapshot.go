package optimistic

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/copystructure"

	"github.com/brunoga/optimistic/internal/core"
)

// Snapshot is a fully materialized, serialized tree form of a document at one
// point in time. Values are maps (map[string]any), ordered sequences ([]any)
// and scalars (string, numbers, bool, nil). Snapshots are treated as
// immutable: the engine never modifies one in place.
type Snapshot map[string]any

// ParseSnapshot decodes a JSON object into a Snapshot.
func ParseSnapshot(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return s, nil
}

// MustParseSnapshot is like ParseSnapshot but panics on failure.
func MustParseSnapshot(data string) Snapshot {
	s, err := ParseSnapshot([]byte(data))
	if err != nil {
		panic(err)
	}
	return s
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	c, err := copystructure.Copy(map[string]any(s))
	if err != nil {
		// Snapshot values are plain data; copystructure only fails on
		// unsupported kinds such as channels.
		panic(fmt.Sprintf("optimistic: cloning snapshot: %v", err))
	}
	return Snapshot(c.(map[string]any))
}

// Omit returns a shallow copy of the snapshot without the given fields.
func (s Snapshot) Omit(fields ...string) Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Equal reports whether two snapshots are structurally equal.
func (s Snapshot) Equal(other Snapshot) bool {
	return core.Equal(map[string]any(s), map[string]any(other))
}

// String returns the canonical encoding of the snapshot.
func (s Snapshot) String() string {
	return core.Canonical(map[string]any(s))
}

// Equal reports whether two snapshot values are structurally equal. Numbers
// compare by value regardless of their Go type.
func Equal(a, b any) bool {
	return core.Equal(a, b)
}
