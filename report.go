package optimistic

import (
	"fmt"
	"strings"
)

// ReportKind names the two kinds of report a detection pass can emit.
type ReportKind string

const (
	// KindConflict: unresolved conflicts remain.
	KindConflict ReportKind = "conflict"
	// KindAutoResolved: all remote changes were applied cleanly.
	KindAutoResolved ReportKind = "auto-resolved"
	// KindNone labels passes that had nothing to report. No Report carries it.
	KindNone ReportKind = "none"
)

// ConflictRecord pairs a remote operation with the local one it collides
// with. Client is nil when the remote change simply was not auto-applied.
// Original is the value at the path before either change, nil for additions.
type ConflictRecord struct {
	Client   *Operation `json:"client"`
	Server   Operation  `json:"server"`
	Original any        `json:"original"`
}

func (c ConflictRecord) String() string {
	client := "<none>"
	if c.Client != nil {
		client = c.Client.String()
	}
	return fmt.Sprintf("conflict at %s (client: %s, server: %s)", c.Server.Path, client, c.Server.String())
}

// ResolvedOperation records a remote operation that was applied locally.
// ClientDiscarded is set when it overwrote a local edit, whose value is kept
// in Client.
type ResolvedOperation struct {
	Server          Operation `json:"server"`
	Original        any       `json:"original"`
	ClientDiscarded bool      `json:"clientDiscarded,omitempty"`
	Client          any       `json:"client,omitempty"`
}

// UnsavedOperation is a local edit still pending, annotated with the value
// its path held in the original snapshot.
type UnsavedOperation struct {
	Operation
	Original any `json:"original"`
}

// Report is the outcome of one detection pass. It is immutable once
// produced: snapshots and values are private copies.
type Report struct {
	ID          string              `json:"id"`
	Kind        ReportKind          `json:"kind"`
	Version     string              `json:"version"`
	Conflicts   []ConflictRecord    `json:"conflicts"`
	Resolved    []ResolvedOperation `json:"resolved"`
	Unsaved     []UnsavedOperation  `json:"unsaved"`
	ServerState Snapshot            `json:"serverState"`
	Original    Snapshot            `json:"original"`
}

// HasConflicts reports whether unresolved conflicts remain.
func (r *Report) HasConflicts() bool {
	return r != nil && len(r.Conflicts) > 0
}

// Summary returns a human readable summary of the report.
func (r *Report) Summary() string {
	if r == nil {
		return "<no report>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s report (version %s): %d conflict(s), %d resolved, %d unsaved",
		r.Kind, r.Version, len(r.Conflicts), len(r.Resolved), len(r.Unsaved))
	for _, c := range r.Conflicts {
		b.WriteString("\n  ")
		b.WriteString(c.String())
	}
	for _, res := range r.Resolved {
		b.WriteString("\n  resolved: ")
		b.WriteString(res.Server.String())
		if res.ClientDiscarded {
			b.WriteString(" (client change discarded)")
		}
	}
	return b.String()
}
