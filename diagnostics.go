package optimistic

import (
	"errors"
	"fmt"
)

// DiagnosticKind classifies a non-fatal problem met while detecting or
// applying changes.
type DiagnosticKind string

const (
	// LookupMiss: a path did not resolve in a snapshot.
	LookupMiss DiagnosticKind = "lookup-miss"
	// UnsupportedOperation: an operation other than add/remove/replace was
	// handed to the Applier.
	UnsupportedOperation DiagnosticKind = "unsupported-operation"
	// TargetNotFound: no collection member or child document matched.
	TargetNotFound DiagnosticKind = "target-not-found"
	// TypeMismatch: a whole-object replace received a non-object value.
	TypeMismatch DiagnosticKind = "type-mismatch"
	// StoreFailure: the persisted window could not be saved.
	StoreFailure DiagnosticKind = "store-failure"
)

// Diagnostic describes a skipped step. The remaining batch always continues.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Path    string         `json:"path,omitempty"`
	Op      *Operation     `json:"op,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) Error() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s at %s: %s", d.Kind, d.Path, d.Message)
}

// Diagnostics is the list of problems collected during one call.
type Diagnostics []Diagnostic

// Err joins the diagnostics into a single error, or returns nil if empty.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	errs := make([]error, len(ds))
	for i, d := range ds {
		errs[i] = d
	}
	return errors.Join(errs...)
}

// Count returns the number of diagnostics of the given kind.
func (ds Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func newDiagnostic(kind DiagnosticKind, op *Operation, format string, args ...any) Diagnostic {
	d := Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if op != nil {
		c := *op
		d.Op = &c
		d.Path = op.Path
	}
	return d
}
