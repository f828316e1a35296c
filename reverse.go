package optimistic

import (
	"go.uber.org/zap"
)

// Reverse restores the live document to the server state recorded in report,
// discarding whatever local edits remain. The undo script is a fresh diff of
// the current document (collections sorted, ignored fields stripped) against
// the server state, applied without recording. Afterwards the local edit log
// is cleared and the original advances to the server state.
func (d *Detector) Reverse(report *Report) Diagnostics {
	if report == nil {
		return nil
	}
	current := d.tracker.SortCollections(d.doc.Materialize().Omit(d.cfg.ignored...))
	target := report.ServerState.Omit(d.cfg.ignored...)
	undo := d.differ.Diff(current, target)
	d.cfg.logger.Debug("reversing unsaved edits", zap.String("report", report.ID), zap.Int("operations", len(undo)))

	var diags Diagnostics
	d.tracker.withoutRecording(func() {
		diags = d.applier.Apply(d.doc, current, undo)
	})

	d.tracker.ResetLog()
	if report.Version != "" {
		d.tracker.SetVersion(report.Version)
	}
	if err := d.tracker.SetOriginal(report.ServerState.Clone()); err != nil {
		diags = append(diags, newDiagnostic(StoreFailure, nil, "%v", err))
	}
	if len(diags) > 0 && d.cfg.recorder != nil {
		d.cfg.recorder.ObserveDiagnostics(diags)
	}
	return diags
}
