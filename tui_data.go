package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"arked/internal/conflict"
	"arked/internal/grid"
	"arked/internal/history"
	"arked/internal/importfile"
	"arked/internal/store"
	"arked/internal/validate"
)

// saveSelected persists every marked row. Pending validations for their
// edited cells are flushed first so stale verdicts never reach the store;
// the store round-trip runs off the event loop.
func (e *Editor) saveSelected() {
	if e.saving {
		e.SetStatusMessage("save already in progress")
		return
	}
	rowIDs := e.ds.SelectedRows()
	if len(rowIDs) == 0 {
		e.SetStatusMessage("nothing to save")
		return
	}
	e.saving = true
	e.SetStatusLog(fmt.Sprintf("saving %d rows…", len(rowIDs)))

	go func() {
		ctx := context.Background()
		for _, rowID := range rowIDs {
			row := e.ds.Row(rowID)
			if row == nil {
				continue
			}
			for _, col := range e.ds.Columns() {
				if cell, ok := row.Cell(col.ID); ok && cell.State == grid.Validating {
					e.controller.Flush(ctx, rowID, col.ID)
				}
			}
		}

		outcome, err := e.saver.Save(ctx, rowIDs)
		if breadcrumbs != nil && outcome != nil {
			breadcrumbs.RecordStore(fmt.Sprintf("save: %s", outcome.Summary()))
		}
		e.reconciler.Cache().InvalidateAll()

		e.app.QueueUpdateDraw(func() {
			e.saving = false
			if err != nil {
				e.SetStatusErrorWithSentry(err)
				return
			}
			if len(outcome.Failed) > 0 {
				first := outcome.Failed[0]
				e.SetStatusError(fmt.Sprintf("%s · %s: %s", outcome.Summary(), first.RowID, first.Message))
				return
			}
			e.SetStatusMessage(outcome.Summary())
		})
	}()
}

// runImport parses a delimited file, reconciles it against the working set
// and applies the result as one undoable batch. Called off the event loop.
func (e *Editor) runImport(path string) {
	f, err := os.Open(path)
	if err != nil {
		e.app.QueueUpdateDraw(func() {
			e.SetStatusError(fmt.Sprintf("could not open %s: %v", path, err))
		})
		return
	}
	table, err := importfile.Parse(f, importfile.DetectDelimiter(path))
	f.Close()
	if err != nil {
		e.app.QueueUpdateDraw(func() { e.SetStatusErrorWithSentry(err) })
		return
	}

	res, err := e.reconciler.Reconcile(context.Background(), table)
	if err != nil {
		e.app.QueueUpdateDraw(func() { e.SetStatusErrorWithSentry(err) })
		return
	}

	e.app.QueueUpdateDraw(func() {
		if err := res.Apply(e.engine, e.ds); err != nil {
			e.SetStatusErrorWithSentry(err)
			return
		}
		summary := res.Summary()
		if n := len(res.Warnings); n > 0 {
			w := res.Warnings[0]
			summary = fmt.Sprintf("%s · %d warnings (line %d: %s)", summary, n, w.Line, w.Message)
		}
		if breadcrumbs != nil {
			breadcrumbs.RecordImport(res.Summary())
		}
		e.SetStatusMessage(summary)
	})

	// Imported values go through the same validation pipeline as manual
	// edits, in bulk.
	if len(res.Targets) > 0 {
		targets := make([]validate.Target, len(res.Targets))
		for i, t := range res.Targets {
			targets[i] = validate.Target{RowID: t.RowID, ColumnID: t.ColumnID}
		}
		if err := e.controller.BulkValidate(context.Background(), targets); err != nil {
			e.app.QueueUpdateDraw(func() { e.SetStatusErrorWithSentry(err) })
		}
	}
}

// executeFind jumps to the next cell whose text contains the query,
// scanning forward from the current selection and wrapping around.
func (e *Editor) executeFind(query string) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return
	}
	e.findText = query

	total := e.ds.Len()
	cols := e.grid.Columns()
	if total == 0 || len(cols) == 0 {
		return
	}
	startRow, startCol := e.grid.GetSelection()

	pos := startRow*len(cols) + startCol
	cells := total * len(cols)
	for i := 1; i <= cells; i++ {
		p := (pos + i) % cells
		ri, ci := p/len(cols), p%len(cols)
		row := e.ds.RowAt(ri)
		if row == nil {
			continue
		}
		cell, ok := row.Cell(cols[ci].Column.ID)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(cell.Value.String()), query) {
			e.grid.Select(ri, ci)
			e.updateStatusWithCellContent()
			return
		}
	}
	e.SetStatusMessage(fmt.Sprintf("no match for %q", query))
}

// executeCommand handles the command palette's free-form commands.
func (e *Editor) executeCommand(command string) {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "save":
		e.saveSelected()
	case "undo":
		e.undo()
	case "redo":
		e.redo()
	case "import":
		if len(fields) < 2 {
			e.SetStatusError("usage: import <path>")
			return
		}
		go e.runImport(fields[1])
	case "vim":
		e.vimMode = !e.vimMode
		if e.vimMode {
			e.SetStatusMessage("vim mode on")
		} else {
			e.SetStatusMessage("vim mode off")
		}
	case "telemetry":
		if len(fields) == 2 && fields[1] == "on" {
			e.settings.TelemetryEnabled = true
		} else if len(fields) == 2 && fields[1] == "off" {
			e.settings.TelemetryEnabled = false
		}
		if err := SaveSettings(e.settings); err != nil {
			e.SetStatusError(err.Error())
			return
		}
		e.SetStatusMessage(fmt.Sprintf("telemetry enabled: %v", e.settings.TelemetryEnabled))
	case "goto":
		if len(fields) < 2 {
			e.SetStatusError("usage: goto <row>")
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			e.SetStatusError("usage: goto <row>")
			return
		}
		_, col := e.grid.GetSelection()
		e.grid.Select(n-1, col)
	default:
		e.SetStatusError(fmt.Sprintf("unknown command %q", fields[0]))
	}
}

func (e *Editor) undo() {
	desc, ok, err := e.engine.Undo()
	if err != nil {
		e.SetStatusErrorWithSentry(err)
		return
	}
	if !ok {
		e.SetStatusMessage("nothing to undo")
		return
	}
	e.SetStatusMessage(fmt.Sprintf("undid %s", desc))
}

func (e *Editor) redo() {
	desc, ok, err := e.engine.Redo()
	if err != nil {
		e.SetStatusErrorWithSentry(err)
		return
	}
	if !ok {
		e.SetStatusMessage("nothing to redo")
		return
	}
	e.SetStatusMessage(fmt.Sprintf("redid %s", desc))
}

// addDraftRow appends a new draft at the bottom, display id pre-allocated
// past the store's current maximum so it survives the save unchanged. The
// working set can hold ids past the startup watermark (imports pre-allocate
// their own), so the watermark is re-read from the dataset first.
func (e *Editor) addDraftRow() {
	if m := e.ds.MaxNumericValue(store.IDColumn); m > e.nextID {
		e.nextID = m
	}
	e.nextID++
	row := grid.NewDraftRow(e.ds.Columns(), "id", strconv.FormatInt(e.nextID, 10))
	cmd := &history.BatchCommand{Desc: "add row", AddedRows: []*grid.Row{row}}
	if err := e.engine.Execute(cmd); err != nil {
		e.SetStatusErrorWithSentry(err)
		return
	}
	e.ds.SetSelected(row.ID, true)
	e.grid.Select(e.ds.Len()-1, 1)
	e.SetStatusMessage("new row added")
}

// clearSelection resets every writable cell in the selected range, as one
// undoable batch.
func (e *Editor) clearSelection() {
	r0, c0, r1, c1 := e.grid.SelectionRange()
	var targets []history.CellRef
	for ri := r0; ri <= r1; ri++ {
		row := e.ds.RowAt(ri)
		if row == nil {
			continue
		}
		for ci := c0; ci <= c1; ci++ {
			col, ok := e.grid.ColumnAt(ci)
			if !ok {
				continue
			}
			targets = append(targets, history.CellRef{RowID: row.ID, ColumnID: col.ID})
		}
	}

	cmd := history.BuildClear(e.ds, targets)
	if cmd == nil {
		return
	}
	if err := e.engine.Execute(cmd); err != nil {
		e.SetStatusErrorWithSentry(err)
		return
	}

	vts := make([]validate.Target, 0, len(cmd.Changes))
	for _, ch := range cmd.Changes {
		e.ds.SetSelected(ch.RowID, true)
		vts = append(vts, validate.Target{RowID: ch.RowID, ColumnID: ch.ColumnID})
	}
	if breadcrumbs != nil {
		breadcrumbs.RecordEdit("range", cmd.Description())
	}
	go func() {
		if err := e.controller.BulkValidate(context.Background(), vts); err != nil {
			e.app.QueueUpdateDraw(func() { e.SetStatusErrorWithSentry(err) })
		}
	}()
	e.SetStatusMessage(cmd.Description())
}

// resolveConflict settles a flagged conflict on the current cell, either
// keeping the local edit or adopting the remote value. The remote record is
// re-read off the event loop.
func (e *Editor) resolveConflict(keepLocal bool) {
	r, column, ok := e.selectedCell()
	if !ok {
		return
	}
	cell, ok := r.Cell(column.ID)
	if !ok || !cell.HasConflict {
		return
	}
	rowID, columnID := r.ID, column.ID

	go func() {
		remote, err := e.st.Get(context.Background(), rowID)
		e.app.QueueUpdateDraw(func() {
			if err != nil {
				e.SetStatusErrorWithSentry(err)
				return
			}
			if remote == nil {
				e.SetStatusError("record no longer exists on the server")
				return
			}
			review := &conflict.RowReview{RowID: rowID, Remote: remote}
			if keepLocal {
				e.detector.KeepLocal(review, columnID)
				e.SetStatusMessage(fmt.Sprintf("kept your %s", columnID))
			} else {
				e.detector.AdoptRemote(review, columnID)
				e.SetStatusMessage(fmt.Sprintf("took their %s", columnID))
			}
		})
	}()
}
