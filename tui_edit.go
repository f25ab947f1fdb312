package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"arked/internal/grid"
	"arked/internal/history"
)

func (e *Editor) enterEditMode(row, col int) {
	r, column, ok := e.cellAt(row, col)
	if !ok {
		return
	}
	switch column.Type {
	case grid.TypeReadOnly:
		e.SetStatusMessage("Column is not editable")
		return
	case grid.TypeBool:
		// Booleans toggle in place, no overlay.
		e.toggleBoolCell(r, column)
		return
	case grid.TypeReference:
		e.openReferencePicker(row, col, column)
		return
	}

	cell, _ := r.Cell(column.ID)
	e.enterEditModeWithInitialValue(row, col, cell.Value.String())
}

// cellAt resolves display coordinates into the row and column, rejecting
// anything outside the dataset.
func (e *Editor) cellAt(row, col int) (*grid.Row, grid.Column, bool) {
	r := e.ds.RowAt(row)
	column, ok := e.grid.ColumnAt(col)
	if r == nil || !ok {
		return nil, grid.Column{}, false
	}
	return r, column, true
}

func (e *Editor) enterEditModeWithInitialValue(row, col int, initialText string) {
	e.enterEditModeText(row, col, initialText, false)
}

// enterEditModeWithSelection enters edit mode with optional text selection
// selectAll=true: select all text (for vim 'i' mode)
// selectAll=false: cursor at end (for vim 'a' mode)
func (e *Editor) enterEditModeWithSelection(row, col int, selectAll bool) {
	r, column, ok := e.cellAt(row, col)
	if !ok {
		return
	}
	if column.ReadOnly() {
		e.SetStatusMessage("Column is not editable")
		return
	}
	if column.Type == grid.TypeBool {
		e.toggleBoolCell(r, column)
		return
	}
	if column.Type == grid.TypeReference {
		e.openReferencePicker(row, col, column)
		return
	}
	cell, _ := r.Cell(column.ID)
	e.enterEditModeText(row, col, cell.Value.String(), selectAll)
}

func (e *Editor) enterEditModeText(row, col int, initialText string, selectAll bool) {
	r, column, ok := e.cellAt(row, col)
	if !ok {
		return
	}
	if column.ReadOnly() {
		e.SetStatusMessage("Column is not editable")
		return
	}

	// must be set before any calls to app.Draw()
	e.editing = true

	// Create textarea for editing with proper styling
	textArea := tview.NewTextArea().
		SetText(initialText, !selectAll).
		SetWrap(true).
		SetOffset(0, 0)

	textArea.SetBorder(false)

	var modal tview.Primitive
	// Set the grid selection to track which cell is being edited
	e.grid.Select(row, col)

	// Function to resize textarea based on current content
	resizeTextarea := func() {
		e.pages.RemovePage(pageEditor)
		modal = e.createCellEditOverlay(textArea, row, col, textArea.GetText())
		e.pages.AddPage(pageEditor, modal, true, true)
		textArea.SetOffset(0, 0)
	}

	commit := func() {
		newText := textArea.GetText()
		e.exitEditMode()
		e.commitCellText(r, column, newText)
	}

	// Handle textarea input capture for save/cancel
	textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			if event.Modifiers()&tcell.ModAlt != 0 && column.Type == grid.TypeText {
				// Alt+Enter: newline, only for plain text columns
				textArea.SetText(textArea.GetText()+"\n", true)
				resizeTextarea()
				return nil
			}
			// Plain Enter: save and exit
			commit()
			return nil
		case tcell.KeyTab:
			// Tab: save and move to next cell
			commit()
			if col < len(e.grid.Columns())-1 {
				e.grid.Select(row, col+1)
			} else if row < e.ds.Len()-1 {
				e.grid.Select(row+1, 0)
			}
			return nil
		case tcell.KeyEscape:
			e.exitEditMode()
			return nil
		}
		return event
	})

	// Position the textarea to align with the cell
	modal = e.createCellEditOverlay(textArea, row, col, initialText)
	e.pages.AddPage(pageEditor, modal, true, true)

	// Set up dynamic resizing on text changes
	textArea.SetChangedFunc(func() {
		resizeTextarea()
	})
	// Native cursor, with optional select-all after the first draw
	selectTextOnce := selectAll && len(initialText) > 0
	textLen := len(initialText)
	e.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		screen.SetCursorStyle(tcell.CursorStyleBlinkingBar)
		if selectTextOnce {
			selectTextOnce = false
			textArea.Select(0, textLen)
		}
	})
	e.app.SetFocus(textArea)

	e.updateStatusForEditMode(col)
}

func (e *Editor) createCellEditOverlay(textArea *tview.TextArea, row, col int,
	currentText string) tview.Primitive {
	// Grid chrome above the data rows: title, top border, header, separator.
	tableRow := row - e.grid.topRow + 4
	topOffset := tableRow

	// Calculate horizontal position: left border + previous columns + cell padding
	leftOffset := 1 // Left grid border "│"
	for i := 0; i < col; i++ {
		leftOffset += e.grid.GetColumnWidth(i) + 2 + 1 // width + padding + separator
	}

	// Account for viewport horizontal scrolling
	leftOffset -= e.grid.viewport.GetScrollX()
	if leftOffset < 0 {
		leftOffset = 0
	}

	cellWidth := e.grid.GetColumnWidth(col)

	// Total grid width caps how wide the textarea may grow
	totalTableWidth := 0
	for i := 0; i < len(e.grid.Columns()); i++ {
		totalTableWidth += e.grid.GetColumnWidth(i)
	}
	totalTableWidth += 1 + (len(e.grid.Columns())-1)*3 + 1

	maxAvailableWidth := totalTableWidth - leftOffset + 1

	textLines := strings.Split(currentText, "\n")
	longestLine := 0
	for _, line := range textLines {
		if len(line) > longestLine {
			longestLine = len(line)
		}
	}

	desiredWidth := max(cellWidth, longestLine) + 2
	textAreaWidth := min(desiredWidth, maxAvailableWidth)
	textAreaHeight := max(len(textLines), 1)

	// Create positioned overlay that aligns text with the original cell
	leftPadding := tview.NewBox()
	return tview.NewFlex().
		AddItem(nil, leftOffset, 0, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, topOffset, 0, false).
			AddItem(tview.NewFlex().
				AddItem(leftPadding, 1, 0, false).           // Left padding
				AddItem(textArea, textAreaWidth-1, 0, true), // Text area
				textAreaHeight, 0, true).
			AddItem(nil, 0, 1, false), textAreaWidth, 0, true).
		AddItem(nil, 0, 1, false)
}

func (e *Editor) setCursorStyle(style int) {
	fmt.Printf("\033[%d q", style)
}

func (e *Editor) exitEditMode() {
	if e.editing {
		e.pages.RemovePage(pageEditor)
		e.app.SetAfterDrawFunc(nil) // Clear the cursor function
		e.setCursorStyle(0)         // Reset to default cursor style
		e.app.SetFocus(e.grid)
		e.editing = false
		e.setPaletteMode(PaletteModeDefault, false)
		e.updateStatusWithCellContent()
	}
}

// commitCellText parses raw input against the column type and commits the
// resulting value. Parse failures leave the cell untouched.
func (e *Editor) commitCellText(r *grid.Row, column grid.Column, raw string) {
	value, err := e.parseCellInput(column, raw)
	if err != nil {
		e.SetStatusError(err.Error())
		return
	}
	e.commitCell(r, column, value)
}

// commitCell routes one cell write through the history engine, marks the row
// for saving and kicks off async validation.
func (e *Editor) commitCell(r *grid.Row, column grid.Column, value grid.Value) {
	cell, ok := r.Cell(column.ID)
	if !ok {
		return
	}
	content := grid.Content(value)
	if cell.Value.Equal(value) {
		return
	}

	cmd := &history.CellCommand{Change: grid.CellChange{
		RowID:    r.ID,
		ColumnID: column.ID,
		Old:      cell.Content(),
		New:      content,
	}}
	if err := e.engine.Execute(cmd); err != nil {
		e.SetStatusErrorWithSentry(err)
		return
	}
	e.ds.SetSelected(r.ID, true)
	if breadcrumbs != nil {
		breadcrumbs.RecordEdit(column.ID, "set")
	}
	e.controller.ValidateCell(context.Background(), r.ID, column.ID, value)
	e.updateStatusWithCellContent()
}

func (e *Editor) toggleBoolCell(r *grid.Row, column grid.Column) {
	cell, ok := r.Cell(column.ID)
	if !ok {
		return
	}
	current, _ := cell.Value.BoolValue()
	e.commitCell(r, column, grid.Bool(!current))
}

// openReferencePicker shows the fuzzy picker over the persisted rows and
// commits the chosen reference into the cell.
func (e *Editor) openReferencePicker(row, col int, column grid.Column) {
	e.pickerRow, e.pickerCol = row, col
	e.refPicker = NewFuzzySelector(e.referenceOptions(),
		func(ref grid.Ref) {
			e.closeReferencePicker()
			if r, column, ok := e.cellAt(e.pickerRow, e.pickerCol); ok {
				e.commitCell(r, column, grid.Reference(ref))
			}
		},
		e.closeReferencePicker,
	)

	pickerOverlay := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(e.refPicker, 8, 0, true). // Picker with height for dropdown
		AddItem(nil, 0, 1, false)         // Spacer takes rest of screen
	e.pages.AddPage(pagePicker, pickerOverlay, true, true)
	e.app.SetFocus(e.refPicker)
	e.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		screen.SetCursorStyle(tcell.CursorStyleBlinkingBar)
	})
	e.SetStatusMessage(fmt.Sprintf("Pick a %s · Esc to cancel", column.RefTarget))
}

func (e *Editor) closeReferencePicker() {
	e.pages.RemovePage(pagePicker)
	e.app.SetFocus(e.grid)
	e.app.SetAfterDrawFunc(nil)
	e.setCursorStyle(0)
	e.updateStatusWithCellContent()
}

// referenceOptions lists every persisted row as a pickable target. Draft rows
// are excluded: they have no durable identity to reference.
func (e *Editor) referenceOptions() []RefOption {
	var opts []RefOption
	for i := 0; i < e.ds.Len(); i++ {
		r := e.ds.RowAt(i)
		if r == nil || r.IsDraft {
			continue
		}
		opt := RefOption{ID: r.ID}
		if c, ok := r.Cell("name"); ok {
			opt.Label = c.Value.String()
		}
		if c, ok := r.Cell("glottocode"); ok {
			opt.Key = c.Value.String()
		}
		if opt.Label == "" {
			opt.Label = r.ID
		}
		opts = append(opts, opt)
	}
	return opts
}

// parseCellInput converts raw text into a typed value for the column.
func (e *Editor) parseCellInput(column grid.Column, raw string) (grid.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return grid.Null(column.Type), nil
	}

	switch column.Type {
	case grid.TypeText:
		return grid.Text(raw), nil

	case grid.TypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return grid.Value{}, fmt.Errorf("%q is not a number", raw)
		}
		return grid.Decimal(f), nil

	case grid.TypeBool:
		switch strings.ToLower(raw) {
		case "true", "yes", "y", "1", "x":
			return grid.Bool(true), nil
		case "false", "no", "n", "0":
			return grid.Bool(false), nil
		}
		return grid.Value{}, fmt.Errorf("%q is not a boolean", raw)

	case grid.TypeSelect:
		if opt, ok := matchOption(column.Options, raw); ok {
			return grid.Select(opt), nil
		}
		return grid.Value{}, fmt.Errorf("%q is not one of %s", raw, strings.Join(column.Options, ", "))

	case grid.TypeReference:
		return grid.Reference(e.resolveLocalRef(raw)), nil

	case grid.TypeMultiReference:
		var refs []grid.Ref
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			refs = append(refs, e.resolveLocalRef(part))
		}
		return grid.References(refs), nil

	case grid.TypeStringList:
		var items []string
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				items = append(items, part)
			}
		}
		return grid.StringList(items), nil
	}

	return grid.Value{}, fmt.Errorf("column %s is not editable", column.ID)
}

// resolveLocalRef matches typed text against the loaded rows by natural key
// first, then by name. A miss stays unresolved so validation can flag it.
func (e *Editor) resolveLocalRef(raw string) grid.Ref {
	if row := e.ds.FindByCell("glottocode", grid.Text(raw), ""); row != nil && !row.IsDraft {
		label := raw
		if c, ok := row.Cell("name"); ok && !c.Value.IsEmpty() {
			label = c.Value.String()
		}
		return grid.Ref{ID: row.ID, Label: label}
	}
	if row := e.ds.FindByCell("name", grid.Text(raw), ""); row != nil && !row.IsDraft {
		label := raw
		if c, ok := row.Cell("name"); ok && !c.Value.IsEmpty() {
			label = c.Value.String()
		}
		return grid.Ref{ID: row.ID, Label: label}
	}
	return grid.Ref{Label: raw}
}

// matchOption folds case for exact matches and accepts a unique prefix.
func matchOption(options []string, raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, opt := range options {
		if strings.ToLower(opt) == lower {
			return opt, true
		}
	}
	var hit string
	count := 0
	for _, opt := range options {
		if strings.HasPrefix(strings.ToLower(opt), lower) {
			hit = opt
			count++
		}
	}
	if count == 1 {
		return hit, true
	}
	return "", false
}
