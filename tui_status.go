package main

import (
	"fmt"
	"strings"

	"arked/internal/grid"
)

// updateStatusForEditMode sets helpful status bar text based on column type and constraints
func (e *Editor) updateStatusForEditMode(col int) {
	column, ok := e.grid.ColumnAt(col)
	if !ok {
		e.SetStatusMessage("Editing...")
		return
	}

	var parts []string

	switch column.Type {
	case grid.TypeSelect:
		parts = append(parts, fmt.Sprintf("One of: %s", formatOptions(column.Options)))
	case grid.TypeDecimal:
		if column.HasBounds {
			parts = append(parts, fmt.Sprintf("Number, %g to %g", column.Min, column.Max))
		} else {
			parts = append(parts, "Number")
		}
	case grid.TypeBool:
		parts = append(parts, "Boolean (true/false, yes/no, 1/0)")
	case grid.TypeStringList:
		parts = append(parts, "Comma-separated list")
	case grid.TypeMultiReference:
		parts = append(parts, fmt.Sprintf("Comma-separated → %s", column.RefTarget))
	case grid.TypeReference:
		parts = append(parts, fmt.Sprintf("→ %s", column.RefTarget))
	}

	if column.Required {
		parts = append(parts, "required")
	}
	if column.Unique {
		parts = append(parts, "unique")
	}
	if column.Type == grid.TypeText {
		parts = append(parts, "Alt+Enter for newline")
	}

	// Enter to save hint
	parts = append(parts, "Enter to save · Esc to cancel")

	e.SetStatusMessage(strings.Join(parts, " · "))
}

// formatOptions formats select options for display in the status bar,
// truncating if there are too many.
func formatOptions(values []string) string {
	if len(values) == 0 {
		return ""
	}

	maxDisplay := 5
	maxLength := 60 // Max total length

	var parts []string
	totalLen := 0

	for i, val := range values {
		if i >= maxDisplay {
			parts = append(parts, "...")
			break
		}

		// Truncate individual values if too long
		displayVal := val
		if len(displayVal) > 20 {
			displayVal = displayVal[:17] + "..."
		}

		quoted := "'" + displayVal + "'"
		if totalLen+len(quoted)+2 > maxLength && i > 0 {
			parts = append(parts, "...")
			break
		}

		parts = append(parts, quoted)
		totalLen += len(quoted) + 2 // +2 for ", "
	}

	return strings.Join(parts, ", ")
}

// Mode management helpers
func (e *Editor) getPaletteMode() PaletteMode {
	return e.paletteMode
}

func (e *Editor) setPaletteMode(mode PaletteMode, focus bool) {
	// Record navigation event in breadcrumbs
	if breadcrumbs != nil && mode != e.paletteMode {
		modeStr := fmt.Sprintf("%v", mode)
		switch mode {
		case PaletteModeDefault:
			modeStr = "Default"
		case PaletteModeCommand:
			modeStr = "Command"
		case PaletteModeFind:
			modeStr = "Find"
		case PaletteModeImport:
			modeStr = "Import"
		}
		breadcrumbs.RecordNavigation(modeStr, "Palette mode changed")
	}

	e.paletteMode = mode
	e.commandPalette.SetLabel(mode.Glyph())
	// Clear input when switching modes
	e.commandPalette.SetText("")
	style := e.commandPalette.GetPlaceholderStyle().Italic(true)
	e.commandPalette.SetPlaceholderStyle(style)

	if e.editing {
		// Editing contexts manage their own status text
		if focus {
			e.app.SetFocus(e.commandPalette)
		}
		return
	}

	switch mode {
	case PaletteModeDefault:
		e.commandPalette.SetPlaceholder("Ctrl+… S: Save · O: Import · F: Find · P: Command · N: New row · Q: Quit")
	case PaletteModeCommand:
		e.commandPalette.SetPlaceholder("Command… (Esc to exit)")
	case PaletteModeFind:
		e.commandPalette.SetPlaceholder("Find next matching cell… (Esc to exit)")
	case PaletteModeImport:
		e.commandPalette.SetPlaceholder("Path to CSV/TSV file… (Esc to exit)")
	}

	if focus {
		e.app.SetFocus(e.commandPalette)
	}
}

// Status bar API methods
func (e *Editor) SetStatusMessage(message string) {
	if e.statusBar != nil {
		e.statusBar.SetText(message)
	}
}

func (e *Editor) SetStatusError(message string) {
	if e.statusBar != nil {
		e.statusBar.SetText("[red]ERROR: " + message + "[white]")
	}
}

// SetStatusErrorWithSentry sets an error status and sends it to Sentry
func (e *Editor) SetStatusErrorWithSentry(err error) {
	if e.statusBar != nil {
		e.statusBar.SetText("[red]ERROR: " + err.Error() + "[white]")
	}
	CaptureError(err)
}

func (e *Editor) SetStatusLog(message string) {
	if e.statusBar != nil {
		e.statusBar.SetText("[blue]" + message + "[white]")
	}
}

// updateStatusWithCellContent displays the current cell's full text plus any
// validation or conflict detail in the status bar. Only called outside edit
// mode.
func (e *Editor) updateStatusWithCellContent() {
	if e.editing {
		return
	}

	r, column, ok := e.selectedCell()
	if !ok {
		return
	}
	cell, ok := r.Cell(column.ID)
	if !ok {
		return
	}

	text := cell.Value.String()

	switch {
	case cell.HasConflict:
		e.SetStatusMessage(fmt.Sprintf("[black]%s[red] changed remotely · Ctrl+K keep yours · Ctrl+R take theirs", column.Title))
	case cell.State == grid.Invalid:
		e.SetStatusMessage(fmt.Sprintf("[black]%s[red] %s", column.Title, cell.ErrorMsg))
	case cell.State == grid.Validating:
		e.SetStatusMessage(fmt.Sprintf("[black]%s[blue] validating…", column.Title))
	default:
		status := r.Status()
		prefix := ""
		if status.Draft {
			prefix = "[darkgreen]new · "
		} else if cell.IsEdited() {
			prefix = "[darkgreen]edited · "
		}
		e.SetStatusMessage(fmt.Sprintf("%s[black]%s[darkgreen] %s", prefix, column.Title, text))
	}
}
