package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
)

func (e *Editor) setupKeyBindings() {
	e.grid.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		key := event.Key()
		rune := event.Rune()
		mod := event.Modifiers()

		row, col := e.grid.GetSelection()

		// Record keyboard event in breadcrumbs (but not during edit mode or command input)
		if breadcrumbs != nil && !e.editing {
			keyStr := fmt.Sprintf("%v", key)
			if key == tcell.KeyRune {
				keyStr = string(rune)
			}
			modStr := ""
			if mod&tcell.ModCtrl != 0 {
				modStr += "Ctrl+"
			}
			if mod&tcell.ModShift != 0 {
				modStr += "Shift+"
			}
			if mod&tcell.ModAlt != 0 {
				modStr += "Alt+"
			}
			breadcrumbs.RecordKeyboard(keyStr, modStr)
		}

		if e.consumeKittyCSI(key, rune, mod) {
			return nil
		}

		// Ctrl+S: save marked rows
		if (rune == 's' || rune == 19) && mod&tcell.ModCtrl != 0 {
			if !e.editing {
				e.saveSelected()
			}
			return nil
		}
		// Ctrl+N: append a new draft row
		if (rune == 'n' || rune == 14) && mod&tcell.ModCtrl != 0 {
			e.addDraftRow()
			return nil
		}
		// Ctrl+Z: undo
		if (rune == 'z' || rune == 26) && mod&tcell.ModCtrl != 0 {
			e.undo()
			return nil
		}
		// Ctrl+Y: redo
		if (rune == 'y' || rune == 25) && mod&tcell.ModCtrl != 0 {
			e.redo()
			return nil
		}
		// Ctrl+K / Ctrl+R: resolve a flagged conflict on the current cell
		if (rune == 'k' || rune == 11) && mod&tcell.ModCtrl != 0 {
			e.resolveConflict(true)
			return nil
		}
		if (rune == 'r' || rune == 18) && mod&tcell.ModCtrl != 0 {
			e.resolveConflict(false)
			return nil
		}
		// Ctrl+O: import file prompt
		if (rune == 'o' || rune == 15) && mod&tcell.ModCtrl != 0 {
			e.setPaletteMode(PaletteModeImport, true)
			return nil
		}
		// Ctrl+Q: quit
		if (rune == 'q' || rune == 17) && mod&tcell.ModCtrl != 0 {
			e.app.Stop()
			return nil
		}

		switch {
		case key == tcell.KeyEnter:
			// Enter: enter edit mode
			e.enterEditMode(row, col)
			return nil
		case key == tcell.KeyEscape:
			if e.app.GetFocus() == e.commandPalette {
				e.setPaletteMode(PaletteModeDefault, false)
				e.app.SetFocus(e.grid)
				return nil
			}
			e.exitEditMode()
			return nil
		case key == tcell.KeyTab:
			e.navigateTab(false)
			return nil
		case key == tcell.KeyBacktab:
			e.navigateTab(true)
			return nil
		case key == tcell.KeyHome && mod&tcell.ModCtrl != 0:
			// Ctrl+Home: jump to first row
			e.grid.Select(0, col)
			return nil
		case key == tcell.KeyEnd && mod&tcell.ModCtrl != 0:
			// Ctrl+End: jump to last row
			e.grid.Select(e.ds.Len()-1, col)
			return nil
		// Ctrl+F sends ACK (6) or 'f' depending on terminal
		case (rune == 'f' || rune == 6) && mod&tcell.ModCtrl != 0:
			e.setPaletteMode(PaletteModeFind, true)
			return nil
		// Ctrl+P sends DLE (16) or 'p' depending on terminal
		case (rune == 'p' || rune == 16) && mod&tcell.ModCtrl != 0:
			e.setPaletteMode(PaletteModeCommand, true)
			return nil
		case key == tcell.KeyRune && rune == '=' && mod&tcell.ModCtrl != 0:
			e.grid.AdjustColumnWidth(col, 1)
			return nil
		case key == tcell.KeyRune && rune == '-' && mod&tcell.ModCtrl != 0:
			e.grid.AdjustColumnWidth(col, -1)
			return nil
		case key == tcell.KeyLeft && mod&tcell.ModMeta != 0:
			e.grid.Select(row, 0)
			return nil
		case key == tcell.KeyRight && mod&tcell.ModMeta != 0:
			e.grid.Select(row, len(e.grid.Columns())-1)
			return nil
		case key == tcell.KeyUp && mod&tcell.ModMeta != 0:
			e.grid.Select(0, col)
			return nil
		case key == tcell.KeyDown && mod&tcell.ModMeta != 0:
			e.grid.Select(e.ds.Len()-1, col)
			return nil
		case key == tcell.KeyDelete || key == tcell.KeyDEL:
			// Delete: clear every writable cell in the selected range
			e.clearSelection()
			return nil
		case key == tcell.KeyBackspace || key == tcell.KeyBackspace2:
			// Backspace never clears; Delete is the explicit gesture
			return nil
		// Vim mode keybindings
		case e.vimMode && key == tcell.KeyRune && rune == 'h' && mod == 0:
			// h: move left
			if col > 0 {
				e.grid.Select(row, col-1)
			}
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'l' && mod == 0:
			// l: move right
			if col < len(e.grid.Columns())-1 {
				e.grid.Select(row, col+1)
			}
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'j' && mod == 0:
			// j: move down
			e.grid.Select(row+1, col)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'k' && mod == 0:
			// k: move up
			e.grid.Select(row-1, col)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'g' && mod == 0:
			// g / gg: jump to first row
			if time.Since(e.lastGPress) < 500*time.Millisecond {
				e.lastGPress = time.Time{}
			} else {
				e.lastGPress = time.Now()
			}
			e.grid.Select(0, col)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'G':
			// G: jump to last row
			e.grid.Select(e.ds.Len()-1, col)
			return nil
		case e.vimMode && key == tcell.KeyRune && (rune == '0' || rune == '^') && mod == 0:
			// 0 or ^: jump to first column
			e.grid.Select(row, 0)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == '$' && mod&tcell.ModShift != 0:
			// $: jump to last column
			e.grid.Select(row, len(e.grid.Columns())-1)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'i' && mod == 0:
			// i: enter edit mode with all text selected
			e.enterEditModeWithSelection(row, col, true)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'a' && mod == 0:
			// a: enter edit mode with cursor at end
			e.enterEditModeWithSelection(row, col, false)
			return nil
		case e.vimMode && key == tcell.KeyRune && rune == 'u' && mod == 0:
			// u: undo
			e.undo()
			return nil
		default:
			// In vim mode, don't auto-enter edit mode on typing
			// (use 'i' or 'a' instead)
			if !e.vimMode && key == tcell.KeyRune && rune != 0 &&
				mod&(tcell.ModAlt|tcell.ModCtrl|tcell.ModMeta) == 0 {
				e.enterEditModeWithInitialValue(row, col, string(rune))
				return nil
			}
		}

		return event
	})
}

// consumeKittyCSI handles kitty keyboard protocol escape sequences, which
// arrive as raw CSI runes when the terminal has the protocol enabled.
func (e *Editor) consumeKittyCSI(key tcell.Key, r rune, mod tcell.ModMask) bool {
	if e.kittySequenceActive {
		if key != tcell.KeyRune {
			e.kittySequenceActive = false
			e.kittySequenceBuffer = ""
			return false
		}

		if r == 'u' {
			seq := e.kittySequenceBuffer
			e.kittySequenceActive = false
			e.kittySequenceBuffer = ""
			parts := strings.SplitN(seq, ";", 2)
			if len(parts) == 2 {
				codepoint, err1 := strconv.Atoi(parts[0])
				modifier, err2 := strconv.Atoi(parts[1])
				if err1 == nil && err2 == nil {
					mask := modifier - 1
					// Check if Ctrl is pressed (bit 2, value 4)
					if mask&4 != 0 {
						_, col := e.grid.GetSelection()
						switch codepoint {
						case 115: // Ctrl+S
							e.saveSelected()
						case 110: // Ctrl+N
							e.addDraftRow()
						case 61: // Ctrl+= (increase column width)
							e.grid.AdjustColumnWidth(col, 1)
						case 45: // Ctrl+- (decrease column width)
							e.grid.AdjustColumnWidth(col, -1)
						}
					}
				}
			}
			return true
		}

		e.kittySequenceBuffer += string(r)
		return true
	}

	if key == tcell.KeyRune && r == '[' {
		e.kittySequenceActive = true
		e.kittySequenceBuffer = ""
		return true
	}

	return false
}

func (e *Editor) navigateTab(reverse bool) {
	row, col := e.grid.GetSelection()
	cols := len(e.grid.Columns())

	if reverse {
		if col > 0 {
			e.grid.Select(row, col-1)
		} else if row > 0 {
			e.grid.Select(row-1, cols-1)
		}
	} else {
		if col < cols-1 {
			e.grid.Select(row, col+1)
		} else if row < e.ds.Len()-1 {
			e.grid.Select(row+1, 0)
		}
	}
}
