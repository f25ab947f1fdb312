package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"arked/internal/conflict"
	"arked/internal/grid"
	"arked/internal/history"
	"arked/internal/reconcile"
	"arked/internal/store"
	"arked/internal/validate"
)

const (
	pageTable  = "table"
	pagePicker = "picker"
	pageEditor = "editor"
)

// Editor owns the session: one dataset over one table, with editing, undo,
// validation, import and save all hanging off it.
type Editor struct {
	app        *tview.Application
	pages      *tview.Pages
	grid       *GridView
	ds         *grid.Dataset
	st         store.Store
	engine     *history.Engine
	controller *validate.Controller
	saver      *conflict.Saver
	reconciler *reconcile.Reconciler
	detector   *conflict.Detector

	config   *Config
	settings *Settings
	vimMode  bool

	// references to key components
	refPicker      *FuzzySelector // Reference picker overlay
	statusBar      *tview.TextView
	commandPalette *tview.InputField
	layout         *tview.Flex

	paletteMode         PaletteMode
	kittySequenceActive bool
	kittySequenceBuffer string
	lastGPress          time.Time // For detecting 'gg' in vim mode

	// selection
	editing bool
	// the cell the reference picker is currently editing
	pickerRow, pickerCol int

	// filter narrows the grid title counts; rows themselves stay loaded
	findText string

	saving bool

	// display id watermark for new draft rows
	nextID int64
}

// PaletteMode represents the current mode of the command palette
type PaletteMode int

const (
	PaletteModeDefault PaletteMode = iota
	PaletteModeCommand
	PaletteModeFind
	PaletteModeImport
)

func (m PaletteMode) Glyph() string {
	switch m {
	case PaletteModeDefault:
		return "⌃ "
	case PaletteModeCommand:
		return "> "
	case PaletteModeFind:
		return "↪ "
	case PaletteModeImport:
		return "⇣ "
	default:
		return "> "
	}
}

// mouseActionString converts tview.MouseAction to a human-readable string
func mouseActionString(action tview.MouseAction) string {
	switch action {
	case tview.MouseScrollUp:
		return "ScrollUp"
	case tview.MouseScrollDown:
		return "ScrollDown"
	case tview.MouseLeftClick:
		return "LeftClick"
	case tview.MouseRightClick:
		return "RightClick"
	case tview.MouseMiddleClick:
		return "MiddleClick"
	case tview.MouseMove:
		return "Move"
	case tview.MouseLeftDoubleClick:
		return "LeftDoubleClick"
	default:
		return fmt.Sprintf("Unknown(%d)", action)
	}
}

func runEditor(config *Config, settings *Settings) error {
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlack

	columns := languoidColumns()
	storeCfg := config.StoreConfig()
	db, err := storeCfg.Connect()
	if err != nil {
		CaptureError(err)
		return err
	}
	defer db.Close()

	st := store.NewSQLStore(db, storeCfg.Driver, config.Table, columns)
	ds := grid.NewDataset(columns)

	records, err := st.List(context.Background())
	if err != nil {
		CaptureError(err)
		return fmt.Errorf("could not load %s: %w", config.Table, err)
	}
	for _, rec := range records {
		if err := ds.AppendRow(grid.LoadRow(rec.ID, columns, rec.Cells, rec.Updated)); err != nil {
			return err
		}
	}
	if breadcrumbs != nil {
		breadcrumbs.RecordStore(fmt.Sprintf("loaded %d rows from %s", len(records), config.Table))
	}

	app := tview.NewApplication().SetTitle(fmt.Sprintf("arked %s", config.Database)).EnableMouse(true)

	editor := &Editor{
		app:         app,
		pages:       tview.NewPages(),
		ds:          ds,
		st:          st,
		config:      config,
		settings:    settings,
		vimMode:     config.VimMode || settings.VimMode,
		paletteMode: PaletteModeDefault,
		pickerRow:   -1,
		pickerCol:   -1,
	}

	editor.engine = history.NewEngine(ds, history.DefaultCapacity)
	editor.saver = conflict.NewSaver(ds, st, editor.engine)
	editor.detector = conflict.NewDetector(ds, st)

	// Draft rows show a display id past the store's current maximum.
	maxID, err := st.MaxID(context.Background())
	if err != nil {
		CaptureError(err)
		return err
	}
	editor.nextID = maxID

	mapping := reconcile.NewMapping(ds.Columns())
	if config.MappingFile != "" {
		f, err := os.Open(config.MappingFile)
		if err != nil {
			return fmt.Errorf("could not open mapping file: %w", err)
		}
		err = mapping.LoadAliases(f, ds.Columns())
		f.Close()
		if err != nil {
			return err
		}
	}
	editor.reconciler = reconcile.NewReconciler(ds, st, mapping)

	// Validation results are produced off the event loop; dispatching via a
	// goroutine keeps QueueUpdateDraw from deadlocking when an edit on the
	// loop triggers an immediate validation.
	editor.controller = validate.NewController(ds, validate.NewRules(ds, st), validate.Options{
		Dispatch: func(fn func()) { go app.QueueUpdateDraw(fn) },
		OnChange: func(t validate.Target, state grid.ValidationState) {
			editor.updateStatusWithCellContent()
		},
		OnBusy: func(busy bool) {
			if busy {
				editor.SetStatusLog("validating…")
			}
		},
	})

	editor.grid = NewGridView(ds, config.Table)
	editor.grid.SetDoubleClickFunc(func(row, col int) {
		editor.enterEditMode(row, col)
	})
	editor.grid.SetSingleClickFunc(func(row, col int) {
		if editor.editing {
			editor.exitEditMode()
		}
	})
	editor.grid.SetSelectionChangeFunc(func(row, col int) {
		editor.updateStatusWithCellContent()
		// Auto-scroll viewport to show the selected column
		editor.ensureColumnVisible(col)
	})

	editor.setupKeyBindings()
	editor.setupStatusBar()
	editor.setupCommandPalette()

	// Setup layout without the picker (it is overlaid when visible)
	editor.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(editor.grid, 0, 1, true).
		AddItem(editor.statusBar, 1, 0, false).
		AddItem(editor.commandPalette, 1, 0, false)

	editor.pages.AddPage(pageTable, editor.layout, true, true)

	// Restore the last session's position when reopening the same database.
	if settings.Session.Database == config.Database && ds.Len() > 0 {
		editor.grid.Select(settings.Session.SelectedRow, settings.Session.SelectedCol)
		editor.findText = settings.Session.Filter
	}

	if config.ImportFile != "" {
		go editor.runImport(config.ImportFile)
	}

	if err := editor.app.SetRoot(editor.pages, true).Run(); err != nil {
		CaptureError(err)
		return err
	}

	row, col := editor.grid.GetSelection()
	settings.Session = SessionState{
		Database:    config.Database,
		SelectedRow: row,
		SelectedCol: col,
		Filter:      editor.findText,
	}
	settings.VimMode = editor.vimMode
	return SaveSettings(settings)
}

// ensureColumnVisible scrolls the viewport horizontally to the column.
func (e *Editor) ensureColumnVisible(col int) {
	startX, endX := e.grid.GetColumnPosition(col)
	_, _, width, _ := e.grid.GetInnerRect()
	e.grid.viewport.EnsureColumnVisible(startX, endX, width)
}

// selectedCell resolves the current selection to its row and column, or ok
// false when the grid is empty.
func (e *Editor) selectedCell() (*grid.Row, grid.Column, bool) {
	rowIdx, colIdx := e.grid.GetSelection()
	row := e.ds.RowAt(rowIdx)
	col, ok := e.grid.ColumnAt(colIdx)
	if row == nil || !ok {
		return nil, grid.Column{}, false
	}
	return row, col, true
}

func (e *Editor) setupStatusBar() {
	e.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWrap(false)

	e.statusBar.SetBackgroundColor(tcell.ColorLightGray)
	e.statusBar.SetTextColor(tcell.ColorBlack)
	e.statusBar.SetText("Ready")
}

func (e *Editor) setupCommandPalette() {
	inputField := tview.NewInputField()
	e.commandPalette = inputField.
		SetLabel("").
		SetFieldBackgroundColor(tcell.ColorBlack).
		SetFieldTextColor(tcell.ColorWhite)

	e.commandPalette.SetBackgroundColor(tcell.ColorBlack)

	// Default palette mode shows keybinding help
	e.setPaletteMode(PaletteModeDefault, false)

	e.commandPalette.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		key := event.Key()
		rune := event.Rune()
		mod := event.Modifiers()

		if e.consumeKittyCSI(key, rune, mod) {
			return nil
		}

		switch {
		// Ctrl+F sends ACK (6) or 'f' depending on terminal
		case (rune == 'f' || rune == 6) && mod&tcell.ModCtrl != 0:
			e.setPaletteMode(PaletteModeFind, true)
			return nil
		case (rune == 'p' || rune == 16) && mod&tcell.ModCtrl != 0:
			e.setPaletteMode(PaletteModeCommand, true)
			return nil
		case (rune == 'o' || rune == 15) && mod&tcell.ModCtrl != 0:
			e.setPaletteMode(PaletteModeImport, true)
			return nil
		case (rune == 'q' || rune == 17) && mod&tcell.ModCtrl != 0:
			// Ctrl+Q: quit application
			e.app.Stop()
			return nil
		}

		switch event.Key() {
		case tcell.KeyEnter:
			command := e.commandPalette.GetText()
			mode := e.getPaletteMode()
			switch mode {
			case PaletteModeCommand:
				e.executeCommand(command)
			case PaletteModeFind:
				e.executeFind(command)
			case PaletteModeImport:
				if strings.TrimSpace(command) != "" {
					go e.runImport(strings.TrimSpace(command))
				}
			}

			// For Find mode, keep the palette open with text selected
			if mode == PaletteModeFind {
				return nil
			}

			e.setPaletteMode(PaletteModeDefault, false)
			e.app.SetFocus(e.grid)
			return nil
		case tcell.KeyEscape:
			e.setPaletteMode(PaletteModeDefault, false)
			e.app.SetFocus(e.grid)
			return nil
		}
		return event
	})
}
