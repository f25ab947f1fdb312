package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"arked/internal/grid"
)

const (
	// DefaultColumnWidth is the starting width of a data column.
	DefaultColumnWidth = 12
	// MinColumnWidth is the narrowest a column can be dragged.
	MinColumnWidth = 3
	// Overscan is how many rows beyond the visible window stay rendered so
	// small scrolls never hit an empty cache.
	Overscan = 24
	// chromeRows is the vertical space taken by the title row, top border,
	// header row, header separator and bottom border.
	chromeRows = 5
)

// DisplayColumn pairs a dataset column with its on-screen width.
type DisplayColumn struct {
	Column grid.Column
	Width  int
}

// visibleRange returns the [start, end) window of rows worth materializing
// for a viewport of height rows starting at offset, padded by overscan on
// both sides and clamped to [0, total).
func visibleRange(total, offset, height, overscan int) (int, int) {
	if total <= 0 || height <= 0 {
		return 0, 0
	}
	start := offset - overscan
	if start < 0 {
		start = 0
	}
	end := offset + height + overscan
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return start, end
}

// Viewport handles horizontal scrolling for the grid.
type Viewport struct {
	scrollX     int
	screen      tcell.Screen
	tableWidth  int
	screenWidth int
}

func NewViewport() *Viewport {
	return &Viewport{}
}

// SetScreen sets the screen reference for the viewport.
func (v *Viewport) SetScreen(screen tcell.Screen) {
	v.screen = screen
}

// SetDimensions sets the grid and screen dimensions for scroll limiting.
func (v *Viewport) SetDimensions(tableWidth, screenWidth int) {
	v.tableWidth = tableWidth
	v.screenWidth = screenWidth
	if v.tableWidth > v.screenWidth {
		if maxScroll := v.tableWidth - v.screenWidth; v.scrollX > maxScroll {
			v.scrollX = maxScroll
		}
	} else {
		v.scrollX = 0
	}
}

// SetContent calls screen.SetContent with x adjusted by scrollX.
func (v *Viewport) SetContent(x, y int, ch rune, combc []rune, style tcell.Style) {
	if v.screen != nil {
		v.screen.SetContent(x-v.scrollX, y, ch, combc, style)
	}
}

// ScrollLeft scrolls the viewport left by one unit.
func (v *Viewport) ScrollLeft() {
	if v.scrollX > 0 {
		v.scrollX--
	}
}

// ScrollRight scrolls the viewport right by one unit.
func (v *Viewport) ScrollRight() {
	if v.tableWidth > v.screenWidth {
		if maxScroll := v.tableWidth - v.screenWidth; v.scrollX < maxScroll {
			v.scrollX++
		}
	}
}

// GetScrollX returns the current horizontal offset.
func (v *Viewport) GetScrollX() int {
	return v.scrollX
}

// EnsureColumnVisible adjusts scrollX so the [startX, endX) column range is
// inside the visible area.
func (v *Viewport) EnsureColumnVisible(startX, endX, screenWidth int) {
	if endX-startX >= screenWidth {
		v.scrollX = startX
		return
	}
	if startX < v.scrollX {
		v.scrollX = startX
	} else if endX > v.scrollX+screenWidth {
		v.scrollX = endX - screenWidth
	}
	if v.scrollX < 0 {
		v.scrollX = 0
	}
}

// GridView renders the working set. It owns no row data: every draw reads
// straight from the dataset, materializing only the visible window plus
// overscan. Formatted cell text is cached per row pointer; since the dataset
// publishes a fresh row object on every mutation, an unchanged pointer means
// the cached strings are still good.
type GridView struct {
	*tview.Box

	ds      *grid.Dataset
	columns []DisplayColumn
	title   string

	cellPadding   int
	borderColor   tcell.Color
	headerColor   tcell.Color
	headerBgColor tcell.Color

	selectedRow int
	selectedCol int
	// anchorRow/anchorCol hold the far end of a shift-extended range; -1
	// means the selection is a single cell.
	anchorRow int
	anchorCol int

	topRow     int // first visible data row
	rowsHeight int // data rows that fit, recomputed each draw

	viewport  *Viewport
	textCache map[*grid.Row][]string

	doubleClickFunc     func(row, col int)
	singleClickFunc     func(row, col int)
	selectionChangeFunc func(row, col int)

	lastClickRow int
	lastClickCol int

	resizingColumn   int
	resizeStartX     int
	resizeStartWidth int
}

// NewGridView builds a grid over the dataset. Column widths start from a
// per-type heuristic and are operator-adjustable afterwards.
func NewGridView(ds *grid.Dataset, title string) *GridView {
	gv := &GridView{
		Box:            tview.NewBox(),
		ds:             ds,
		title:          title,
		cellPadding:    1,
		borderColor:    tcell.ColorWhite,
		headerColor:    tcell.ColorWhite,
		headerBgColor:  tcell.ColorDarkSlateGray,
		anchorRow:      -1,
		anchorCol:      -1,
		lastClickRow:   -1,
		lastClickCol:   -1,
		resizingColumn: -1,
		viewport:       NewViewport(),
		rowsHeight:     1,
		textCache:      make(map[*grid.Row][]string),
	}
	gv.SetBorder(false)
	for _, col := range ds.Columns() {
		gv.columns = append(gv.columns, DisplayColumn{Column: col, Width: defaultWidth(col)})
	}
	return gv
}

func defaultWidth(col grid.Column) int {
	switch {
	case col.ReadOnly():
		return 6
	case col.Type == grid.TypeBool:
		return 6
	case col.Type == grid.TypeDecimal:
		return 9
	default:
		return DefaultColumnWidth
	}
}

// Columns returns the display columns in order.
func (gv *GridView) Columns() []DisplayColumn { return gv.columns }

// ColumnAt returns the dataset column at a display position.
func (gv *GridView) ColumnAt(col int) (grid.Column, bool) {
	if col < 0 || col >= len(gv.columns) {
		return grid.Column{}, false
	}
	return gv.columns[col].Column, true
}

// GetSelection returns the currently selected data row and column.
func (gv *GridView) GetSelection() (row, col int) {
	return gv.selectedRow, gv.selectedCol
}

// SelectionRange returns the normalized [r0,c0]..[r1,c1] rectangle covering
// the anchor and the selected cell. A single cell is its own range.
func (gv *GridView) SelectionRange() (r0, c0, r1, c1 int) {
	r0, c0, r1, c1 = gv.selectedRow, gv.selectedCol, gv.selectedRow, gv.selectedCol
	if gv.anchorRow >= 0 {
		if gv.anchorRow < r0 {
			r0 = gv.anchorRow
		} else {
			r1 = gv.anchorRow
		}
		if gv.anchorCol < c0 {
			c0 = gv.anchorCol
		} else {
			c1 = gv.anchorCol
		}
	}
	return r0, c0, r1, c1
}

// Select moves the selection to a single cell, collapsing any range.
func (gv *GridView) Select(row, col int) *GridView {
	gv.anchorRow, gv.anchorCol = -1, -1
	gv.moveSelection(row, col)
	return gv
}

// ExtendSelection grows the range from the anchor towards (row, col),
// establishing the anchor at the current cell on the first extension.
func (gv *GridView) ExtendSelection(row, col int) {
	if gv.anchorRow < 0 {
		gv.anchorRow, gv.anchorCol = gv.selectedRow, gv.selectedCol
	}
	gv.moveSelection(row, col)
}

func (gv *GridView) moveSelection(row, col int) {
	total := gv.ds.Len()
	if total == 0 || col < 0 || col >= len(gv.columns) {
		return
	}
	if row < 0 {
		row = 0
	}
	if row >= total {
		row = total - 1
	}
	changed := gv.selectedRow != row || gv.selectedCol != col
	gv.selectedRow, gv.selectedCol = row, col
	gv.EnsureRowVisible(row)
	if changed && gv.selectionChangeFunc != nil {
		gv.selectionChangeFunc(row, col)
	}
}

// EnsureRowVisible scrolls vertically so the row is inside the window.
func (gv *GridView) EnsureRowVisible(row int) {
	if row < gv.topRow {
		gv.topRow = row
	} else if row >= gv.topRow+gv.rowsHeight {
		gv.topRow = row - gv.rowsHeight + 1
	}
	gv.clampTopRow()
}

func (gv *GridView) clampTopRow() {
	max := gv.ds.Len() - gv.rowsHeight
	if max < 0 {
		max = 0
	}
	if gv.topRow > max {
		gv.topRow = max
	}
	if gv.topRow < 0 {
		gv.topRow = 0
	}
}

// PageSize returns how many data rows the window currently holds.
func (gv *GridView) PageSize() int {
	if gv.rowsHeight < 1 {
		return 1
	}
	return gv.rowsHeight
}

// ScrollRows moves the window by delta rows without touching the selection.
func (gv *GridView) ScrollRows(delta int) {
	gv.topRow += delta
	gv.clampTopRow()
}

// SetDoubleClickFunc sets the cell double-click handler.
func (gv *GridView) SetDoubleClickFunc(handler func(row, col int)) *GridView {
	gv.doubleClickFunc = handler
	return gv
}

// SetSingleClickFunc sets the cell single-click handler.
func (gv *GridView) SetSingleClickFunc(handler func(row, col int)) *GridView {
	gv.singleClickFunc = handler
	return gv
}

// SetSelectionChangeFunc sets the handler called when the selection moves.
func (gv *GridView) SetSelectionChangeFunc(handler func(row, col int)) *GridView {
	gv.selectionChangeFunc = handler
	return gv
}

// GetColumnWidth returns the width of a column.
func (gv *GridView) GetColumnWidth(col int) int {
	if col >= 0 && col < len(gv.columns) {
		return gv.columns[col].Width
	}
	return 0
}

// SetColumnWidth updates a column width.
func (gv *GridView) SetColumnWidth(col int, width int) *GridView {
	if col >= 0 && col < len(gv.columns) {
		gv.columns[col].Width = max(MinColumnWidth, width)
	}
	return gv
}

// AdjustColumnWidth grows or shrinks a column by delta.
func (gv *GridView) AdjustColumnWidth(col, delta int) {
	gv.SetColumnWidth(col, gv.GetColumnWidth(col)+delta)
}

// GetColumnPosition returns the start and end x positions of a column
// relative to the grid's left border.
func (gv *GridView) GetColumnPosition(col int) (startX, endX int) {
	if col < 0 || col >= len(gv.columns) {
		return 0, 0
	}
	pos := 1
	for i := 0; i < col; i++ {
		pos += gv.columns[i].Width + 2*gv.cellPadding
		if i < len(gv.columns)-1 {
			pos++
		}
	}
	return pos, pos + gv.columns[col].Width + 2*gv.cellPadding
}

// formatRow renders one row's cells into display strings, preferring the
// cell's stored text over the value's default rendering.
func (gv *GridView) formatRow(r *grid.Row) []string {
	out := make([]string, len(gv.columns))
	for i, dc := range gv.columns {
		cell, ok := r.Cell(dc.Column.ID)
		if !ok {
			continue
		}
		text := cell.Text
		if text == "" {
			text = cell.Value.String()
		}
		out[i] = text
	}
	return out
}

// windowTexts refreshes the text cache for the window plus overscan. Rows
// whose pointer is unchanged keep their cached strings; everything outside
// the window is dropped so the cache never outgrows the overscan budget.
func (gv *GridView) windowTexts() (start, end int) {
	start, end = visibleRange(gv.ds.Len(), gv.topRow, gv.rowsHeight, Overscan)
	fresh := make(map[*grid.Row][]string, end-start)
	for i := start; i < end; i++ {
		r := gv.ds.RowAt(i)
		if r == nil {
			continue
		}
		if texts, ok := gv.textCache[r]; ok {
			fresh[r] = texts
		} else {
			fresh[r] = gv.formatRow(r)
		}
	}
	gv.textCache = fresh
	return start, end
}

// Draw renders the grid.
func (gv *GridView) Draw(screen tcell.Screen) {
	gv.Box.DrawForSubclass(screen, gv)
	x, y, width, height := gv.GetInnerRect()
	if len(gv.columns) == 0 || width <= 0 || height <= 0 {
		return
	}

	gv.viewport.SetScreen(screen)
	tableWidth := gv.calculateTableWidth()
	gv.viewport.SetDimensions(tableWidth, width)

	gv.rowsHeight = height - chromeRows
	if gv.rowsHeight < 1 {
		gv.rowsHeight = 1
	}
	gv.clampTopRow()
	gv.windowTexts()

	currentY := y
	gv.drawTitleRow(x, currentY, tableWidth)
	currentY++
	gv.drawTopBorder(x, currentY, tableWidth)
	currentY++
	if currentY < y+height {
		gv.drawHeaderRow(x, currentY)
		currentY++
	}
	if currentY < y+height {
		gv.drawHeaderSeparator(x, currentY, tableWidth)
		currentY++
	}

	total := gv.ds.Len()
	for i := gv.topRow; i < total && i < gv.topRow+gv.rowsHeight && currentY < y+height-1; i++ {
		gv.drawDataRow(x, currentY, i)
		currentY++
	}
	if currentY < y+height {
		gv.drawBottomBorder(x, currentY, tableWidth)
	}
}

func (gv *GridView) calculateTableWidth() int {
	width := 1
	for i, dc := range gv.columns {
		width += dc.Width + 2*gv.cellPadding
		if i < len(gv.columns)-1 {
			width++
		}
	}
	return width + 1
}

// drawTitleRow shows the dataset name with row and selection counts on the
// right.
func (gv *GridView) drawTitleRow(x, y, tableWidth int) {
	titleText := fmt.Sprintf(" %s ▾", gv.title)
	counts := fmt.Sprintf("%d rows · %d marked ", gv.ds.Len(), len(gv.ds.SelectedRows()))
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	pos := x
	for _, ch := range titleText {
		gv.viewport.SetContent(pos, y, ch, nil, style)
		pos++
	}
	countsStart := x + tableWidth - len(counts)
	for pos < countsStart {
		gv.viewport.SetContent(pos, y, ' ', nil, style)
		pos++
	}
	for _, ch := range counts {
		gv.viewport.SetContent(pos, y, ch, nil, style)
		pos++
	}
}

func (gv *GridView) drawTopBorder(x, y, tableWidth int) {
	style := tcell.StyleDefault.Foreground(gv.borderColor)
	gv.viewport.SetContent(x, y, '┌', nil, style)
	pos := x + 1
	for i, dc := range gv.columns {
		cellWidth := dc.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '─', nil, style)
		}
		pos += cellWidth
		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┬', nil, style)
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┐', nil, style)
		}
	}
}

func (gv *GridView) drawHeaderRow(x, y int) {
	borderStyle := tcell.StyleDefault.Foreground(gv.borderColor)
	gv.viewport.SetContent(x, y, '│', nil, borderStyle)
	pos := x + 1
	for i, dc := range gv.columns {
		headerStyle := tcell.StyleDefault.Foreground(gv.headerColor).Background(gv.headerBgColor)
		for j := 0; j < gv.cellPadding; j++ {
			marker := ' '
			if dc.Column.NaturalKey {
				marker = '✦'
			}
			gv.viewport.SetContent(pos+j, y, marker, nil, headerStyle)
		}
		pos += gv.cellPadding

		headerText := padCellToWidth(dc.Column.Title, dc.Width)
		for j, ch := range headerText {
			gv.viewport.SetContent(pos+j, y, ch, nil, headerStyle.Bold(true))
		}
		pos += dc.Width

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, headerStyle)
		}
		pos += gv.cellPadding

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '│', nil, borderStyle)
			pos++
		}
	}
	gv.viewport.SetContent(pos, y, '│', nil, borderStyle)
}

func (gv *GridView) drawHeaderSeparator(x, y, tableWidth int) {
	style := tcell.StyleDefault.Foreground(gv.borderColor)
	gv.viewport.SetContent(x, y, '┝', nil, style)
	pos := x + 1
	for i, dc := range gv.columns {
		cellWidth := dc.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '━', nil, style)
		}
		pos += cellWidth
		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┿', nil, style)
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┥', nil, style)
		}
	}
}

// cellStyle computes the background for one cell from its state. Precedence:
// selection beats conflict beats invalid beats validating beats edited.
func (gv *GridView) cellStyle(rowIdx, colIdx int, cell grid.Cell, inRange bool) tcell.Style {
	style := tcell.StyleDefault
	switch {
	case cell.HasConflict:
		style = style.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
	case cell.State == grid.Invalid:
		style = style.Background(tcell.ColorIndianRed).Foreground(tcell.ColorBlack)
	case cell.State == grid.Validating:
		style = style.Foreground(tcell.ColorYellow).Italic(true)
	case cell.IsEdited():
		style = style.Background(tcell.ColorDarkGreen)
	}
	if inRange {
		style = style.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
	}
	if rowIdx == gv.selectedRow && colIdx == gv.selectedCol {
		style = style.Background(tcell.ColorBlue).Foreground(tcell.ColorWhite)
	}
	return style
}

func (gv *GridView) drawDataRow(x, y, rowIdx int) {
	row := gv.ds.RowAt(rowIdx)
	if row == nil {
		return
	}
	texts := gv.textCache[row]

	borderStyle := tcell.StyleDefault.Foreground(gv.borderColor)
	if row.IsDraft {
		borderStyle = borderStyle.Background(tcell.ColorDarkGreen)
	} else if row.IsSelected {
		borderStyle = borderStyle.Background(tcell.ColorDarkSlateGray)
	}
	gv.viewport.SetContent(x, y, '│', nil, borderStyle)
	pos := x + 1

	r0, c0, r1, c1 := gv.SelectionRange()
	for i, dc := range gv.columns {
		cell, _ := row.Cell(dc.Column.ID)
		inRange := rowIdx >= r0 && rowIdx <= r1 && i >= c0 && i <= c1 &&
			(gv.anchorRow >= 0 || rowIdx != gv.selectedRow || i != gv.selectedCol)
		style := gv.cellStyle(rowIdx, i, cell, inRange)

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, style)
		}
		pos += gv.cellPadding

		text := ""
		if i < len(texts) {
			text = texts[i]
		}
		for j, ch := range padCellToWidth(text, dc.Width) {
			gv.viewport.SetContent(pos+j, y, ch, nil, style)
		}
		pos += dc.Width

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, style)
		}
		pos += gv.cellPadding

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '│', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		}
	}
	gv.viewport.SetContent(pos, y, '│', nil, borderStyle)
}

func (gv *GridView) drawBottomBorder(x, y, tableWidth int) {
	style := tcell.StyleDefault.Foreground(gv.borderColor)
	gv.viewport.SetContent(x, y, '└', nil, style)
	pos := x + 1
	for i, dc := range gv.columns {
		cellWidth := dc.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '─', nil, style)
		}
		pos += cellWidth
		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┴', nil, style)
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┘', nil, style)
		}
	}
}

// InputHandler handles navigation within the grid; command keys are captured
// above this by the editor.
func (gv *GridView) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return gv.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		row, col := gv.selectedRow, gv.selectedCol
		shift := event.Modifiers()&tcell.ModShift != 0
		move := func(r, c int) {
			if shift {
				gv.ExtendSelection(r, c)
			} else {
				gv.Select(r, c)
			}
		}
		switch event.Key() {
		case tcell.KeyUp:
			move(row-1, col)
		case tcell.KeyDown:
			move(row+1, col)
		case tcell.KeyLeft:
			if col > 0 {
				move(row, col-1)
			}
		case tcell.KeyRight:
			if col < len(gv.columns)-1 {
				move(row, col+1)
			}
		case tcell.KeyHome:
			move(row, 0)
		case tcell.KeyEnd:
			move(row, len(gv.columns)-1)
		case tcell.KeyPgUp:
			move(row-gv.PageSize(), col)
		case tcell.KeyPgDn:
			move(row+gv.PageSize(), col)
		}
	})
}

// MouseHandler handles selection clicks, double-click editing, drag resize
// and scrolling.
func (gv *GridView) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return gv.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
		x, y := event.Position()
		if !gv.InRect(x, y) {
			return false, nil
		}

		switch action {
		case tview.MouseLeftDown:
			setFocus(gv)
			consumed = true
			if separatorCol := gv.columnSeparatorAt(x, y); separatorCol >= 0 {
				gv.resizingColumn = separatorCol
				gv.resizeStartX = x
				gv.resizeStartWidth = gv.columns[separatorCol].Width
				return true, gv
			}
			if row, col := gv.CellAtPosition(x, y); row >= 0 && col >= 0 {
				gv.Select(row, col)
			}
		case tview.MouseMove:
			if gv.resizingColumn >= 0 {
				gv.SetColumnWidth(gv.resizingColumn, gv.resizeStartWidth+x-gv.resizeStartX)
				return true, gv
			}
		case tview.MouseLeftUp:
			if gv.resizingColumn >= 0 {
				gv.resizingColumn = -1
				return true, nil
			}
		case tview.MouseLeftClick:
			row, col := gv.CellAtPosition(x, y)
			if gv.singleClickFunc != nil && row >= 0 && col >= 0 {
				gv.singleClickFunc(row, col)
			}
			gv.lastClickRow, gv.lastClickCol = row, col
			return true, nil
		case tview.MouseLeftDoubleClick:
			if gv.doubleClickFunc != nil {
				row, col := gv.CellAtPosition(x, y)
				if row >= 0 && col >= 0 && row == gv.lastClickRow && col == gv.lastClickCol {
					gv.doubleClickFunc(row, col)
					gv.lastClickRow, gv.lastClickCol = -1, -1
					consumed = true
				}
			}
		case tview.MouseScrollUp:
			gv.ScrollRows(-1)
			consumed = true
		case tview.MouseScrollDown:
			gv.ScrollRows(1)
			consumed = true
		case tview.MouseScrollLeft:
			gv.viewport.ScrollLeft()
			consumed = true
		case tview.MouseScrollRight:
			gv.viewport.ScrollRight()
			consumed = true
		}
		return consumed, nil
	})
}

// CellAtPosition maps screen coordinates to a (row, col) in the dataset,
// accounting for vertical and horizontal scrolling. Returns (-1, -1) outside
// the data area.
func (gv *GridView) CellAtPosition(screenX, screenY int) (row, col int) {
	x, y, width, height := gv.GetInnerRect()
	if screenX < x || screenX >= x+width || screenY < y || screenY >= y+height {
		return -1, -1
	}

	// Title row, top border, header and separator occupy the first four
	// lines; data rows follow.
	relativeY := screenY - y
	if relativeY < 4 {
		return -1, -1
	}
	dataRow := gv.topRow + relativeY - 4
	if dataRow >= gv.ds.Len() || dataRow >= gv.topRow+gv.rowsHeight {
		return -1, -1
	}

	relativeX := screenX - x + gv.viewport.GetScrollX()
	if relativeX < 1 {
		return -1, -1
	}
	currentX := 1
	for i, dc := range gv.columns {
		cellWidth := dc.Width + 2*gv.cellPadding
		if relativeX >= currentX && relativeX < currentX+cellWidth {
			return dataRow, i
		}
		currentX += cellWidth
		if i < len(gv.columns)-1 {
			if relativeX == currentX {
				return -1, -1
			}
			currentX++
		}
	}
	return -1, -1
}

// columnSeparatorAt returns the column left of the separator at the given
// position, with ±1 tolerance, or -1.
func (gv *GridView) columnSeparatorAt(screenX, screenY int) int {
	x, y, width, _ := gv.GetInnerRect()
	if screenX < x || screenX >= x+width {
		return -1
	}
	relativeY := screenY - y
	if relativeY != 2 && relativeY < 4 {
		return -1
	}
	relativeX := screenX - x + gv.viewport.GetScrollX()
	if relativeX < 1 {
		return -1
	}
	currentX := 1
	for i, dc := range gv.columns {
		currentX += dc.Width + 2*gv.cellPadding
		if i < len(gv.columns)-1 {
			if relativeX >= currentX-1 && relativeX <= currentX+1 {
				return i
			}
			currentX++
		}
	}
	return -1
}

// padCellToWidth pads text to a specific width, truncating with an ellipsis
// if too long.
func padCellToWidth(text string, width int) string {
	runes := []rune(text)
	if len(runes) >= width {
		if width >= 3 {
			return string(runes[:width-1]) + "…"
		}
		return string(runes[:width])
	}
	for len(runes) < width {
		runes = append(runes, ' ')
	}
	return string(runes)
}
