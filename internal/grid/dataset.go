package grid

import (
	"fmt"
	"strconv"
	"time"
)

// Column describes one editable field of the dataset.
type Column struct {
	ID       string
	Title    string
	Type     CellType
	Required bool
	// Options constrains single-select columns.
	Options []string
	// NaturalKey marks the human-meaningful unique identifier used for
	// record matching during imports.
	NaturalKey bool
	// Unique columns are checked against both the loaded dataset and the
	// authoritative store.
	Unique bool
	// RefTarget names what a reference column points at, for messages.
	RefTarget string
	// Min/Max bound decimal columns when both are set.
	Min, Max   float64
	HasBounds  bool
}

// ReadOnly reports whether cells of this column reject edits.
func (c Column) ReadOnly() bool { return c.Type == TypeReadOnly }

// CellChange is one invertible cell mutation: the old and new value+text for
// exactly one (row, column) pair.
type CellChange struct {
	RowID    string
	ColumnID string
	Old      CellContent
	New      CellContent
}

// Dataset is the canonical in-memory working set: the single source of truth
// every other component reads. Mutation replaces whole row objects, so a row
// pointer that compares equal between reads is guaranteed unchanged.
type Dataset struct {
	columns []Column
	byID    map[string]int // column id -> position
	rows    []*Row
	index   map[string]int // row id -> position
}

// NewDataset builds an empty dataset over the given columns.
func NewDataset(columns []Column) *Dataset {
	d := &Dataset{
		columns: append([]Column(nil), columns...),
		byID:    make(map[string]int, len(columns)),
		index:   make(map[string]int),
	}
	for i, c := range columns {
		d.byID[c.ID] = i
	}
	return d
}

// Columns returns the ordered column specs.
func (d *Dataset) Columns() []Column { return d.columns }

// Column looks a column up by id.
func (d *Dataset) Column(id string) (Column, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// RowAt returns the row at a position, or nil when out of range.
func (d *Dataset) RowAt(i int) *Row {
	if i < 0 || i >= len(d.rows) {
		return nil
	}
	return d.rows[i]
}

// Row looks a row up by id.
func (d *Dataset) Row(id string) *Row {
	if i, ok := d.index[id]; ok {
		return d.rows[i]
	}
	return nil
}

// IndexOf returns a row's position, or -1.
func (d *Dataset) IndexOf(id string) int {
	if i, ok := d.index[id]; ok {
		return i
	}
	return -1
}

// AppendRow adds a row to the end of the working set.
func (d *Dataset) AppendRow(r *Row) error {
	if r == nil {
		return fmt.Errorf("nil row")
	}
	if _, dup := d.index[r.ID]; dup {
		return fmt.Errorf("row %q already present", r.ID)
	}
	d.index[r.ID] = len(d.rows)
	d.rows = append(d.rows, r)
	return nil
}

// RemoveRow drops a row from the working set.
func (d *Dataset) RemoveRow(id string) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("row %q not found", id)
	}
	d.rows = append(d.rows[:i], d.rows[i+1:]...)
	delete(d.index, id)
	for j := i; j < len(d.rows); j++ {
		d.index[d.rows[j].ID] = j
	}
	return nil
}

// checkChange validates that a change can be applied: the row and column
// exist, the column accepts writes, and the value matches the column type.
func (d *Dataset) checkChange(rowID, columnID string, content CellContent) error {
	if d.Row(rowID) == nil {
		return fmt.Errorf("row %q not found", rowID)
	}
	col, ok := d.Column(columnID)
	if !ok {
		return fmt.Errorf("column %q not found", columnID)
	}
	if col.ReadOnly() {
		return fmt.Errorf("column %q is read-only", columnID)
	}
	if content.Value.Type() != col.Type {
		return fmt.Errorf("column %q: value type %s does not match column type %s",
			columnID, content.Value.Type(), col.Type)
	}
	return nil
}

// SetCell replaces one cell's value and text, publishing a new row object.
// It is the only scalar write primitive; command execution is built on it.
func (d *Dataset) SetCell(rowID, columnID string, content CellContent) error {
	if err := d.checkChange(rowID, columnID, content); err != nil {
		return err
	}
	d.setCell(rowID, columnID, content)
	return nil
}

func (d *Dataset) setCell(rowID, columnID string, content CellContent) {
	i := d.index[rowID]
	row := d.rows[i].clone()
	cell := row.cells[columnID]
	cell.Value = content.Value
	cell.Text = content.Text
	row.cells[columnID] = cell
	d.rows[i] = row
}

// ApplyBatch applies a list of forward changes atomically: every change is
// checked before any is applied, so a failing batch leaves the dataset
// untouched. Rows touched more than once are cloned once.
func (d *Dataset) ApplyBatch(changes []CellChange) error {
	for _, ch := range changes {
		if err := d.checkChange(ch.RowID, ch.ColumnID, ch.New); err != nil {
			return err
		}
	}
	d.applyBatch(changes, false)
	return nil
}

// RevertBatch applies the old values of a batch in reverse order, unwinding
// dependent writes correctly. The rows and columns must still exist.
func (d *Dataset) RevertBatch(changes []CellChange) error {
	for _, ch := range changes {
		if err := d.checkChange(ch.RowID, ch.ColumnID, ch.Old); err != nil {
			return err
		}
	}
	d.applyBatch(changes, true)
	return nil
}

func (d *Dataset) applyBatch(changes []CellChange, reverse bool) {
	cloned := make(map[string]*Row, len(changes))
	get := func(id string) *Row {
		if r, ok := cloned[id]; ok {
			return r
		}
		i := d.index[id]
		r := d.rows[i].clone()
		cloned[id] = r
		d.rows[i] = r
		return r
	}
	apply := func(ch CellChange, content CellContent) {
		row := get(ch.RowID)
		cell := row.cells[ch.ColumnID]
		cell.Value = content.Value
		cell.Text = content.Text
		row.cells[ch.ColumnID] = cell
	}
	if reverse {
		for i := len(changes) - 1; i >= 0; i-- {
			apply(changes[i], changes[i].Old)
		}
	} else {
		for _, ch := range changes {
			apply(ch, ch.New)
		}
	}
}

// SetValidation records an async validation outcome on a cell.
func (d *Dataset) SetValidation(rowID, columnID string, state ValidationState, msg string) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	if _, ok := d.rows[i].cells[columnID]; !ok {
		return
	}
	row := d.rows[i].clone()
	cell := row.cells[columnID]
	cell.State = state
	cell.ErrorMsg = msg
	row.cells[columnID] = cell
	d.rows[i] = row
}

// SetConflict flags or clears a concurrent-edit conflict on a cell.
func (d *Dataset) SetConflict(rowID, columnID string, conflicted bool) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	if _, ok := d.rows[i].cells[columnID]; !ok {
		return
	}
	row := d.rows[i].clone()
	cell := row.cells[columnID]
	cell.HasConflict = conflicted
	row.cells[columnID] = cell
	d.rows[i] = row
}

// SetSelected marks or unmarks a row for the next save.
func (d *Dataset) SetSelected(rowID string, selected bool) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	if d.rows[i].IsSelected == selected {
		return
	}
	row := d.rows[i].clone()
	row.IsSelected = selected
	d.rows[i] = row
}

// SelectedRows returns the ids of rows marked for the next save, in order.
func (d *Dataset) SelectedRows() []string {
	var ids []string
	for _, r := range d.rows {
		if r.IsSelected {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Rekey atomically renames a draft row to its server-assigned id after a
// successful create. Draft ids are never reused as persisted ids.
func (d *Dataset) Rekey(oldID, newID string) error {
	i, ok := d.index[oldID]
	if !ok {
		return fmt.Errorf("row %q not found", oldID)
	}
	if _, dup := d.index[newID]; dup {
		return fmt.Errorf("row %q already present", newID)
	}
	row := d.rows[i].clone()
	row.ID = newID
	row.IsDraft = false
	d.rows[i] = row
	delete(d.index, oldID)
	d.index[newID] = i
	return nil
}

// Rebase adopts server state as the new baseline after a successful save:
// for every column present in cells the value, text and baseline are set to
// the server's rendition. Columns absent from cells keep their local value
// and rebase it in place. A cell flagged with an unresolved conflict is left
// alone entirely, local edit and flag included, so the operator's pending
// choice survives a partial save of the row.
func (d *Dataset) Rebase(rowID string, cells map[string]CellContent, updated time.Time) error {
	i, ok := d.index[rowID]
	if !ok {
		return fmt.Errorf("row %q not found", rowID)
	}
	row := d.rows[i].clone()
	for id, cell := range row.cells {
		if cell.HasConflict {
			continue
		}
		if content, ok := cells[id]; ok {
			cell.Value = content.Value
			cell.Text = content.Text
		}
		cell.Original = cell.Value
		row.cells[id] = cell
	}
	row.BaselineTime = updated
	d.rows[i] = row
	return nil
}

// SetBaselineTime advances a row's server-side last-modified marker.
func (d *Dataset) SetBaselineTime(rowID string, t time.Time) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	row := d.rows[i].clone()
	row.BaselineTime = t
	d.rows[i] = row
}

// AdoptBaseline overwrites one cell with remote content and makes it the new
// baseline, discarding any local edit of that cell.
func (d *Dataset) AdoptBaseline(rowID, columnID string, content CellContent) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	if _, ok := d.rows[i].cells[columnID]; !ok {
		return
	}
	row := d.rows[i].clone()
	cell := row.cells[columnID]
	cell.Value = content.Value
	cell.Text = content.Text
	cell.Original = content.Value
	row.cells[columnID] = cell
	d.rows[i] = row
}

// RebaseCell moves one cell's baseline to remote content while keeping the
// local value, so a surviving local edit is measured against the server's
// current state.
func (d *Dataset) RebaseCell(rowID, columnID string, content CellContent) {
	i, ok := d.index[rowID]
	if !ok {
		return
	}
	if _, ok := d.rows[i].cells[columnID]; !ok {
		return
	}
	row := d.rows[i].clone()
	cell := row.cells[columnID]
	cell.Original = content.Value
	row.cells[columnID] = cell
	d.rows[i] = row
}

// MaxNumericValue scans a column for the largest integer value, used when
// pre-allocating identifiers for imported rows. Rows whose cell does not
// parse are skipped.
func (d *Dataset) MaxNumericValue(columnID string) int64 {
	var max int64
	for _, r := range d.rows {
		c, ok := r.cells[columnID]
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(c.Value.String(), 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max
}

// FindByCell returns the first row whose cell in the given column is
// equivalent to the wanted value, excluding the row with id skip.
func (d *Dataset) FindByCell(columnID string, want Value, skip string) *Row {
	for _, r := range d.rows {
		if r.ID == skip {
			continue
		}
		if c, ok := r.cells[columnID]; ok && !c.Value.IsEmpty() && c.Value.Equivalent(want) {
			return r
		}
	}
	return nil
}
