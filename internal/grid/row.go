package grid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DraftIDPrefix marks rows that have no server-assigned identifier yet.
const DraftIDPrefix = "draft-"

// NewDraftID generates a locally unique identifier for an unsaved row.
func NewDraftID() string { return DraftIDPrefix + uuid.NewString() }

// IsDraftID reports whether id is locally generated.
func IsDraftID(id string) bool { return strings.HasPrefix(id, DraftIDPrefix) }

// Row is an ordered mapping of column id to Cell. Rows are treated as
// immutable once published: all mutation goes through Dataset, which replaces
// the whole row object so unaffected rows keep reference identity.
type Row struct {
	ID         string
	IsDraft    bool
	IsSelected bool

	// BaselineTime is the server-side last-modified marker captured at load
	// time, compared against the store's current state at save time.
	BaselineTime time.Time

	cells map[string]Cell
}

// NewRow builds a row with one clean cell per column, each holding its
// type's empty representation.
func NewRow(id string, columns []Column) *Row {
	r := &Row{ID: id, IsDraft: IsDraftID(id), cells: make(map[string]Cell, len(columns))}
	for _, col := range columns {
		r.cells[col.ID] = NewCell(Null(col.Type))
	}
	return r
}

// NewDraftRow builds a draft row whose read-only identifier cell is
// pre-filled with a locally allocated display id. The row's own id stays a
// draft id until the store assigns the real one.
func NewDraftRow(columns []Column, idColumn, displayID string) *Row {
	r := NewRow(NewDraftID(), columns)
	if _, ok := r.cells[idColumn]; ok {
		r.cells[idColumn] = NewCell(ReadOnlyText(displayID))
	}
	return r
}

// LoadRow builds a clean persisted row from store contents: every provided
// cell's value becomes its own baseline. Columns absent from cells get their
// type's empty representation.
func LoadRow(id string, columns []Column, cells map[string]CellContent, updated time.Time) *Row {
	r := NewRow(id, columns)
	r.IsDraft = false
	r.BaselineTime = updated
	for _, col := range columns {
		if content, ok := cells[col.ID]; ok {
			c := NewCell(content.Value)
			c.Text = content.Text
			r.cells[col.ID] = c
		}
	}
	return r
}

// Cell returns the cell for a column id, and whether the column exists.
func (r *Row) Cell(columnID string) (Cell, bool) {
	c, ok := r.cells[columnID]
	return c, ok
}

// HasChanges reports whether at least one cell differs from its baseline.
// This is always derived from cell state, never stored.
func (r *Row) HasChanges() bool {
	for _, c := range r.cells {
		if c.IsEdited() {
			return true
		}
	}
	return false
}

// HasErrors reports whether any cell failed validation.
func (r *Row) HasErrors() bool {
	for _, c := range r.cells {
		if c.State == Invalid {
			return true
		}
	}
	return false
}

// HasConflicts reports whether any cell carries an unresolved concurrent-edit
// conflict.
func (r *Row) HasConflicts() bool {
	for _, c := range r.cells {
		if c.HasConflict {
			return true
		}
	}
	return false
}

// IsEmpty reports whether every cell holds its type's empty representation.
// Fully blank rows are exempt from required-field validation and skipped by
// bulk operations.
func (r *Row) IsEmpty() bool {
	for _, c := range r.cells {
		if !c.Value.IsEmpty() {
			return false
		}
	}
	return true
}

// clone returns a copy with a fresh cell map; the caller mutates the copy and
// publishes it in place of the original.
func (r *Row) clone() *Row {
	cp := *r
	cp.cells = make(map[string]Cell, len(r.cells))
	for k, v := range r.cells {
		cp.cells[k] = v
	}
	return &cp
}

// WithID returns a copy of the row under a different id. Draft status is
// derived from the new id.
func (r *Row) WithID(id string) *Row {
	cp := r.clone()
	cp.ID = id
	cp.IsDraft = IsDraftID(id)
	return cp
}

// RowStatus summarizes a row for status display and save gating.
type RowStatus struct {
	Draft      bool
	Selected   bool
	Changed    bool
	Errored    bool
	Conflicted bool
	Empty      bool
}

// Status computes the row-level rollup.
func (r *Row) Status() RowStatus {
	return RowStatus{
		Draft:      r.IsDraft,
		Selected:   r.IsSelected,
		Changed:    r.HasChanges(),
		Errored:    r.HasErrors(),
		Conflicted: r.HasConflicts(),
		Empty:      r.IsEmpty(),
	}
}
