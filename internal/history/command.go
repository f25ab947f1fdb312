// Package history records every dataset mutation as an invertible command
// and drives linear undo/redo over a bounded stack.
package history

import (
	"fmt"

	"arked/internal/grid"
)

// Command is one atomic, invertible unit of work against the dataset.
type Command interface {
	Apply(ds *grid.Dataset) error
	Revert(ds *grid.Dataset) error
	Description() string

	// rekey rewrites row identity after a draft row gains its
	// server-assigned id, so undo never addresses a stale id.
	rekey(oldID, newID string)
}

// CellCommand mutates exactly one (row, column) pair.
type CellCommand struct {
	Change grid.CellChange
}

func (c *CellCommand) Apply(ds *grid.Dataset) error {
	return ds.SetCell(c.Change.RowID, c.Change.ColumnID, c.Change.New)
}

func (c *CellCommand) Revert(ds *grid.Dataset) error {
	return ds.SetCell(c.Change.RowID, c.Change.ColumnID, c.Change.Old)
}

func (c *CellCommand) Description() string {
	return fmt.Sprintf("edit %s", c.Change.ColumnID)
}

func (c *CellCommand) rekey(oldID, newID string) {
	if c.Change.RowID == oldID {
		c.Change.RowID = newID
	}
}

// BatchCommand groups row additions and an ordered list of cell changes into
// one atomic unit: a paste, an import, a range clear. One undo reverts all
// of it, removing any rows the command introduced.
type BatchCommand struct {
	Desc      string
	AddedRows []*grid.Row
	Changes   []grid.CellChange
}

func (b *BatchCommand) Apply(ds *grid.Dataset) error {
	for i, r := range b.AddedRows {
		if err := ds.AppendRow(r); err != nil {
			// Unwind rows already added so a failed apply is a no-op.
			for j := 0; j < i; j++ {
				_ = ds.RemoveRow(b.AddedRows[j].ID)
			}
			return err
		}
	}
	if err := ds.ApplyBatch(b.Changes); err != nil {
		for _, r := range b.AddedRows {
			_ = ds.RemoveRow(r.ID)
		}
		return err
	}
	return nil
}

func (b *BatchCommand) Revert(ds *grid.Dataset) error {
	if err := ds.RevertBatch(b.Changes); err != nil {
		return err
	}
	for i := len(b.AddedRows) - 1; i >= 0; i-- {
		if err := ds.RemoveRow(b.AddedRows[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchCommand) Description() string { return b.Desc }

func (b *BatchCommand) rekey(oldID, newID string) {
	for i := range b.Changes {
		if b.Changes[i].RowID == oldID {
			b.Changes[i].RowID = newID
		}
	}
	for i, r := range b.AddedRows {
		if r.ID == oldID {
			b.AddedRows[i] = r.WithID(newID)
		}
	}
}

// CellRef addresses one cell.
type CellRef struct {
	RowID    string
	ColumnID string
}

// BuildClear builds the batch command for a delete-key press over a cell
// range: every writable cell is reset to its type's empty representation.
// Read-only cells are excluded from the command entirely, not recorded as
// no-ops. Returns nil when nothing is clearable.
func BuildClear(ds *grid.Dataset, targets []CellRef) *BatchCommand {
	var changes []grid.CellChange
	for _, t := range targets {
		col, ok := ds.Column(t.ColumnID)
		if !ok || col.ReadOnly() {
			continue
		}
		row := ds.Row(t.RowID)
		if row == nil {
			continue
		}
		cell, ok := row.Cell(t.ColumnID)
		if !ok {
			continue
		}
		changes = append(changes, grid.CellChange{
			RowID:    t.RowID,
			ColumnID: t.ColumnID,
			Old:      cell.Content(),
			New:      grid.Content(grid.Null(col.Type)),
		})
	}
	if len(changes) == 0 {
		return nil
	}
	return &BatchCommand{Desc: fmt.Sprintf("clear %d cells", len(changes)), Changes: changes}
}
