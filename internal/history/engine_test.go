package history

import (
	"fmt"
	"testing"

	"arked/internal/grid"
)

func testDataset(t *testing.T, ids ...string) *grid.Dataset {
	t.Helper()
	columns := []grid.Column{
		{ID: "id", Type: grid.TypeReadOnly},
		{ID: "name", Type: grid.TypeText, Required: true},
		{ID: "aka", Type: grid.TypeStringList},
		{ID: "active", Type: grid.TypeBool},
	}
	d := grid.NewDataset(columns)
	for _, id := range ids {
		if err := d.AppendRow(grid.NewRow(id, d.Columns())); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func edit(row, col, text string, old grid.CellContent) *CellCommand {
	return &CellCommand{Change: grid.CellChange{
		RowID: row, ColumnID: col,
		Old: old,
		New: grid.Content(grid.Text(text)),
	}}
}

func cellText(t *testing.T, d *grid.Dataset, row, col string) string {
	t.Helper()
	r := d.Row(row)
	if r == nil {
		t.Fatalf("row %q missing", row)
	}
	c, ok := r.Cell(col)
	if !ok {
		t.Fatalf("cell %q missing", col)
	}
	return c.Value.String()
}

func TestUndoRedoSymmetry(t *testing.T) {
	d := testDataset(t, "r1")
	e := NewEngine(d, 0)

	empty := grid.Content(grid.Null(grid.TypeText))
	if err := e.Execute(edit("r1", "name", "Kashaya", empty)); err != nil {
		t.Fatal(err)
	}
	if got := cellText(t, d, "r1", "name"); got != "Kashaya" {
		t.Fatalf("after execute: %q", got)
	}

	if _, ok, err := e.Undo(); err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if got := cellText(t, d, "r1", "name"); got != "" {
		t.Fatalf("after undo: %q", got)
	}

	if _, ok, err := e.Redo(); err != nil || !ok {
		t.Fatalf("redo: ok=%v err=%v", ok, err)
	}
	if got := cellText(t, d, "r1", "name"); got != "Kashaya" {
		t.Fatalf("after redo: %q", got)
	}
}

func TestExecuteClearsRedo(t *testing.T) {
	d := testDataset(t, "r1")
	e := NewEngine(d, 0)
	empty := grid.Content(grid.Null(grid.TypeText))

	if err := e.Execute(edit("r1", "name", "a", empty)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if !e.CanRedo() {
		t.Fatal("expected redo available")
	}
	if err := e.Execute(edit("r1", "name", "b", empty)); err != nil {
		t.Fatal(err)
	}
	if e.CanRedo() {
		t.Error("executing a new command must discard the redo stack")
	}
}

func TestHistoryCapacityEvictsOldest(t *testing.T) {
	d := testDataset(t, "r1")
	e := NewEngine(d, 3)
	prev := grid.Content(grid.Null(grid.TypeText))
	for i := 0; i < 5; i++ {
		next := fmt.Sprintf("v%d", i)
		if err := e.Execute(edit("r1", "name", next, prev)); err != nil {
			t.Fatal(err)
		}
		prev = grid.Content(grid.Text(next))
	}
	// Only the last three edits survive.
	undone := 0
	for {
		_, ok, err := e.Undo()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		undone++
	}
	if undone != 3 {
		t.Errorf("undone %d commands, want 3", undone)
	}
	if got := cellText(t, d, "r1", "name"); got != "v1" {
		t.Errorf("after exhausting history: %q, want v1", got)
	}
}

func TestBatchCommandIsOneUndoUnit(t *testing.T) {
	d := testDataset(t, "r1", "r2")
	e := NewEngine(d, 0)
	empty := grid.Content(grid.Null(grid.TypeText))

	batch := &BatchCommand{
		Desc: "paste",
		Changes: []grid.CellChange{
			{RowID: "r1", ColumnID: "name", Old: empty, New: grid.Content(grid.Text("a"))},
			{RowID: "r2", ColumnID: "name", Old: empty, New: grid.Content(grid.Text("b"))},
		},
	}
	if err := e.Execute(batch); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := e.Undo(); err != nil || !ok {
		t.Fatalf("undo: ok=%v err=%v", ok, err)
	}
	if cellText(t, d, "r1", "name") != "" || cellText(t, d, "r2", "name") != "" {
		t.Error("one undo must revert the whole batch")
	}
}

func TestBatchCommandUndoRemovesAddedRows(t *testing.T) {
	d := testDataset(t)
	e := NewEngine(d, 0)

	row := grid.NewRow(grid.NewDraftID(), d.Columns())
	batch := &BatchCommand{
		Desc:      "import 1 row",
		AddedRows: []*grid.Row{row},
		Changes: []grid.CellChange{
			{RowID: row.ID, ColumnID: "name",
				Old: grid.Content(grid.Null(grid.TypeText)),
				New: grid.Content(grid.Text("Southern Pomo"))},
		},
	}
	if err := e.Execute(batch); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 1 {
		t.Fatalf("len = %d after import", d.Len())
	}
	if _, _, err := e.Undo(); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 0 {
		t.Error("undoing an import must remove the rows it introduced")
	}
	if _, _, err := e.Redo(); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 1 || cellText(t, d, row.ID, "name") != "Southern Pomo" {
		t.Error("redo must restore the imported row and its values")
	}
}

func TestBuildClearSkipsReadOnly(t *testing.T) {
	d := testDataset(t, "r1")
	if err := d.SetCell("r1", "name", grid.Content(grid.Text("x"))); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCell("r1", "aka", grid.Content(grid.StringList([]string{"y"}))); err != nil {
		t.Fatal(err)
	}

	cmd := BuildClear(d, []CellRef{
		{RowID: "r1", ColumnID: "id"},
		{RowID: "r1", ColumnID: "name"},
		{RowID: "r1", ColumnID: "aka"},
	})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if len(cmd.Changes) != 2 {
		t.Fatalf("changes = %d, want 2 (read-only excluded, not a no-op)", len(cmd.Changes))
	}
	if err := cmd.Apply(d); err != nil {
		t.Fatal(err)
	}
	aka, _ := d.Row("r1").Cell("aka")
	if aka.Value.Type() != grid.TypeStringList || !aka.Value.IsEmpty() {
		t.Error("clearing a list cell must produce the empty list, not null text")
	}
}

func TestRekeyRewritesHistory(t *testing.T) {
	d := testDataset(t)
	e := NewEngine(d, 0)

	row := grid.NewRow(grid.NewDraftID(), d.Columns())
	draftID := row.ID
	if err := e.Execute(&BatchCommand{Desc: "add row", AddedRows: []*grid.Row{row}}); err != nil {
		t.Fatal(err)
	}
	if err := e.Execute(edit(draftID, "name", "Kashaya", grid.Content(grid.Null(grid.TypeText)))); err != nil {
		t.Fatal(err)
	}

	if err := d.Rekey(draftID, "77"); err != nil {
		t.Fatal(err)
	}
	e.Rekey(draftID, "77")

	// Undo the edit, then the add: both must address the rekeyed row.
	if _, ok, err := e.Undo(); err != nil || !ok {
		t.Fatalf("undo edit: ok=%v err=%v", ok, err)
	}
	if got := cellText(t, d, "77", "name"); got != "" {
		t.Errorf("after undo: %q", got)
	}
	if _, ok, err := e.Undo(); err != nil || !ok {
		t.Fatalf("undo add: ok=%v err=%v", ok, err)
	}
	if d.Len() != 0 {
		t.Error("undoing the add must remove the rekeyed row")
	}
}
