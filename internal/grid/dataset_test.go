package grid

import (
	"testing"
	"time"
)

func testColumns() []Column {
	return []Column{
		{ID: "id", Title: "ID", Type: TypeReadOnly},
		{ID: "glottocode", Title: "Glottocode", Type: TypeText, NaturalKey: true, Unique: true},
		{ID: "name", Title: "Name", Type: TypeText, Required: true},
		{ID: "level", Title: "Level", Type: TypeSelect, Options: []string{"family", "language", "dialect"}},
		{ID: "parent", Title: "Parent", Type: TypeReference, RefTarget: "languoid"},
		{ID: "latitude", Title: "Latitude", Type: TypeDecimal, Min: -90, Max: 90, HasBounds: true},
		{ID: "macroareas", Title: "Macroareas", Type: TypeMultiReference},
		{ID: "aka", Title: "Also known as", Type: TypeStringList},
		{ID: "active", Title: "Active", Type: TypeBool},
	}
}

func testDataset(t *testing.T, ids ...string) *Dataset {
	t.Helper()
	d := NewDataset(testColumns())
	for _, id := range ids {
		if err := d.AppendRow(NewRow(id, d.Columns())); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestSetCellReplacesOnlyAffectedRow(t *testing.T) {
	d := testDataset(t, "r1", "r2")
	before1, before2 := d.Row("r1"), d.Row("r2")

	if err := d.SetCell("r1", "name", Content(Text("Eastern Pomo"))); err != nil {
		t.Fatal(err)
	}

	if d.Row("r1") == before1 {
		t.Error("edited row must be a new object")
	}
	if d.Row("r2") != before2 {
		t.Error("untouched row must keep reference identity")
	}
	cell, _ := d.Row("r1").Cell("name")
	if cell.Value.TextValue() != "Eastern Pomo" {
		t.Errorf("cell value = %q", cell.Value.TextValue())
	}
	if !cell.IsEdited() {
		t.Error("cell should be edited relative to baseline")
	}
	if !d.Row("r1").HasChanges() {
		t.Error("row rollup should report changes")
	}
}

func TestSetCellRejectsReadOnlyAndTypeMismatch(t *testing.T) {
	d := testDataset(t, "r1")
	if err := d.SetCell("r1", "id", Content(ReadOnlyText("7"))); err == nil {
		t.Error("read-only column must reject writes")
	}
	if err := d.SetCell("r1", "latitude", Content(Text("not a number"))); err == nil {
		t.Error("type mismatch must be rejected")
	}
}

func TestApplyBatchIsAtomic(t *testing.T) {
	d := testDataset(t, "r1")
	before := d.Row("r1")

	changes := []CellChange{
		{RowID: "r1", ColumnID: "name", New: Content(Text("Kashaya"))},
		{RowID: "r1", ColumnID: "missing", New: Content(Text("x"))},
	}
	if err := d.ApplyBatch(changes); err == nil {
		t.Fatal("batch with an unknown column must fail")
	}
	if d.Row("r1") != before {
		t.Error("failed batch must leave the dataset untouched")
	}
	cell, _ := d.Row("r1").Cell("name")
	if !cell.Value.IsEmpty() {
		t.Error("failed batch must not write any cell")
	}
}

func TestRevertBatchUnwindsInReverseOrder(t *testing.T) {
	d := testDataset(t, "r1")
	// Two dependent writes to the same cell: the revert must land on the
	// first change's old value, not the second's.
	changes := []CellChange{
		{RowID: "r1", ColumnID: "name", Old: Content(Null(TypeText)), New: Content(Text("first"))},
		{RowID: "r1", ColumnID: "name", Old: Content(Text("first")), New: Content(Text("second"))},
	}
	if err := d.ApplyBatch(changes); err != nil {
		t.Fatal(err)
	}
	cell, _ := d.Row("r1").Cell("name")
	if cell.Value.TextValue() != "second" {
		t.Fatalf("after apply, value = %q", cell.Value.TextValue())
	}
	if err := d.RevertBatch(changes); err != nil {
		t.Fatal(err)
	}
	cell, _ = d.Row("r1").Cell("name")
	if !cell.Value.IsEmpty() {
		t.Errorf("after revert, value = %q, want empty", cell.Value.TextValue())
	}
}

func TestRekey(t *testing.T) {
	d := testDataset(t)
	draft := NewRow(NewDraftID(), d.Columns())
	if !draft.IsDraft {
		t.Fatal("row with draft id must be a draft")
	}
	if err := d.AppendRow(draft); err != nil {
		t.Fatal(err)
	}
	oldID := draft.ID

	if err := d.Rekey(oldID, "1042"); err != nil {
		t.Fatal(err)
	}
	if d.Row(oldID) != nil {
		t.Error("draft id must no longer resolve")
	}
	row := d.Row("1042")
	if row == nil {
		t.Fatal("server id must resolve")
	}
	if row.IsDraft {
		t.Error("rekeyed row is no longer a draft")
	}
}

func TestRebaseAdoptsServerState(t *testing.T) {
	d := testDataset(t, "r1")
	if err := d.SetCell("r1", "name", Content(Text("Kashaya"))); err != nil {
		t.Fatal(err)
	}

	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := d.Rebase("r1", map[string]CellContent{
		"glottocode": Content(Text("kash1280")),
	}, updated)
	if err != nil {
		t.Fatal(err)
	}

	row := d.Row("r1")
	if row.HasChanges() {
		t.Error("rebased row must be clean")
	}
	if !row.BaselineTime.Equal(updated) {
		t.Errorf("baseline time = %v, want %v", row.BaselineTime, updated)
	}
	gc, _ := row.Cell("glottocode")
	if gc.Value.TextValue() != "kash1280" {
		t.Errorf("server column value = %q", gc.Value.TextValue())
	}
	name, _ := row.Cell("name")
	if name.Value.TextValue() != "Kashaya" {
		t.Error("columns absent from server state keep the local value")
	}
	if name.IsEdited() {
		t.Error("kept local value must become the new baseline")
	}
}

func TestRebasePreservesConflictedCell(t *testing.T) {
	d := testDataset(t, "r1")
	// A conflicted cell holds a local edit awaiting the operator's choice.
	if err := d.SetCell("r1", "glottocode", Content(Text("kash9999"))); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCell("r1", "name", Content(Text("Kashaya"))); err != nil {
		t.Fatal(err)
	}
	d.SetConflict("r1", "glottocode", true)

	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := d.Rebase("r1", map[string]CellContent{
		"glottocode": Content(Text("kash1280")),
		"name":       Content(Text("Kashaya")),
	}, updated)
	if err != nil {
		t.Fatal(err)
	}

	row := d.Row("r1")
	gc, _ := row.Cell("glottocode")
	if !gc.HasConflict {
		t.Error("conflict flag must survive the rebase")
	}
	if gc.Value.TextValue() != "kash9999" {
		t.Errorf("conflicted cell value = %q, want the local edit kept", gc.Value.TextValue())
	}
	if !gc.IsEdited() {
		t.Error("conflicted cell must still count as edited")
	}
	name, _ := row.Cell("name")
	if name.IsEdited() || name.HasConflict {
		t.Error("non-conflicted cell must rebase clean")
	}
	if !row.HasConflicts() {
		t.Error("row rollup must still report the pending conflict")
	}
}

func TestRowEmptiness(t *testing.T) {
	d := testDataset(t, "r1")
	if !d.Row("r1").IsEmpty() {
		t.Error("fresh row must be empty")
	}
	if err := d.SetCell("r1", "active", Content(Bool(false))); err != nil {
		t.Fatal(err)
	}
	if d.Row("r1").IsEmpty() {
		t.Error("a set boolean, even false, makes the row non-empty")
	}
}

func TestMaxNumericValue(t *testing.T) {
	d := testDataset(t, "r1", "r2")
	// id column is read-only; seed through row construction instead.
	r := NewRow("r3", d.Columns())
	r.cells["id"] = NewCell(ReadOnlyText("8123"))
	if err := d.AppendRow(r); err != nil {
		t.Fatal(err)
	}
	if got := d.MaxNumericValue("id"); got != 8123 {
		t.Errorf("MaxNumericValue = %d, want 8123", got)
	}
}

func TestRemoveRowReindexes(t *testing.T) {
	d := testDataset(t, "r1", "r2", "r3")
	if err := d.RemoveRow("r2"); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 2 {
		t.Fatalf("len = %d", d.Len())
	}
	if d.IndexOf("r3") != 1 {
		t.Errorf("r3 index = %d, want 1", d.IndexOf("r3"))
	}
}
