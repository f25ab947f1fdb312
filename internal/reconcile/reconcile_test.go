package reconcile

import (
	"context"
	"strings"
	"testing"

	"arked/internal/grid"
	"arked/internal/history"
	"arked/internal/importfile"
	"arked/internal/store"
)

func testColumns() []grid.Column {
	return []grid.Column{
		{ID: "id", Title: "ID", Type: grid.TypeReadOnly},
		{ID: "glottocode", Title: "Glottocode", Type: grid.TypeText, NaturalKey: true, Unique: true},
		{ID: "name", Title: "Name", Type: grid.TypeText, Required: true},
		{ID: "level", Title: "Level", Type: grid.TypeSelect, Options: []string{"family", "language", "dialect"}},
		{ID: "parent", Title: "Parent", Type: grid.TypeReference, RefTarget: "languoid"},
		{ID: "aka", Title: "Also known as", Type: grid.TypeStringList},
		{ID: "active", Title: "Active", Type: grid.TypeBool},
		{ID: "latitude", Title: "Latitude", Type: grid.TypeDecimal, Min: -90, Max: 90, HasBounds: true},
	}
}

func parseCSV(t *testing.T, in string) *importfile.Table {
	t.Helper()
	table, err := importfile.Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func loadFromStore(t *testing.T, ds *grid.Dataset, m *store.MemStore, id string) {
	t.Helper()
	rec, err := m.Get(context.Background(), id)
	if err != nil || rec == nil {
		t.Fatalf("record %q: %v", id, err)
	}
	if err := ds.AppendRow(grid.LoadRow(id, ds.Columns(), rec.Cells, rec.Updated)); err != nil {
		t.Fatal(err)
	}
}

func idCell(t *testing.T, ds *grid.Dataset, rowID string) string {
	t.Helper()
	c, ok := ds.Row(rowID).Cell("id")
	if !ok {
		t.Fatal("no id cell")
	}
	return c.Value.String()
}

func TestImportIntoEmptyDataset(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	r := NewReconciler(ds, m, NewMapping(ds.Columns()))

	table := parseCSV(t, "name,glottocode,level,parent\nFamily1,,family,\nLang1,lang0001,language,Family1\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Added) != 2 || len(res.Modified) != 0 {
		t.Fatalf("added=%v modified=%v", res.Added, res.Modified)
	}

	engine := history.NewEngine(ds, 0)
	if err := res.Apply(engine, ds); err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d", ds.Len())
	}

	lang := ds.Row(res.Added[1])
	cell, _ := lang.Cell("parent")
	ref, ok := cell.Value.ReferenceValue()
	if !ok || ref.Resolved() || ref.Label != "Family1" {
		t.Errorf("parent = %+v, want unresolved reference to Family1", ref)
	}
	if !lang.IsDraft || !lang.IsSelected {
		t.Error("imported rows must be selected drafts")
	}

	// Pre-allocated identifiers are strictly increasing from 1.
	if idCell(t, ds, res.Added[0]) != "1" || idCell(t, ds, res.Added[1]) != "2" {
		t.Errorf("ids = %q, %q", idCell(t, ds, res.Added[0]), idCell(t, ds, res.Added[1]))
	}

	// One undo discards the whole import.
	if _, ok, err := engine.Undo(); !ok || err != nil {
		t.Fatalf("undo: %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("rows after undo = %d", ds.Len())
	}
}

func TestImportDiffsLoadedRowMinimally(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	m.Seed("1", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("exist0001")),
		"name":       grid.Content(grid.Text("Lang")),
		"level":      grid.Content(grid.Select("language")),
	})
	loadFromStore(t, ds, m, "1")

	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "glottocode,name,level\nexist0001,Lang,dialect\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Modified) != 1 || res.Modified[0] != "1" {
		t.Fatalf("modified = %v", res.Modified)
	}
	if n := len(res.Command.Changes); n != 1 {
		t.Fatalf("changes = %d, want only the differing field", n)
	}
	if ch := res.Command.Changes[0]; ch.ColumnID != "level" || ch.New.Value.String() != "dialect" {
		t.Errorf("change = %+v", ch)
	}
}

func TestImportMaterializesUnloadedRecord(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	m.Seed("3", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("sout2984")),
		"name":       grid.Content(grid.Text("Southern Pomo")),
		"level":      grid.Content(grid.Select("language")),
	})

	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "glottocode,level\nsout2984,dialect\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Added) != 0 || len(res.Modified) != 1 {
		t.Fatalf("added=%v modified=%v", res.Added, res.Modified)
	}

	engine := history.NewEngine(ds, 0)
	if err := res.Apply(engine, ds); err != nil {
		t.Fatal(err)
	}
	row := ds.Row("3")
	if row == nil {
		t.Fatal("record not materialized into the working set")
	}
	if row.IsDraft || !row.IsSelected {
		t.Error("materialized row must be a selected persisted row")
	}
	cell, _ := row.Cell("level")
	if cell.Value.String() != "dialect" || !cell.IsEdited() {
		t.Errorf("level = %q edited=%v, want pending edit over the loaded baseline", cell.Value.String(), cell.IsEdited())
	}
}

func TestImportUnchangedUnloadedRecordStaysOut(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	m.Seed("3", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("sout2984")),
		"name":       grid.Content(grid.Text("Southern Pomo")),
	})

	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "glottocode,name\nsout2984,Southern Pomo\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if res.Command != nil {
		t.Error("identical record must produce no command")
	}
	if len(res.Unchanged) != 1 || res.Unchanged[0] != "3" {
		t.Errorf("unchanged = %v", res.Unchanged)
	}
}

func TestReimportAfterApplyIsUnchanged(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	in := "name,glottocode,level,parent\nFamily1,,family,\nLang1,lang0001,language,Family1\n"

	res, err := r.Reconcile(context.Background(), parseCSV(t, in))
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Apply(history.NewEngine(ds, 0), ds); err != nil {
		t.Fatal(err)
	}

	res2, err := r.Reconcile(context.Background(), parseCSV(t, in))
	if err != nil {
		t.Fatal(err)
	}
	if res2.Command != nil {
		t.Errorf("re-import produced changes: %+v", res2.Command.Changes)
	}
	if len(res2.Added) != 0 || len(res2.Modified) != 0 || len(res2.Unchanged) != 2 {
		t.Errorf("added=%v modified=%v unchanged=%v", res2.Added, res2.Modified, res2.Unchanged)
	}
}

func TestImportNewKeyWithExistingNameFlagsCollision(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	m.Seed("1", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("kash1280")),
		"name":       grid.Content(grid.Text("Kashaya")),
	})
	loadFromStore(t, ds, m, "1")

	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "glottocode,name\nkash9999,Kashaya\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	// A fresh key means a new row, never a name-based merge.
	if len(res.Added) != 1 || len(res.Modified) != 0 {
		t.Fatalf("added=%v modified=%v", res.Added, res.Modified)
	}
	if len(res.Flags) != 1 || res.Flags[0].ColumnID != "name" {
		t.Fatalf("flags = %v, want one on the name cell", res.Flags)
	}
	if len(res.Warnings) == 0 {
		t.Error("name collision must surface a warning")
	}

	if err := res.Apply(history.NewEngine(ds, 0), ds); err != nil {
		t.Fatal(err)
	}
	cell, _ := ds.Row(res.Added[0]).Cell("name")
	if !cell.HasConflict {
		t.Error("collision flag not applied to the cell")
	}
}

func TestDraftIDsAllocatedAboveBothMaxima(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	m.Seed("7", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("east2545")),
		"name":       grid.Content(grid.Text("Eastern Pomo")),
	})
	// An earlier import already holds a higher local id.
	if err := ds.AppendRow(grid.NewDraftRow(ds.Columns(), "id", "12")); err != nil {
		t.Fatal(err)
	}

	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "name,glottocode\nNew1,new00001\nNew2,new00002\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Apply(history.NewEngine(ds, 0), ds); err != nil {
		t.Fatal(err)
	}
	if got := idCell(t, ds, res.Added[0]); got != "13" {
		t.Errorf("first id = %q, want 13", got)
	}
	if got := idCell(t, ds, res.Added[1]); got != "14" {
		t.Errorf("second id = %q, want 14", got)
	}
}

func TestImportRejectsUnrecognizedColumns(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	if _, err := r.Reconcile(context.Background(), parseCSV(t, "foo,bar\n1,2\n")); err == nil {
		t.Fatal("unrecognized headers must reject the import")
	}
}

func TestImportSkipsDuplicateKeysInFile(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	r := NewReconciler(ds, m, NewMapping(ds.Columns()))
	table := parseCSV(t, "glottocode,name\nkash1280,Kashaya\nkash1280,Kashaya Again\n")
	res, err := r.Reconcile(context.Background(), table)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Added) != 1 {
		t.Errorf("added = %v, want the first row only", res.Added)
	}
	if len(res.Warnings) == 0 {
		t.Error("duplicate key must surface a warning")
	}
}
