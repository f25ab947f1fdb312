package validate

import (
	"context"
	"strings"
	"testing"

	"arked/internal/grid"
	"arked/internal/store"
)

func testColumns() []grid.Column {
	return []grid.Column{
		{ID: "id", Title: "ID", Type: grid.TypeReadOnly},
		{ID: "glottocode", Title: "Glottocode", Type: grid.TypeText, NaturalKey: true, Unique: true},
		{ID: "name", Title: "Name", Type: grid.TypeText, Required: true},
		{ID: "level", Title: "Level", Type: grid.TypeSelect, Options: []string{"family", "language", "dialect"}},
		{ID: "parent", Title: "Parent", Type: grid.TypeReference, RefTarget: "languoid"},
		{ID: "latitude", Title: "Latitude", Type: grid.TypeDecimal, Min: -90, Max: 90, HasBounds: true},
	}
}

func addRow(t *testing.T, ds *grid.Dataset, id string) *grid.Row {
	t.Helper()
	r := grid.NewRow(id, ds.Columns())
	if err := ds.AppendRow(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func setCell(t *testing.T, ds *grid.Dataset, rowID, columnID string, v grid.Value) {
	t.Helper()
	if err := ds.SetCell(rowID, columnID, grid.Content(v)); err != nil {
		t.Fatal(err)
	}
}

func TestCheckRequiredGatedByRowEmptiness(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	row := addRow(t, ds, grid.NewDraftID())
	r := NewRules(ds, nil)
	ctx := context.Background()

	// A fully blank row is never flagged for missing required fields.
	state, msg := r.Check(ctx, row.ID, "name", grid.Null(grid.TypeText))
	if state != grid.Valid {
		t.Fatalf("blank row: state = %v (%q), want valid", state, msg)
	}

	setCell(t, ds, row.ID, "glottocode", grid.Text("kash1280"))
	state, msg = r.Check(ctx, row.ID, "name", grid.Null(grid.TypeText))
	if state != grid.Invalid {
		t.Fatal("row with content must require a name")
	}
	if msg != "Name is required" {
		t.Errorf("message = %q", msg)
	}
}

func TestCheckDecimalBounds(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	row := addRow(t, ds, grid.NewDraftID())
	r := NewRules(ds, nil)
	ctx := context.Background()

	tests := []struct {
		value float64
		want  grid.ValidationState
	}{
		{38.9, grid.Valid},
		{-90, grid.Valid},
		{90, grid.Valid},
		{95, grid.Invalid},
		{-100.5, grid.Invalid},
	}
	for _, tt := range tests {
		state, msg := r.Check(ctx, row.ID, "latitude", grid.Decimal(tt.value))
		if state != tt.want {
			t.Errorf("latitude %g: state = %v (%q), want %v", tt.value, state, msg, tt.want)
		}
		if state == grid.Invalid && !strings.Contains(msg, "between") {
			t.Errorf("latitude %g: message %q should name the bounds", tt.value, msg)
		}
	}
}

func TestCheckSelectOptions(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	row := addRow(t, ds, grid.NewDraftID())
	r := NewRules(ds, nil)
	ctx := context.Background()

	if state, msg := r.Check(ctx, row.ID, "level", grid.Select("Language")); state != grid.Valid {
		t.Errorf("options match case-insensitively: %v (%q)", state, msg)
	}
	state, msg := r.Check(ctx, row.ID, "level", grid.Select("clade"))
	if state != grid.Invalid {
		t.Fatal("unknown option must be invalid")
	}
	if !strings.Contains(msg, "must be one of") {
		t.Errorf("message = %q", msg)
	}
}

func TestCheckSelfReference(t *testing.T) {
	cols := testColumns()
	ds := grid.NewDataset(cols)
	mem := store.NewMemStore(cols)
	mem.Seed("1", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("pomo1273")),
		"name":       grid.Content(grid.Text("Pomoan")),
	})

	row := addRow(t, ds, "7")
	setCell(t, ds, row.ID, "glottocode", grid.Text("kash1280"))
	setCell(t, ds, row.ID, "name", grid.Text("Kashaya"))

	r := NewRules(ds, mem)
	ctx := context.Background()

	selfRefs := []grid.Ref{
		{ID: "7", Label: "Kashaya"}, // by server id
		{Label: "Kashaya"},          // by name
		{Label: "kash1280"},         // by natural key
	}
	for _, ref := range selfRefs {
		state, msg := r.Check(ctx, row.ID, "parent", grid.Reference(ref))
		if state != grid.Invalid || !strings.Contains(msg, "itself") {
			t.Errorf("ref %+v: state = %v (%q), want self-reference error", ref, state, msg)
		}
	}

	if state, msg := r.Check(ctx, row.ID, "parent", grid.Reference(grid.Ref{ID: "1", Label: "Pomoan"})); state != grid.Valid {
		t.Errorf("resolvable parent rejected: %v (%q)", state, msg)
	}
}

func TestCheckUniqueAgainstLoadedRows(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	first := addRow(t, ds, "1")
	setCell(t, ds, first.ID, "glottocode", grid.Text("east2545"))
	second := addRow(t, ds, grid.NewDraftID())

	r := NewRules(ds, nil)
	state, msg := r.Check(context.Background(), second.ID, "glottocode", grid.Text("east2545"))
	if state != grid.Invalid || !strings.Contains(msg, "already used") {
		t.Errorf("state = %v (%q), want duplicate error", state, msg)
	}

	// The row holding the value is not its own duplicate.
	if state, msg := r.Check(context.Background(), first.ID, "glottocode", grid.Text("east2545")); state != grid.Valid {
		t.Errorf("own value flagged: %v (%q)", state, msg)
	}
}

func TestCheckUniqueAgainstStore(t *testing.T) {
	cols := testColumns()
	ds := grid.NewDataset(cols)
	mem := store.NewMemStore(cols)
	mem.Seed("1", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("east2545")),
		"name":       grid.Content(grid.Text("Eastern Pomo")),
	})
	row := addRow(t, ds, grid.NewDraftID())

	r := NewRules(ds, mem)
	state, msg := r.Check(context.Background(), row.ID, "glottocode", grid.Text("east2545"))
	if state != grid.Invalid || !strings.Contains(msg, "already in use") {
		t.Errorf("state = %v (%q), want store-side duplicate error", state, msg)
	}
}

func TestCheckReadOnlyAlwaysValid(t *testing.T) {
	ds := grid.NewDataset(testColumns())
	row := addRow(t, ds, grid.NewDraftID())
	r := NewRules(ds, nil)
	if state, msg := r.Check(context.Background(), row.ID, "id", grid.ReadOnlyText("anything")); state != grid.Valid {
		t.Errorf("read-only column validated: %v (%q)", state, msg)
	}
}
