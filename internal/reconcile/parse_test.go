package reconcile

import (
	"context"
	"strings"
	"testing"

	"arked/internal/grid"
	"arked/internal/store"
)

func newParser(t *testing.T) (*Reconciler, *store.MemStore) {
	t.Helper()
	ds := grid.NewDataset(testColumns())
	m := store.NewMemStore(testColumns())
	return NewReconciler(ds, m, NewMapping(ds.Columns())), m
}

func TestParseBoolSynonyms(t *testing.T) {
	r, _ := newParser(t)
	col := grid.Column{ID: "active", Title: "Active", Type: grid.TypeBool}

	tests := []struct {
		raw  string
		want bool
		ok   bool
	}{
		{"true", true, true},
		{"Yes", true, true},
		{"y", true, true},
		{"1", true, true},
		{"x", true, true},
		{"FALSE", false, true},
		{"no", false, true},
		{"0", false, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		v, warn, ok := r.parseField(context.Background(), col, tt.raw)
		if ok != tt.ok {
			t.Errorf("%q: ok = %v, want %v (%s)", tt.raw, ok, tt.ok, warn)
			continue
		}
		if !ok {
			continue
		}
		if b, _ := v.BoolValue(); b != tt.want {
			t.Errorf("%q: value = %v, want %v", tt.raw, b, tt.want)
		}
	}
}

func TestParseFuzzyEnum(t *testing.T) {
	r, _ := newParser(t)
	col := grid.Column{ID: "level", Title: "Level", Type: grid.TypeSelect,
		Options: []string{"family", "language", "dialect"}}

	if v, _, ok := r.parseField(context.Background(), col, "Language"); !ok || v.TextValue() != "language" {
		t.Errorf("exact fold match: %q ok=%v", v.TextValue(), ok)
	}
	if v, _, ok := r.parseField(context.Background(), col, "dia"); !ok || v.TextValue() != "dialect" {
		t.Errorf("unique prefix: %q ok=%v", v.TextValue(), ok)
	}
	if _, warn, ok := r.parseField(context.Background(), col, "clade"); ok || warn == "" {
		t.Error("unknown option must fail with a warning")
	}

	ambiguous := grid.Column{ID: "level", Title: "Level", Type: grid.TypeSelect,
		Options: []string{"language", "languoid"}}
	if _, _, ok := r.parseField(context.Background(), ambiguous, "lang"); ok {
		t.Error("ambiguous prefix must not match")
	}
}

func TestParseDecimal(t *testing.T) {
	r, _ := newParser(t)
	col := grid.Column{ID: "latitude", Title: "Latitude", Type: grid.TypeDecimal}

	v, _, ok := r.parseField(context.Background(), col, "38.9")
	if !ok {
		t.Fatal("valid decimal rejected")
	}
	if f, _ := v.DecimalValue(); f != 38.9 {
		t.Errorf("value = %g", f)
	}
	if _, warn, ok := r.parseField(context.Background(), col, "north"); ok || warn == "" {
		t.Error("unparsable decimal must fail with a warning")
	}
}

func TestParseStringList(t *testing.T) {
	r, _ := newParser(t)
	col := grid.Column{ID: "aka", Title: "Also known as", Type: grid.TypeStringList}

	v, _, ok := r.parseField(context.Background(), col, "Southwestern Pomo, Kashia , ")
	if !ok {
		t.Fatal("list rejected")
	}
	got := v.StringListValue()
	if len(got) != 2 || got[0] != "Southwestern Pomo" || got[1] != "Kashia" {
		t.Errorf("list = %v", got)
	}
}

func TestParseReferenceLookup(t *testing.T) {
	r, m := newParser(t)
	m.Seed("9", map[string]grid.CellContent{
		"glottocode": grid.Content(grid.Text("pomo1273")),
		"name":       grid.Content(grid.Text("Pomoan")),
	})
	col := grid.Column{ID: "parent", Title: "Parent", Type: grid.TypeReference, RefTarget: "languoid"}

	// By natural key.
	v, _, _ := r.parseField(context.Background(), col, "pomo1273")
	if ref, _ := v.ReferenceValue(); ref.ID != "9" || ref.Label != "Pomoan" {
		t.Errorf("by key: %+v", ref)
	}
	// By name.
	v, _, _ = r.parseField(context.Background(), col, "Pomoan")
	if ref, _ := v.ReferenceValue(); ref.ID != "9" {
		t.Errorf("by name: %+v", ref)
	}
	// Miss stays unresolved with a warning, never an error.
	v, warn, ok := r.parseField(context.Background(), col, "Atlantis")
	if !ok || warn == "" {
		t.Fatalf("unresolved reference: ok=%v warn=%q", ok, warn)
	}
	if ref, _ := v.ReferenceValue(); ref.Resolved() || ref.Label != "Atlantis" {
		t.Errorf("unresolved ref = %+v", ref)
	}
}

func TestParseMultiReference(t *testing.T) {
	r, m := newParser(t)
	m.Seed("1", map[string]grid.CellContent{"name": grid.Content(grid.Text("North America"))})
	m.Seed("2", map[string]grid.CellContent{"name": grid.Content(grid.Text("Eurasia"))})
	col := grid.Column{ID: "macroareas", Title: "Macroareas", Type: grid.TypeMultiReference}

	v, warn, ok := r.parseField(context.Background(), col, "North America, Eurasia, Lemuria")
	if !ok {
		t.Fatal("multi-reference rejected")
	}
	refs := v.ReferencesValue()
	if len(refs) != 3 {
		t.Fatalf("refs = %v", refs)
	}
	if refs[0].ID != "1" || refs[1].ID != "2" {
		t.Errorf("resolved refs = %+v", refs[:2])
	}
	if refs[2].Resolved() || warn == "" {
		t.Errorf("unknown entry must stay unresolved with a warning: %+v %q", refs[2], warn)
	}
}

func TestMappingAliases(t *testing.T) {
	m := NewMapping(testColumns())

	if id, ok := m.Resolve("Glottocode"); !ok || id != "glottocode" {
		t.Errorf("title resolve: %q %v", id, ok)
	}
	if id, ok := m.Resolve("also known as"); !ok || id != "aka" {
		t.Errorf("multi-word title resolve: %q %v", id, ok)
	}
	if _, ok := m.Resolve("Glotto_Code"); ok {
		t.Fatal("unknown header resolved before alias load")
	}

	yaml := "Glotto_Code: glottocode\nLat: latitude\n"
	if err := m.LoadAliases(strings.NewReader(yaml), testColumns()); err != nil {
		t.Fatal(err)
	}
	if id, ok := m.Resolve("glotto code"); !ok || id != "glottocode" {
		t.Errorf("alias resolve: %q %v", id, ok)
	}

	bad := "Header: nonexistent\n"
	if err := m.LoadAliases(strings.NewReader(bad), testColumns()); err == nil {
		t.Fatal("alias to unknown column must be rejected")
	}
}
