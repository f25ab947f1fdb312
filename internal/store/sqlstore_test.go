package store

import (
	"context"
	"testing"

	"arked/internal/grid"
)

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name string
		v    grid.Value
		want any
	}{
		{"text", grid.Text("Kashaya"), "Kashaya"},
		{"null text is sql null", grid.Null(grid.TypeText), nil},
		{"empty text is sql null", grid.Text(""), nil},
		{"decimal", grid.Decimal(38.9), 38.9},
		{"bool true", grid.Bool(true), int64(1)},
		{"reference", grid.Reference(grid.Ref{ID: "9", Label: "Pomoan"}), `{"ID":"9","Label":"Pomoan"}`},
		{"empty list keeps json", grid.StringList(nil), `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeValue(tt.v)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("encodeValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeValueRoundTrip(t *testing.T) {
	values := []grid.Value{
		grid.Reference(grid.Ref{ID: "9", Label: "Pomoan"}),
		grid.References([]grid.Ref{{ID: "1", Label: "North America"}, {ID: "2", Label: "Eurasia"}}),
		grid.StringList([]string{"Kashaya", "Southwestern Pomo"}),
	}
	for _, v := range values {
		enc, err := encodeValue(v)
		if err != nil {
			t.Fatal(err)
		}
		dec, err := decodeValue(v.Type(), enc.(string))
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Equal(v) {
			t.Errorf("round trip of %s changed value: %s -> %s", v.Type(), v, dec)
		}
	}
}

func TestPlaceholderPerDriver(t *testing.T) {
	pg := &SQLStore{driver: PostgreSQL}
	if got := pg.placeholder(3); got != "$3" {
		t.Errorf("postgres placeholder = %q", got)
	}
	lite := &SQLStore{driver: SQLite}
	if got := lite.placeholder(3); got != "?" {
		t.Errorf("sqlite placeholder = %q", got)
	}
	my := &SQLStore{driver: MySQL}
	if got := my.quote("name"); got != "`name`" {
		t.Errorf("mysql quote = %q", got)
	}
}

func TestDetectDriver(t *testing.T) {
	if DetectDriver("langs.db") != SQLite {
		t.Error(".db should select sqlite")
	}
	if DetectDriver("archive") != PostgreSQL {
		t.Error("bare names should select postgres")
	}
}

func TestMemStoreSaveBatchPartialAcceptance(t *testing.T) {
	m := NewMemStore(cacheColumns())
	seedRecord(m, "1", "east2545", "Eastern Pomo")

	report, err := m.SaveBatch(context.Background(), []RowPayload{
		{
			ID: grid.NewDraftID(), Draft: true,
			Cells: map[string]grid.CellContent{
				"glottocode": grid.Content(grid.Text("kash1280")),
				"name":       grid.Content(grid.Text("Kashaya")),
			},
		},
		{
			ID: grid.NewDraftID(), Draft: true,
			Cells: map[string]grid.CellContent{
				// Collides with the seeded record's natural key.
				"glottocode": grid.Content(grid.Text("east2545")),
				"name":       grid.Content(grid.Text("Duplicate")),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Saved) != 1 || len(report.Errors) != 1 {
		t.Fatalf("saved=%d errors=%d, want 1 and 1", len(report.Saved), len(report.Errors))
	}
	if report.Saved[0].ID == report.Saved[0].LocalID {
		t.Error("created row must receive a server-assigned id distinct from its draft id")
	}
	if report.Saved[0].ID != "2" {
		t.Errorf("assigned id = %q, want above the seeded max", report.Saved[0].ID)
	}
}
