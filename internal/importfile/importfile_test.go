package importfile

import (
	"strings"
	"testing"
)

func TestParseSquaresRaggedRows(t *testing.T) {
	in := "name,glottocode,level\nKashaya,kash1280,language,extra\nEastern Pomo\n"
	table, err := Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Headers) != 3 {
		t.Fatalf("headers = %v", table.Headers)
	}
	if table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", table.Len())
	}
	if got := table.Rows[0]; len(got) != 3 || got[2] != "language" {
		t.Errorf("long row not truncated: %v", got)
	}
	if got := table.Rows[1]; len(got) != 3 || got[1] != "" {
		t.Errorf("short row not padded: %v", got)
	}
}

func TestParseStripsBOMAndBlankLines(t *testing.T) {
	in := "\uFEFFname,level\n\nKashaya,language\n , \n"
	table, err := Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatal(err)
	}
	if table.Headers[0] != "name" {
		t.Errorf("BOM kept: %q", table.Headers[0])
	}
	if table.Len() != 1 {
		t.Errorf("blank rows kept: %d", table.Len())
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), ','); err == nil {
		t.Fatal("empty input must be rejected")
	}
}

func TestParseQuotedFields(t *testing.T) {
	in := "name,aka\n\"Kashaya\",\"Southwestern Pomo, Kashia\"\n"
	table, err := Parse(strings.NewReader(in), ',')
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Rows[0][1]; got != "Southwestern Pomo, Kashia" {
		t.Errorf("quoted field = %q", got)
	}
}

func TestDetectDelimiter(t *testing.T) {
	if DetectDelimiter("langs.tsv") != '\t' {
		t.Error("tsv must select tab")
	}
	if DetectDelimiter("langs.csv") != ',' {
		t.Error("csv must select comma")
	}
}
