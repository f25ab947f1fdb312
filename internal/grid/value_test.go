package grid

import "testing"

func TestValueEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{
			name: "string lists compare as sets",
			a:    StringList([]string{"b", "a"}),
			b:    StringList([]string{"a", "b"}),
			want: true,
		},
		{
			name: "string list subset is not equal",
			a:    StringList([]string{"a"}),
			b:    StringList([]string{"a", "b"}),
			want: false,
		},
		{
			name: "text compares whitespace normalized",
			a:    Text("  Central   Pomo "),
			b:    Text("central pomo"),
			want: true,
		},
		{
			name: "different text",
			a:    Text("Eastern Pomo"),
			b:    Text("Central Pomo"),
			want: false,
		},
		{
			name: "reference lists compare by identifier set",
			a:    References([]Ref{{ID: "2", Label: "Two"}, {ID: "1", Label: "One"}}),
			b:    References([]Ref{{ID: "1", Label: "one"}, {ID: "2", Label: "TWO"}}),
			want: true,
		},
		{
			name: "unresolved references fall back to label",
			a:    References([]Ref{{Label: "Pomoan"}}),
			b:    References([]Ref{{Label: "pomoan"}}),
			want: true,
		},
		{
			name: "empty representations are equivalent",
			a:    Null(TypeStringList),
			b:    StringList(nil),
			want: true,
		},
		{
			name: "empty and non-empty differ",
			a:    Null(TypeText),
			b:    Text("x"),
			want: false,
		},
		{
			name: "type mismatch never equivalent",
			a:    Text("1.5"),
			b:    Decimal(1.5),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equivalent(tt.b); got != tt.want {
				t.Errorf("Equivalent() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equivalent(tt.a); got != tt.want {
				t.Errorf("Equivalent() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueEqualIsStrict(t *testing.T) {
	if Text("A").Equal(Text("a")) {
		t.Error("strict equality must not normalize case")
	}
	if StringList([]string{"b", "a"}).Equal(StringList([]string{"a", "b"})) {
		t.Error("strict equality must preserve list order")
	}
	if !References([]Ref{{ID: "1", Label: "One"}}).Equal(References([]Ref{{ID: "1", Label: "One"}})) {
		t.Error("identical reference lists must be equal")
	}
	if Null(TypeDecimal).Equal(Decimal(0)) {
		t.Error("null decimal must differ from zero")
	}
}

func TestValueIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"empty text", Text(""), true},
		{"null decimal", Null(TypeDecimal), true},
		{"zero decimal is set", Decimal(0), false},
		{"false bool is set", Bool(false), false},
		{"empty reference list", References(nil), true},
		{"empty string list", StringList(nil), true},
		{"null reference", Null(TypeReference), true},
		{"resolved reference", Reference(Ref{ID: "1", Label: "One"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullKeepsListRepresentation(t *testing.T) {
	if got := Null(TypeMultiReference).ReferencesValue(); got == nil || len(got) != 0 {
		t.Errorf("null multi-reference should be an empty array, got %v", got)
	}
	if got := Null(TypeStringList).StringListValue(); got == nil || len(got) != 0 {
		t.Errorf("null string list should be an empty array, got %v", got)
	}
}
