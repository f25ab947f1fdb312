package main

import (
	"testing"
)

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		search    string
		text      string
		matches   bool
		positions []int
	}{
		{"kas", "Kashaya (kash1280)", true, []int{0, 1, 2}},
		{"k12", "Kashaya (kash1280)", true, []int{0, 13, 14}},
		{"KASH", "kashaya", true, []int{0, 1, 2, 3}},
		{"xyz", "Kashaya", false, nil},
		{"", "Kashaya", true, nil},
		{"aya", "Kashaya", true, []int{4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.search+":"+tt.text, func(t *testing.T) {
			matches, positions := fuzzyMatch(tt.search, tt.text)
			if matches != tt.matches {
				t.Fatalf("fuzzyMatch(%q, %q) = %v, expected %v", tt.search, tt.text, matches, tt.matches)
			}
			if len(positions) != len(tt.positions) {
				t.Fatalf("positions = %v, expected %v", positions, tt.positions)
			}
			for i := range positions {
				if positions[i] != tt.positions[i] {
					t.Errorf("positions = %v, expected %v", positions, tt.positions)
					break
				}
			}
		})
	}
}

func TestRefOptionDisplayText(t *testing.T) {
	tests := []struct {
		opt      RefOption
		expected string
	}{
		{RefOption{ID: "1", Label: "Kashaya", Key: "kash1280"}, "Kashaya (kash1280)"},
		{RefOption{ID: "2", Label: "Pomoan"}, "Pomoan"},
	}

	for _, tt := range tests {
		if got := tt.opt.displayText(); got != tt.expected {
			t.Errorf("displayText() = %q, expected %q", got, tt.expected)
		}
	}
}

func TestCalculateFiltered(t *testing.T) {
	items := []RefOption{
		{ID: "1", Label: "Kashaya", Key: "kash1280"},
		{ID: "2", Label: "Southern Pomo", Key: "sout2984"},
		{ID: "3", Label: "Central Pomo", Key: "cent2138"},
		{ID: "4", Label: "Pomoan", Key: "pomo1273"},
	}

	fs := NewFuzzySelector(items, nil, nil)

	tests := []struct {
		search   string
		expected []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"pomo", []string{"2", "3", "4"}},
		{"kash", []string{"1"}},
		{"zzz", nil},
		// Key text takes part in matching too
		{"2984", []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			filtered, positions := fs.calculateFiltered(tt.search)
			if len(filtered) != len(tt.expected) {
				t.Fatalf("search %q: expected %d results, got %d", tt.search, len(tt.expected), len(filtered))
			}
			for i, id := range tt.expected {
				if filtered[i].ID != id {
					t.Errorf("search %q: at position %d, expected id %q, got %q", tt.search, i, id, filtered[i].ID)
				}
			}
			if len(positions) != len(filtered) {
				t.Errorf("search %q: %d position entries for %d results", tt.search, len(positions), len(filtered))
			}
		})
	}
}

func TestFormatOptionWithColor(t *testing.T) {
	got := formatOptionWithColor("abc", []int{1})
	expected := "a[darkgreen::b]b[-::-]c"
	if got != expected {
		t.Errorf("formatOptionWithColor = %q, expected %q", got, expected)
	}

	if got := formatOptionWithColor("abc", nil); got != "abc" {
		t.Errorf("no positions should return text unchanged, got %q", got)
	}
}
