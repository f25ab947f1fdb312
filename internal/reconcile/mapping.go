package reconcile

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"arked/internal/grid"
)

// Mapping resolves import file headers to column ids. Column ids and titles
// are recognized out of the box; operator-maintained aliases cover the rest
// (legacy export headers, localized spreadsheets).
type Mapping struct {
	aliases map[string]string
}

// NewMapping builds the default mapping for a column set.
func NewMapping(columns []grid.Column) *Mapping {
	m := &Mapping{aliases: make(map[string]string, len(columns)*2)}
	for _, c := range columns {
		m.aliases[normalizeHeader(c.ID)] = c.ID
		if c.Title != "" {
			m.aliases[normalizeHeader(c.Title)] = c.ID
		}
	}
	return m
}

// AddAlias registers one extra header for a column.
func (m *Mapping) AddAlias(header, columnID string) {
	m.aliases[normalizeHeader(header)] = columnID
}

// Resolve maps a file header to a column id.
func (m *Mapping) Resolve(header string) (string, bool) {
	id, ok := m.aliases[normalizeHeader(header)]
	return id, ok
}

// LoadAliases reads a YAML alias map (header -> column id) and merges it in.
// Aliases naming unknown columns are rejected so a typo in the config file
// surfaces immediately instead of silently dropping a column.
func (m *Mapping) LoadAliases(r io.Reader, columns []grid.Column) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading alias file: %w", err)
	}
	var aliases map[string]string
	if err := yaml.Unmarshal(raw, &aliases); err != nil {
		return fmt.Errorf("parsing alias file: %w", err)
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c.ID] = true
	}
	for header, columnID := range aliases {
		if !known[columnID] {
			return fmt.Errorf("alias %q maps to unknown column %q", header, columnID)
		}
		m.AddAlias(header, columnID)
	}
	return nil
}

// normalizeHeader folds case and treats underscores, dashes and runs of
// whitespace as a single separator, so "Glotto_Code" and "glotto code" meet.
func normalizeHeader(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
