// Package validate runs per-cell validation asynchronously: debounced per
// (row, column) key, superseded results discarded, outcomes written back as
// cell state rather than raised as errors.
package validate

import (
	"context"
	"fmt"
	"strings"

	"arked/internal/grid"
	"arked/internal/store"
)

// Rules evaluates one field value against the local rules and the
// authoritative store's rules. Local checks run first so obvious problems
// don't cost a round trip.
type Rules struct {
	ds    *grid.Dataset
	store store.Store
}

// NewRules builds the rule set over the working dataset and the store.
func NewRules(ds *grid.Dataset, s store.Store) *Rules {
	return &Rules{ds: ds, store: s}
}

// Check evaluates value for the cell at (rowID, columnID). It returns Valid
// or Invalid plus a message; it never returns Validating.
func (r *Rules) Check(ctx context.Context, rowID, columnID string, value grid.Value) (grid.ValidationState, string) {
	col, ok := r.ds.Column(columnID)
	if !ok || col.ReadOnly() {
		return grid.Valid, ""
	}

	if value.IsEmpty() {
		// Required fields are only enforced on rows that hold something:
		// fully blank trailing rows are never flagged.
		if col.Required {
			if row := r.ds.Row(rowID); row != nil && !row.IsEmpty() {
				return grid.Invalid, fmt.Sprintf("%s is required", col.Title)
			}
		}
		return grid.Valid, ""
	}

	switch col.Type {
	case grid.TypeDecimal:
		if col.HasBounds {
			if f, ok := value.DecimalValue(); ok && (f < col.Min || f > col.Max) {
				return grid.Invalid, fmt.Sprintf("%s must be between %g and %g", col.Title, col.Min, col.Max)
			}
		}
	case grid.TypeSelect:
		if len(col.Options) > 0 && !containsFold(col.Options, value.TextValue()) {
			return grid.Invalid, fmt.Sprintf("%s must be one of: %s", col.Title, strings.Join(col.Options, ", "))
		}
	case grid.TypeReference:
		if ref, ok := value.ReferenceValue(); ok {
			if r.isSelfReference(rowID, ref) {
				return grid.Invalid, fmt.Sprintf("%s cannot reference the record itself", col.Title)
			}
		}
	}

	if col.Unique {
		if other := r.ds.FindByCell(columnID, value, rowID); other != nil {
			return grid.Invalid, fmt.Sprintf("%s %q is already used by another row", col.Title, value.String())
		}
	}

	if r.store != nil && (col.Unique || col.Type == grid.TypeReference) {
		check, err := r.store.ValidateField(ctx, columnID, value, rowID)
		if err != nil {
			return grid.Invalid, fmt.Sprintf("could not validate %s: %v", col.Title, err)
		}
		if !check.Valid {
			return grid.Invalid, check.Message
		}
	}

	return grid.Valid, ""
}

// isSelfReference reports whether ref points back at the row that holds it,
// by server id, natural key, or name.
func (r *Rules) isSelfReference(rowID string, ref grid.Ref) bool {
	if ref.Resolved() && ref.ID == rowID {
		return true
	}
	row := r.ds.Row(rowID)
	if row == nil || ref.Label == "" {
		return false
	}
	label := grid.Text(ref.Label)
	for _, col := range r.ds.Columns() {
		if !col.NaturalKey && col.ID != "name" {
			continue
		}
		if c, ok := row.Cell(col.ID); ok && !c.Value.IsEmpty() {
			if grid.Text(c.Value.String()).Equivalent(label) {
				return true
			}
		}
	}
	return false
}

func containsFold(options []string, s string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}
