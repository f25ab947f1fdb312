package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"arked/internal/grid"
	"arked/internal/store"
)

// parseField turns one raw file field into the column's typed value. The
// third return is false when the raw text could not be parsed at all; the
// second carries a non-blocking warning either way.
func (r *Reconciler) parseField(ctx context.Context, col grid.Column, raw string) (grid.Value, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return grid.Null(col.Type), "", true
	}

	switch col.Type {
	case grid.TypeText:
		return grid.Text(raw), "", true

	case grid.TypeDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return grid.Null(col.Type), fmt.Sprintf("%s: %q is not a number", col.Title, raw), false
		}
		return grid.Decimal(f), "", true

	case grid.TypeBool:
		b, ok := parseBool(raw)
		if !ok {
			return grid.Null(col.Type), fmt.Sprintf("%s: %q is not a yes/no value", col.Title, raw), false
		}
		return grid.Bool(b), "", true

	case grid.TypeSelect:
		option, ok := matchOption(col.Options, raw)
		if !ok {
			return grid.Null(col.Type), fmt.Sprintf("%s: %q matches none of: %s", col.Title, raw, strings.Join(col.Options, ", ")), false
		}
		return grid.Select(option), "", true

	case grid.TypeStringList:
		return grid.StringList(splitList(raw)), "", true

	case grid.TypeReference:
		ref := r.resolveRef(ctx, raw)
		var warn string
		if !ref.Resolved() {
			warn = fmt.Sprintf("%s: %q not found, left unresolved", col.Title, raw)
		}
		return grid.Reference(ref), warn, true

	case grid.TypeMultiReference:
		var refs []grid.Ref
		var unresolved []string
		for _, part := range splitList(raw) {
			ref := r.resolveRef(ctx, part)
			if !ref.Resolved() {
				unresolved = append(unresolved, part)
			}
			refs = append(refs, ref)
		}
		var warn string
		if len(unresolved) > 0 {
			warn = fmt.Sprintf("%s: not found: %s", col.Title, strings.Join(unresolved, ", "))
		}
		return grid.References(refs), warn, true
	}

	// Read-only columns never parse from a file.
	return grid.Null(col.Type), "", false
}

// resolveRef turns raw text into a reference. Loaded persisted rows win, then
// the store by natural key, then by name. Draft rows and misses yield an
// unresolved reference carrying the raw text; it resolves on a later import
// or edit once the target is persisted.
func (r *Reconciler) resolveRef(ctx context.Context, raw string) grid.Ref {
	if row := r.findLoaded(raw); row != nil {
		if row.IsDraft {
			return grid.Ref{Label: raw}
		}
		return grid.Ref{ID: row.ID, Label: r.displayName(row, raw)}
	}
	if r.keyColumn != "" {
		if rec, err := r.cache.ByKey(ctx, raw); err == nil && rec != nil {
			return grid.Ref{ID: rec.ID, Label: r.recordName(rec, raw)}
		}
	}
	if rec, err := r.cache.ByName(ctx, raw); err == nil && rec != nil {
		return grid.Ref{ID: rec.ID, Label: r.recordName(rec, raw)}
	}
	return grid.Ref{Label: raw}
}

func (r *Reconciler) findLoaded(raw string) *grid.Row {
	if r.keyColumn != "" {
		if row := r.ds.FindByCell(r.keyColumn, grid.Text(raw), ""); row != nil {
			return row
		}
	}
	if r.nameColumn != "" {
		if row := r.ds.FindByCell(r.nameColumn, grid.Text(raw), ""); row != nil {
			return row
		}
	}
	return nil
}

func (r *Reconciler) displayName(row *grid.Row, fallback string) string {
	if r.nameColumn != "" {
		if c, ok := row.Cell(r.nameColumn); ok && !c.Value.IsEmpty() {
			return c.Value.String()
		}
	}
	return fallback
}

func (r *Reconciler) recordName(rec *store.Record, fallback string) string {
	if r.nameColumn != "" {
		if c, ok := rec.Cells[r.nameColumn]; ok && !c.Value.IsEmpty() {
			return c.Value.String()
		}
	}
	return fallback
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "t", "yes", "y", "1", "x":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// matchOption finds the canonical option for raw: exact case-insensitive
// match first, then a unique case-insensitive prefix.
func matchOption(options []string, raw string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(raw))
	for _, o := range options {
		if strings.ToLower(o) == want {
			return o, true
		}
	}
	var hit string
	var hits int
	for _, o := range options {
		if strings.HasPrefix(strings.ToLower(o), want) {
			hit = o
			hits++
		}
	}
	if hits == 1 {
		return hit, true
	}
	return "", false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
