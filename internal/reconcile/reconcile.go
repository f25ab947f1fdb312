// Package reconcile maps parsed import files onto the working set: updates to
// loaded rows, patches to store records not yet loaded, and new draft rows.
// The whole outcome is one batch command, so one undo reverts an import.
package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"arked/internal/grid"
	"arked/internal/history"
	"arked/internal/importfile"
	"arked/internal/store"
)

// Warning is a non-blocking problem found while reconciling, tied to the
// 1-based file line it came from.
type Warning struct {
	Line    int
	Message string
}

// Result is the reconciliation outcome. Command is nil when the file changes
// nothing. Side effects that are not undoable (selection, collision flags)
// are listed separately and applied by Apply.
type Result struct {
	Command   *history.BatchCommand
	Added     []string
	Modified  []string
	Unchanged []string
	// Select lists every row the import touched or confirmed, marked for
	// the next save.
	Select []string
	// Flags are name-collision warnings surfaced on the cell: the new row's
	// display name belongs to an existing record under a different key.
	Flags    []history.CellRef
	Targets  []history.CellRef
	Warnings []Warning
}

// Apply executes the command and the non-command side effects.
func (res *Result) Apply(engine *history.Engine, ds *grid.Dataset) error {
	if res.Command != nil {
		if err := engine.Execute(res.Command); err != nil {
			return fmt.Errorf("applying import: %w", err)
		}
	}
	for _, id := range res.Select {
		ds.SetSelected(id, true)
	}
	for _, f := range res.Flags {
		ds.SetConflict(f.RowID, f.ColumnID, true)
	}
	return nil
}

// Summary renders the status-bar line for the import.
func (res *Result) Summary() string {
	return fmt.Sprintf("%d new, %d updated, %d unchanged", len(res.Added), len(res.Modified), len(res.Unchanged))
}

// Reconciler matches file rows to records. Store lookups go through an
// injected cache so re-importing a large file stays cheap.
type Reconciler struct {
	ds      *grid.Dataset
	store   store.Store
	cache   *store.Cache
	mapping *Mapping

	idColumn   string
	keyColumn  string
	nameColumn string
}

// NewReconciler builds a reconciler over the dataset and store. The id,
// natural-key and display-name columns are derived from the schema.
func NewReconciler(ds *grid.Dataset, s store.Store, mapping *Mapping) *Reconciler {
	r := &Reconciler{ds: ds, store: s, cache: store.NewCache(s, 0), mapping: mapping}
	for _, c := range ds.Columns() {
		if c.Type == grid.TypeReadOnly && r.idColumn == "" {
			r.idColumn = c.ID
		}
		if c.NaturalKey && r.keyColumn == "" {
			r.keyColumn = c.ID
		}
		if c.Type == grid.TypeText && c.Required && !c.NaturalKey && r.nameColumn == "" {
			r.nameColumn = c.ID
		}
	}
	return r
}

// Cache exposes the lookup cache so the owner can invalidate it after saves.
func (r *Reconciler) Cache() *store.Cache { return r.cache }

type binding struct {
	index int
	col   grid.Column
}

// Reconcile matches every file row against the working set and the store.
// Per row: a loaded match is diffed in place; a store-only match is
// materialized and diffed; anything else becomes a new draft row with a
// pre-allocated identifier. Identifier pre-allocation is computed once for
// the whole batch, above both the store's and the working set's maximum.
func (r *Reconciler) Reconcile(ctx context.Context, table *importfile.Table) (*Result, error) {
	var bindings []binding
	seen := make(map[string]bool)
	for i, h := range table.Headers {
		id, ok := r.mapping.Resolve(h)
		if !ok || seen[id] {
			continue
		}
		col, ok := r.ds.Column(id)
		if !ok || col.ReadOnly() {
			continue
		}
		seen[id] = true
		bindings = append(bindings, binding{index: i, col: col})
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("import file has no recognized columns")
	}

	serverMax, err := r.store.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store id watermark: %w", err)
	}
	nextID := serverMax
	if memMax := r.ds.MaxNumericValue(r.idColumn); memMax > nextID {
		nextID = memMax
	}
	nextID++

	res := &Result{}
	cmd := &history.BatchCommand{}
	pendingKeys := make(map[string]bool)  // natural keys claimed by this batch
	materialized := make(map[string]bool) // store ids already pulled in

	for i, raw := range table.Rows {
		line := i + 2 // 1-based, after the header

		parsed := make(map[string]grid.Value, len(bindings))
		nonEmpty := 0
		for _, b := range bindings {
			v, warn, ok := r.parseField(ctx, b.col, raw[b.index])
			if warn != "" {
				res.Warnings = append(res.Warnings, Warning{Line: line, Message: warn})
			}
			if !ok {
				continue
			}
			parsed[b.col.ID] = v
			if !v.IsEmpty() {
				nonEmpty++
			}
		}
		if nonEmpty == 0 {
			continue
		}

		var key string
		if r.keyColumn != "" {
			if v, ok := parsed[r.keyColumn]; ok && !v.IsEmpty() {
				key = v.String()
			}
		}
		if key != "" && pendingKeys[key] {
			res.Warnings = append(res.Warnings, Warning{Line: line, Message: fmt.Sprintf("duplicate row for %s %q ignored", r.keyColumn, key)})
			continue
		}

		matched, rec, err := r.match(ctx, key, parsed)
		if err != nil {
			return nil, err
		}

		switch {
		case matched != nil:
			changes := r.diff(matched, parsed)
			if len(changes) == 0 {
				res.Unchanged = append(res.Unchanged, matched.ID)
			} else {
				cmd.Changes = append(cmd.Changes, changes...)
				res.Modified = append(res.Modified, matched.ID)
				res.Targets = append(res.Targets, targets(changes)...)
			}
			res.Select = append(res.Select, matched.ID)

		case rec != nil:
			if materialized[rec.ID] {
				res.Warnings = append(res.Warnings, Warning{Line: line, Message: fmt.Sprintf("record %s already imported earlier in this file", rec.ID)})
				continue
			}
			row := grid.LoadRow(rec.ID, r.ds.Columns(), rec.Cells, rec.Updated)
			changes := r.diff(row, parsed)
			if len(changes) == 0 {
				// Present in the store and identical; nothing to load.
				res.Unchanged = append(res.Unchanged, rec.ID)
				continue
			}
			materialized[rec.ID] = true
			row.IsSelected = true
			cmd.AddedRows = append(cmd.AddedRows, row)
			cmd.Changes = append(cmd.Changes, changes...)
			res.Modified = append(res.Modified, rec.ID)
			res.Select = append(res.Select, rec.ID)
			res.Targets = append(res.Targets, targets(changes)...)

		default:
			// Identifiers supplied by the file are ignored for new rows;
			// the batch allocates its own, strictly increasing.
			displayID := strconv.FormatInt(nextID, 10)
			nextID++
			row := grid.NewDraftRow(r.ds.Columns(), r.idColumn, displayID)
			row.IsSelected = true
			changes := r.diff(row, parsed)
			cmd.AddedRows = append(cmd.AddedRows, row)
			cmd.Changes = append(cmd.Changes, changes...)
			res.Added = append(res.Added, row.ID)
			res.Select = append(res.Select, row.ID)
			res.Targets = append(res.Targets, targets(changes)...)
			if key != "" {
				pendingKeys[key] = true
			}
			r.flagNameCollision(ctx, res, row.ID, line, parsed)
		}
	}

	if len(cmd.AddedRows) > 0 || len(cmd.Changes) > 0 {
		cmd.Desc = fmt.Sprintf("import %d rows", len(res.Added)+len(res.Modified))
		res.Command = cmd
	}
	return res, nil
}

// match resolves the row to update: the natural key wins when the file
// supplies one; a key that is known nowhere makes the row new rather than
// falling back to name matching. Rows without a key match by display name.
func (r *Reconciler) match(ctx context.Context, key string, parsed map[string]grid.Value) (*grid.Row, *store.Record, error) {
	if key != "" {
		if row := r.ds.FindByCell(r.keyColumn, grid.Text(key), ""); row != nil {
			return row, nil, nil
		}
		rec, err := r.cache.ByKey(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("looking up %s %q: %w", r.keyColumn, key, err)
		}
		return nil, rec, nil
	}
	if r.nameColumn == "" {
		return nil, nil, nil
	}
	v, ok := parsed[r.nameColumn]
	if !ok || v.IsEmpty() {
		return nil, nil, nil
	}
	if row := r.ds.FindByCell(r.nameColumn, v, ""); row != nil {
		return row, nil, nil
	}
	rec, err := r.cache.ByName(ctx, v.String())
	if err != nil {
		return nil, nil, fmt.Errorf("looking up name %q: %w", v.String(), err)
	}
	return nil, rec, nil
}

// diff computes the minimal change set for one row: only columns present in
// the file participate, blank file cells never clear a loaded value, and
// comparison is the type-aware equivalence (sets for lists, normalized
// scalars, identifier sets for reference lists).
func (r *Reconciler) diff(row *grid.Row, parsed map[string]grid.Value) []grid.CellChange {
	var changes []grid.CellChange
	for _, col := range r.ds.Columns() {
		v, ok := parsed[col.ID]
		if !ok || v.IsEmpty() {
			continue
		}
		cell, ok := row.Cell(col.ID)
		if !ok || cell.Value.Equivalent(v) {
			continue
		}
		changes = append(changes, grid.CellChange{
			RowID:    row.ID,
			ColumnID: col.ID,
			Old:      cell.Content(),
			New:      grid.Content(v),
		})
	}
	return changes
}

// flagNameCollision raises the non-blocking flag for a new row whose display
// name already belongs to a record with a different key.
func (r *Reconciler) flagNameCollision(ctx context.Context, res *Result, rowID string, line int, parsed map[string]grid.Value) {
	if r.nameColumn == "" {
		return
	}
	v, ok := parsed[r.nameColumn]
	if !ok || v.IsEmpty() {
		return
	}
	var existingID string
	if row := r.ds.FindByCell(r.nameColumn, v, rowID); row != nil {
		existingID = row.ID
	} else if rec, err := r.cache.ByName(ctx, v.String()); err == nil && rec != nil {
		existingID = rec.ID
	}
	if existingID == "" {
		return
	}
	res.Flags = append(res.Flags, history.CellRef{RowID: rowID, ColumnID: r.nameColumn})
	res.Warnings = append(res.Warnings, Warning{
		Line:    line,
		Message: fmt.Sprintf("name %q already belongs to record %s under a different %s", v.String(), existingID, r.keyColumn),
	})
}

func targets(changes []grid.CellChange) []history.CellRef {
	refs := make([]history.CellRef, len(changes))
	for i, ch := range changes {
		refs[i] = history.CellRef{RowID: ch.RowID, ColumnID: ch.ColumnID}
	}
	return refs
}
