// Package conflict performs save-time concurrent-edit detection. Every save
// re-reads the authoritative record and compares each field three ways: the
// baseline captured at load time, the local value, and the remote value.
package conflict

import (
	"context"
	"fmt"

	"arked/internal/grid"
	"arked/internal/store"
)

// RowReview is the save-time verdict for one row.
type RowReview struct {
	RowID string
	// Missing is set when the record disappeared from the store since load.
	Missing bool
	// Payload holds the fields to send: locally edited, not conflicted.
	Payload map[string]grid.CellContent
	// Adopted lists fields whose remote change was taken silently because
	// the operator never touched them locally.
	Adopted []string
	// Conflicts lists fields changed both locally and remotely to different
	// values. They are excluded from Payload and flagged on the cell.
	Conflicts []string
	// Remote is the record as re-read at review time; nil for drafts.
	Remote *store.Record
}

// Detector reviews rows against the store before a save.
type Detector struct {
	ds    *grid.Dataset
	store store.Store
}

// NewDetector builds a detector over the dataset and store.
func NewDetector(ds *grid.Dataset, s store.Store) *Detector {
	return &Detector{ds: ds, store: s}
}

// Review builds the save-time verdict for one row. It only reads; Apply
// writes the adopted values and conflict flags back into the dataset.
func (d *Detector) Review(ctx context.Context, rowID string) (*RowReview, error) {
	row := d.ds.Row(rowID)
	if row == nil {
		return nil, fmt.Errorf("row %q not found", rowID)
	}
	review := &RowReview{RowID: rowID, Payload: make(map[string]grid.CellContent)}

	if row.IsDraft {
		// Drafts have nothing to compare against: send every non-empty
		// writable field.
		for _, col := range d.ds.Columns() {
			if col.ReadOnly() {
				continue
			}
			if cell, ok := row.Cell(col.ID); ok && !cell.Value.IsEmpty() {
				review.Payload[col.ID] = cell.Content()
			}
		}
		return review, nil
	}

	remote, err := d.store.Get(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("re-reading row %s: %w", rowID, err)
	}
	if remote == nil {
		review.Missing = true
		return review, nil
	}
	review.Remote = remote

	// Unchanged on the server since load: every local edit goes through.
	if !remote.Updated.After(row.BaselineTime) {
		for _, col := range d.ds.Columns() {
			if col.ReadOnly() {
				continue
			}
			if cell, ok := row.Cell(col.ID); ok && cell.IsEdited() {
				review.Payload[col.ID] = cell.Content()
			}
		}
		return review, nil
	}

	for _, col := range d.ds.Columns() {
		if col.ReadOnly() {
			continue
		}
		cell, ok := row.Cell(col.ID)
		if !ok {
			continue
		}
		base := cell.Original
		local := cell.Value
		remoteVal := base
		if content, ok := remote.Cells[col.ID]; ok {
			remoteVal = content.Value
		}

		localChanged := !local.Equal(base)
		remoteChanged := !remoteVal.Equivalent(base)

		switch {
		case !remoteChanged:
			if localChanged {
				review.Payload[col.ID] = cell.Content()
			}
		case !localChanged:
			review.Adopted = append(review.Adopted, col.ID)
		case remoteVal.Equivalent(local):
			// Both sides made the same change; nothing to send, nothing to
			// flag, just rebase.
			review.Adopted = append(review.Adopted, col.ID)
		default:
			review.Conflicts = append(review.Conflicts, col.ID)
		}
	}
	return review, nil
}

// Apply writes a review's side effects into the dataset: adopted fields take
// the remote value and baseline, conflicted fields are flagged, and the row's
// baseline timestamp advances when nothing conflicted.
func (d *Detector) Apply(review *RowReview) {
	if review.Remote == nil {
		return
	}
	for _, columnID := range review.Adopted {
		content, ok := review.Remote.Cells[columnID]
		if !ok {
			continue
		}
		d.ds.AdoptBaseline(review.RowID, columnID, content)
	}
	for _, columnID := range review.Conflicts {
		d.ds.SetConflict(review.RowID, columnID, true)
	}
	if len(review.Conflicts) == 0 {
		d.ds.SetBaselineTime(review.RowID, review.Remote.Updated)
	}
}

// KeepLocal resolves a flagged conflict in favor of the local value: the
// remote value becomes the new baseline, so the local edit survives and will
// be sent on the next save.
func (d *Detector) KeepLocal(review *RowReview, columnID string) {
	if review.Remote == nil {
		return
	}
	if content, ok := review.Remote.Cells[columnID]; ok {
		d.ds.RebaseCell(review.RowID, columnID, content)
	}
	d.ds.SetConflict(review.RowID, columnID, false)
}

// AdoptRemote resolves a flagged conflict in favor of the remote value,
// discarding the local edit.
func (d *Detector) AdoptRemote(review *RowReview, columnID string) {
	if review.Remote == nil {
		return
	}
	if content, ok := review.Remote.Cells[columnID]; ok {
		d.ds.AdoptBaseline(review.RowID, columnID, content)
	}
	d.ds.SetConflict(review.RowID, columnID, false)
}
