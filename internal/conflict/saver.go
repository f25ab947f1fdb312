package conflict

import (
	"context"
	"fmt"
	"strings"

	"arked/internal/grid"
	"arked/internal/history"
	"arked/internal/store"
)

// Failure is one row that could not be saved, with an operator-facing reason.
type Failure struct {
	RowID   string
	Message string
}

// Outcome summarizes one save pass.
type Outcome struct {
	Saved  int
	Failed []Failure
	// Conflicted counts rows that had one or more fields withheld from the
	// payload because of an unresolved concurrent edit.
	Conflicted int
}

// Summary renders the status-bar line for the pass.
func (o *Outcome) Summary() string {
	var parts []string
	if o.Saved > 0 {
		parts = append(parts, fmt.Sprintf("%d saved", o.Saved))
	}
	if len(o.Failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", len(o.Failed)))
	}
	if o.Conflicted > 0 {
		parts = append(parts, fmt.Sprintf("%d in conflict", o.Conflicted))
	}
	if len(parts) == 0 {
		return "nothing to save"
	}
	return strings.Join(parts, ", ")
}

// Saver runs the save pipeline: review each row against the store, adopt
// non-overlapping remote changes, flag true conflicts and withhold only
// those fields, send the surviving payloads as one batch, then rekey created
// rows and rebase accepted ones. A conflicted field never blocks the rest of
// its row. Undo history is cleared only when every attempted row went
// through with nothing withheld.
type Saver struct {
	ds     *grid.Dataset
	store  store.Store
	detect *Detector
	engine *history.Engine
}

// NewSaver wires the pipeline.
func NewSaver(ds *grid.Dataset, s store.Store, engine *history.Engine) *Saver {
	return &Saver{ds: ds, store: s, detect: NewDetector(ds, s), engine: engine}
}

// Save attempts to persist the given rows. Rows are accepted or rejected
// independently; one bad row never blocks its siblings.
func (s *Saver) Save(ctx context.Context, rowIDs []string) (*Outcome, error) {
	out := &Outcome{}
	var payloads []store.RowPayload

	for _, rowID := range rowIDs {
		row := s.ds.Row(rowID)
		if row == nil {
			out.Failed = append(out.Failed, Failure{rowID, "row not found"})
			continue
		}
		if row.IsEmpty() {
			continue
		}
		if row.HasErrors() {
			out.Failed = append(out.Failed, Failure{rowID, "fix validation errors first"})
			continue
		}

		review, err := s.detect.Review(ctx, rowID)
		if err != nil {
			out.Failed = append(out.Failed, Failure{rowID, err.Error()})
			continue
		}
		if review.Missing {
			out.Failed = append(out.Failed, Failure{rowID, "record no longer exists on the server"})
			continue
		}
		s.detect.Apply(review)
		conflicted := len(review.Conflicts) > 0
		// Fields still flagged from an earlier pass are withheld too: an
		// unresolved conflict is never sent, resolved or not re-detected.
		if cur := s.ds.Row(rowID); cur != nil {
			for columnID := range review.Payload {
				if cell, ok := cur.Cell(columnID); ok && cell.HasConflict {
					delete(review.Payload, columnID)
					conflicted = true
				}
			}
		}
		if conflicted {
			out.Conflicted++
		}
		if len(review.Payload) == 0 {
			continue
		}
		payloads = append(payloads, store.RowPayload{
			ID:    rowID,
			Draft: row.IsDraft,
			Cells: review.Payload,
		})
	}

	if len(payloads) > 0 {
		report, err := s.store.SaveBatch(ctx, payloads)
		if err != nil {
			return out, fmt.Errorf("saving batch: %w", err)
		}
		for _, saved := range report.Saved {
			if saved.LocalID != saved.ID {
				if err := s.ds.Rekey(saved.LocalID, saved.ID); err != nil {
					return out, fmt.Errorf("rekeying row %s: %w", saved.LocalID, err)
				}
				if s.engine != nil {
					s.engine.Rekey(saved.LocalID, saved.ID)
				}
			}
			if saved.Record != nil {
				if err := s.ds.Rebase(saved.ID, saved.Record.Cells, saved.Record.Updated); err != nil {
					return out, fmt.Errorf("rebasing row %s: %w", saved.ID, err)
				}
			}
			s.ds.SetSelected(saved.ID, false)
			out.Saved++
		}
		for _, rowErr := range report.Errors {
			out.Failed = append(out.Failed, Failure{rowErr.LocalID, rowErr.Message})
		}
	}

	if len(out.Failed) == 0 && out.Conflicted == 0 && out.Saved > 0 && s.engine != nil {
		s.engine.Clear()
	}
	return out, nil
}
