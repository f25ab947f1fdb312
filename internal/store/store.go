// Package store talks to the authoritative record store. The engine treats
// every call as a fallible async operation with no assumed latency bound.
package store

import (
	"context"
	"time"

	"arked/internal/grid"
)

// Record is one persisted row as the store currently knows it.
type Record struct {
	ID      string
	Cells   map[string]grid.CellContent
	Updated time.Time
}

// FieldCheck is the outcome of a server-side field validation.
type FieldCheck struct {
	Valid   bool
	Message string
}

// RowPayload carries one row's fields to persist. Draft rows are created;
// the rest are updated in place. Cells holds only the fields to write;
// conflicted fields are excluded by the caller.
type RowPayload struct {
	ID    string
	Draft bool
	Cells map[string]grid.CellContent
}

// SavedRow reports one accepted row. For creates, ID is the server-assigned
// identifier replacing the draft's LocalID. Record is the row's state after
// the write, used to rebase the in-memory baseline.
type SavedRow struct {
	LocalID string
	ID      string
	Record  *Record
}

// RowError reports one rejected row in a partially accepted batch.
type RowError struct {
	LocalID string
	Message string
}

// SaveReport is the outcome of one SaveBatch call: the store may accept some
// rows and reject others.
type SaveReport struct {
	Saved  []SavedRow
	Errors []RowError
}

// Store is the narrow contract the engine depends on.
type Store interface {
	// List fetches every record ordered by identifier, for the initial
	// working-set load.
	List(ctx context.Context) ([]*Record, error)
	// Get fetches a record by its server id; nil when absent.
	Get(ctx context.Context, id string) (*Record, error)
	// LookupByKey fetches a record by its natural key; nil when absent.
	LookupByKey(ctx context.Context, key string) (*Record, error)
	// LookupByName fetches a record by normalized display name; nil when
	// absent.
	LookupByName(ctx context.Context, name string) (*Record, error)
	// MaxID returns the largest numeric identifier currently assigned.
	MaxID(ctx context.Context) (int64, error)
	// SaveBatch persists rows, reporting per-row acceptance.
	SaveBatch(ctx context.Context, rows []RowPayload) (*SaveReport, error)
	// ValidateField runs the server-side rules for one field value. rowID
	// identifies the row being edited so uniqueness checks exclude it.
	ValidateField(ctx context.Context, field string, value grid.Value, rowID string) (FieldCheck, error)
}
