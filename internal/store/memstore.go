package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"arked/internal/grid"
)

// MemStore is an in-memory Store. It backs tests, and enforces the same
// rules as the SQL implementation: unique natural keys and resolvable
// references.
type MemStore struct {
	mu      sync.Mutex
	columns []grid.Column
	records map[string]*Record
	nextID  int64
	now     func() time.Time

	keyColumn string

	// Lookups counts store round-trips per method, for cache tests.
	Lookups map[string]int
}

// NewMemStore builds an empty in-memory store over the dataset schema.
func NewMemStore(columns []grid.Column) *MemStore {
	m := &MemStore{
		columns: columns,
		records: make(map[string]*Record),
		nextID:  0,
		now:     time.Now,
		Lookups: make(map[string]int),
	}
	for _, c := range columns {
		if c.NaturalKey && m.keyColumn == "" {
			m.keyColumn = c.ID
		}
	}
	return m
}

// Seed inserts a record with a chosen id, bypassing validation. The id also
// raises the store's max id watermark.
func (m *MemStore) Seed(id string, cells map[string]grid.CellContent) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &Record{ID: id, Cells: copyCells(cells), Updated: m.now()}
	rec.Cells[IDColumn] = grid.Content(grid.ReadOnlyText(id))
	m.records[id] = rec
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > m.nextID {
		m.nextID = n
	}
	return rec
}

// SetUpdated overrides a record's last-modified marker, for conflict tests.
func (m *MemStore) SetUpdated(id string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		rec.Updated = t
	}
}

// Patch overwrites fields of a stored record directly, simulating a
// concurrent edit by another operator.
func (m *MemStore) Patch(id string, cells map[string]grid.CellContent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return
	}
	for k, v := range cells {
		rec.Cells[k] = v
	}
	rec.Updated = m.now()
}

// List implements Store.
func (m *MemStore) List(ctx context.Context) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.ParseInt(ids[i], 10, 64)
		b, berr := strconv.ParseInt(ids[j], 10, 64)
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneRecord(m.records[id]))
	}
	return out, nil
}

// Get implements Store.
func (m *MemStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups["get"]++
	return cloneRecord(m.records[id]), nil
}

// LookupByKey implements Store.
func (m *MemStore) LookupByKey(ctx context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups["key"]++
	if m.keyColumn == "" {
		return nil, fmt.Errorf("no natural key column configured")
	}
	for _, rec := range m.records {
		if c, ok := rec.Cells[m.keyColumn]; ok && c.Value.String() == key {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// LookupByName implements Store.
func (m *MemStore) LookupByName(ctx context.Context, name string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups["name"]++
	want := normalizeName(name)
	for _, rec := range m.records {
		if c, ok := rec.Cells["name"]; ok && normalizeName(c.Value.String()) == want {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// MaxID implements Store.
func (m *MemStore) MaxID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID, nil
}

// SaveBatch implements Store. Each row is accepted or rejected on its own;
// a natural-key collision rejects the row without failing the batch.
func (m *MemStore) SaveBatch(ctx context.Context, rows []RowPayload) (*SaveReport, error) {
	report := &SaveReport{}
	for _, row := range rows {
		saved, err := m.saveOne(row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{LocalID: row.ID, Message: err.Error()})
			continue
		}
		report.Saved = append(report.Saved, saved)
	}
	return report, nil
}

func (m *MemStore) saveOne(row RowPayload) (SavedRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keyColumn != "" {
		if c, ok := row.Cells[m.keyColumn]; ok && !c.Value.IsEmpty() {
			for id, rec := range m.records {
				if row.Draft || id != row.ID {
					if existing, ok := rec.Cells[m.keyColumn]; ok && existing.Value.String() == c.Value.String() {
						return SavedRow{}, fmt.Errorf("%s %q is already in use", m.keyColumn, c.Value.String())
					}
				}
			}
		}
	}

	var rec *Record
	var id string
	if row.Draft {
		m.nextID++
		id = strconv.FormatInt(m.nextID, 10)
		rec = &Record{ID: id, Cells: make(map[string]grid.CellContent)}
		rec.Cells[IDColumn] = grid.Content(grid.ReadOnlyText(id))
		m.records[id] = rec
	} else {
		id = row.ID
		rec = m.records[id]
		if rec == nil {
			return SavedRow{}, fmt.Errorf("row %s no longer exists", id)
		}
	}
	for k, v := range row.Cells {
		rec.Cells[k] = v
	}
	rec.Updated = m.now()
	return SavedRow{LocalID: row.ID, ID: id, Record: cloneRecord(rec)}, nil
}

// ValidateField implements Store.
func (m *MemStore) ValidateField(ctx context.Context, field string, value grid.Value, rowID string) (FieldCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups["validate"]++

	var col *grid.Column
	for i := range m.columns {
		if m.columns[i].ID == field {
			col = &m.columns[i]
			break
		}
	}
	if col == nil {
		return FieldCheck{}, fmt.Errorf("unknown field %q", field)
	}
	if value.IsEmpty() {
		return FieldCheck{Valid: true}, nil
	}

	if col.Unique {
		for id, rec := range m.records {
			if id == rowID {
				continue
			}
			if c, ok := rec.Cells[field]; ok && c.Value.Equivalent(value) {
				return FieldCheck{Message: fmt.Sprintf("%s %q is already in use", field, value.String())}, nil
			}
		}
	}

	if col.Type == grid.TypeReference {
		ref, ok := value.ReferenceValue()
		if ok {
			found := false
			for id, rec := range m.records {
				if ref.Resolved() && id == ref.ID {
					found = true
					break
				}
				if !ref.Resolved() {
					if c, ok := rec.Cells[m.keyColumn]; ok && c.Value.String() == ref.Label {
						found = true
						break
					}
					if c, ok := rec.Cells["name"]; ok && normalizeName(c.Value.String()) == normalizeName(ref.Label) {
						found = true
						break
					}
				}
			}
			if !found {
				return FieldCheck{Message: fmt.Sprintf("referenced %s %q not found", col.RefTarget, ref.Label)}, nil
			}
		}
	}

	return FieldCheck{Valid: true}, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func copyCells(cells map[string]grid.CellContent) map[string]grid.CellContent {
	out := make(map[string]grid.CellContent, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	return out
}

func cloneRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	return &Record{ID: rec.ID, Cells: copyCells(rec.Cells), Updated: rec.Updated}
}
