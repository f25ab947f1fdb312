package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"arked/internal/grid"
)

// Driver selects the SQL backend behind the store.
type Driver int

const (
	SQLite Driver = iota
	PostgreSQL
	MySQL
)

// IDColumn and UpdatedColumn are the store-managed columns: the surrogate
// identifier and the last-modified marker used for conflict detection.
const (
	IDColumn      = "id"
	UpdatedColumn = "updated"
)

// Config describes the connection to the authoritative store.
type Config struct {
	Driver   Driver
	Database string
	Host     string
	Port     string
	Username string
	Password string
	Table    string
}

// DetectDriver infers the backend from the database name, as an explicit
// override is not always given.
func DetectDriver(database string) Driver {
	if strings.HasSuffix(database, ".sqlite") || strings.HasSuffix(database, ".db") {
		return SQLite
	}
	return PostgreSQL
}

func (c Config) connectionString() (string, error) {
	switch c.Driver {
	case SQLite:
		if _, err := os.Stat(c.Database); os.IsNotExist(err) {
			return "", fmt.Errorf("sqlite file does not exist: %s", c.Database)
		}
		return c.Database, nil

	case PostgreSQL:
		connStr := fmt.Sprintf("dbname=%s", c.Database)
		if c.Host != "" {
			connStr += fmt.Sprintf(" host=%s", c.Host)
		}
		if c.Port != "" {
			connStr += fmt.Sprintf(" port=%s", c.Port)
		}
		if c.Username != "" {
			connStr += fmt.Sprintf(" user=%s", c.Username)
		} else if currentUser, err := user.Current(); err == nil {
			connStr += fmt.Sprintf(" user=%s", currentUser.Username)
		}
		if c.Password != "" {
			connStr += fmt.Sprintf(" password=%s", c.Password)
		}
		connStr += " sslmode=disable"
		return connStr, nil

	case MySQL:
		connStr := c.Username
		if connStr == "" {
			if currentUser, err := user.Current(); err == nil {
				connStr = currentUser.Username
			}
		}
		if c.Password != "" {
			connStr += ":" + c.Password
		}
		connStr += "@"
		switch {
		case c.Host != "" && c.Port != "":
			connStr += fmt.Sprintf("tcp(%s:%s)", c.Host, c.Port)
		case c.Host != "":
			connStr += fmt.Sprintf("tcp(%s:3306)", c.Host)
		default:
			connStr += "tcp(localhost:3306)"
		}
		connStr += "/" + c.Database + "?parseTime=true"
		return connStr, nil

	default:
		return "", fmt.Errorf("unsupported driver")
	}
}

// Connect opens and pings the configured backend.
func (c Config) Connect() (*sql.DB, error) {
	connStr, err := c.connectionString()
	if err != nil {
		return nil, err
	}
	var driverName string
	switch c.Driver {
	case SQLite:
		driverName = "sqlite3"
	case PostgreSQL:
		driverName = "postgres"
	case MySQL:
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("unsupported driver")
	}
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}
	return db, nil
}

// SQLStore implements Store over database/sql. One table holds the dataset;
// list- and reference-typed fields are stored as JSON text.
type SQLStore struct {
	db      *sql.DB
	driver  Driver
	table   string
	columns []grid.Column

	keyColumn  string
	nameColumn string
	now        func() time.Time
}

// NewSQLStore builds a store over an open connection. columns is the dataset
// schema; the natural-key column is the one marked NaturalKey, and "name" is
// used for secondary name lookups when present.
func NewSQLStore(db *sql.DB, driver Driver, table string, columns []grid.Column) *SQLStore {
	s := &SQLStore{db: db, driver: driver, table: table, columns: columns, now: time.Now}
	for _, c := range columns {
		if c.NaturalKey && s.keyColumn == "" {
			s.keyColumn = c.ID
		}
		if c.ID == "name" {
			s.nameColumn = c.ID
		}
	}
	return s
}

// placeholder returns the parameter marker for position pos (1-based).
func (s *SQLStore) placeholder(pos int) string {
	if s.driver == PostgreSQL {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLStore) quote(ident string) string {
	if s.driver == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// dataColumns are the persisted fields, excluding the store-managed id and
// updated columns.
func (s *SQLStore) dataColumns() []grid.Column {
	out := make([]grid.Column, 0, len(s.columns))
	for _, c := range s.columns {
		if c.ID == IDColumn || c.ID == UpdatedColumn {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *SQLStore) selectList() string {
	cols := []string{s.quote(IDColumn)}
	for _, c := range s.dataColumns() {
		cols = append(cols, s.quote(c.ID))
	}
	cols = append(cols, s.quote(UpdatedColumn))
	return strings.Join(cols, ", ")
}

func (s *SQLStore) queryOne(ctx context.Context, where string, args ...any) (*Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.selectList(), s.quote(s.table), where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return s.scanRecord(rows)
}

func (s *SQLStore) scanRecord(rows *sql.Rows) (*Record, error) {
	data := s.dataColumns()
	var id int64
	var updated sql.NullString
	targets := make([]any, 0, len(data)+2)
	targets = append(targets, &id)
	raw := make([]sql.NullString, len(data))
	nums := make([]sql.NullFloat64, len(data))
	bools := make([]sql.NullInt64, len(data))
	for i, c := range data {
		switch c.Type {
		case grid.TypeDecimal:
			targets = append(targets, &nums[i])
		case grid.TypeBool:
			targets = append(targets, &bools[i])
		default:
			targets = append(targets, &raw[i])
		}
	}
	targets = append(targets, &updated)
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:    fmt.Sprintf("%d", id),
		Cells: make(map[string]grid.CellContent, len(data)+1),
	}
	rec.Cells[IDColumn] = grid.Content(grid.ReadOnlyText(rec.ID))
	for i, c := range data {
		var v grid.Value
		var err error
		switch c.Type {
		case grid.TypeDecimal:
			if nums[i].Valid {
				v = grid.Decimal(nums[i].Float64)
			} else {
				v = grid.Null(c.Type)
			}
		case grid.TypeBool:
			if bools[i].Valid {
				v = grid.Bool(bools[i].Int64 != 0)
			} else {
				v = grid.Null(c.Type)
			}
		default:
			if raw[i].Valid {
				v, err = decodeValue(c.Type, raw[i].String)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", c.ID, err)
				}
			} else {
				v = grid.Null(c.Type)
			}
		}
		rec.Cells[c.ID] = grid.Content(v)
	}
	if updated.Valid {
		if t, err := time.Parse(time.RFC3339Nano, updated.String); err == nil {
			rec.Updated = t
		}
	}
	rec.Cells[UpdatedColumn] = grid.Content(grid.ReadOnlyText(updated.String))
	return rec, nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context) ([]*Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", s.selectList(), s.quote(s.table), s.quote(IDColumn))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.queryOne(ctx, fmt.Sprintf("%s = %s", s.quote(IDColumn), s.placeholder(1)), id)
}

// LookupByKey implements Store.
func (s *SQLStore) LookupByKey(ctx context.Context, key string) (*Record, error) {
	if s.keyColumn == "" {
		return nil, fmt.Errorf("no natural key column configured")
	}
	return s.queryOne(ctx, fmt.Sprintf("%s = %s", s.quote(s.keyColumn), s.placeholder(1)), key)
}

// LookupByName implements Store. Matching is case- and whitespace-insensitive
// on the name column.
func (s *SQLStore) LookupByName(ctx context.Context, name string) (*Record, error) {
	if s.nameColumn == "" {
		return nil, fmt.Errorf("no name column configured")
	}
	where := fmt.Sprintf("LOWER(TRIM(%s)) = %s", s.quote(s.nameColumn), s.placeholder(1))
	return s.queryOne(ctx, where, strings.ToLower(strings.TrimSpace(name)))
}

// MaxID implements Store.
func (s *SQLStore) MaxID(ctx context.Context) (int64, error) {
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", s.quote(IDColumn), s.quote(s.table))
	var max int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

// SaveBatch implements Store: drafts are inserted, everything else updated.
// Rows are written independently so the batch can be partially accepted.
func (s *SQLStore) SaveBatch(ctx context.Context, rows []RowPayload) (*SaveReport, error) {
	report := &SaveReport{}
	for _, row := range rows {
		id, err := s.saveOne(ctx, row)
		if err != nil {
			report.Errors = append(report.Errors, RowError{LocalID: row.ID, Message: err.Error()})
			continue
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			report.Errors = append(report.Errors, RowError{LocalID: row.ID, Message: err.Error()})
			continue
		}
		report.Saved = append(report.Saved, SavedRow{LocalID: row.ID, ID: id, Record: rec})
	}
	return report, nil
}

func (s *SQLStore) saveOne(ctx context.Context, row RowPayload) (string, error) {
	now := s.now().UTC().Format(time.RFC3339Nano)

	cols := make([]string, 0, len(row.Cells)+1)
	args := make([]any, 0, len(row.Cells)+2)
	for _, c := range s.dataColumns() {
		content, ok := row.Cells[c.ID]
		if !ok {
			continue
		}
		arg, err := encodeValue(content.Value)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.ID, err)
		}
		cols = append(cols, c.ID)
		args = append(args, arg)
	}
	cols = append(cols, UpdatedColumn)
	args = append(args, now)

	if row.Draft {
		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = s.quote(c)
			marks[i] = s.placeholder(i + 1)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			s.quote(s.table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
		if s.driver == PostgreSQL {
			q += fmt.Sprintf(" RETURNING %s", s.quote(IDColumn))
			var id int64
			if err := s.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d", id), nil
		}
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return "", err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d", id), nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", s.quote(c), s.placeholder(i+1))
	}
	args = append(args, row.ID)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		s.quote(s.table), strings.Join(sets, ", "), s.quote(IDColumn), s.placeholder(len(cols)+1))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("row %s no longer exists", row.ID)
	}
	return row.ID, nil
}

// ValidateField implements Store: uniqueness for unique columns, existence
// for reference columns.
func (s *SQLStore) ValidateField(ctx context.Context, field string, value grid.Value, rowID string) (FieldCheck, error) {
	var col *grid.Column
	for i := range s.columns {
		if s.columns[i].ID == field {
			col = &s.columns[i]
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
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s AND %s <> %s",
			s.quote(s.table), s.quote(field), s.placeholder(1), s.quote(IDColumn), s.placeholder(2))
		id := rowID
		if grid.IsDraftID(id) || id == "" {
			id = "0"
		}
		arg, err := encodeValue(value)
		if err != nil {
			return FieldCheck{}, err
		}
		var n int
		if err := s.db.QueryRowContext(ctx, q, arg, id).Scan(&n); err != nil {
			return FieldCheck{}, err
		}
		if n > 0 {
			return FieldCheck{Message: fmt.Sprintf("%s %q is already in use", field, value.String())}, nil
		}
	}

	if col.Type == grid.TypeReference {
		ref, ok := value.ReferenceValue()
		if !ok {
			return FieldCheck{Valid: true}, nil
		}
		var rec *Record
		var err error
		if ref.Resolved() {
			rec, err = s.Get(ctx, ref.ID)
		} else {
			rec, err = s.LookupByKey(ctx, ref.Label)
			if err == nil && rec == nil {
				rec, err = s.LookupByName(ctx, ref.Label)
			}
		}
		if err != nil {
			return FieldCheck{}, err
		}
		if rec == nil {
			return FieldCheck{Message: fmt.Sprintf("referenced %s %q not found", col.RefTarget, ref.Label)}, nil
		}
	}

	return FieldCheck{Valid: true}, nil
}

// encodeValue maps a grid value to a driver value. Lists and references are
// stored as JSON text; scalar nulls map to SQL NULL.
func encodeValue(v grid.Value) (any, error) {
	if v.IsEmpty() && !v.Type().IsList() {
		return nil, nil
	}
	switch v.Type() {
	case grid.TypeText, grid.TypeSelect, grid.TypeReadOnly:
		return v.TextValue(), nil
	case grid.TypeDecimal:
		f, _ := v.DecimalValue()
		return f, nil
	case grid.TypeBool:
		b, _ := v.BoolValue()
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case grid.TypeReference:
		ref, _ := v.ReferenceValue()
		data, err := json.Marshal(ref)
		return string(data), err
	case grid.TypeMultiReference:
		data, err := json.Marshal(v.ReferencesValue())
		return string(data), err
	case grid.TypeStringList:
		data, err := json.Marshal(v.StringListValue())
		return string(data), err
	}
	return nil, fmt.Errorf("unsupported value type %s", v.Type())
}

// decodeValue is the inverse of encodeValue for text-encoded variants.
func decodeValue(t grid.CellType, raw string) (grid.Value, error) {
	switch t {
	case grid.TypeText:
		return grid.Text(raw), nil
	case grid.TypeSelect:
		return grid.Select(raw), nil
	case grid.TypeReadOnly:
		return grid.ReadOnlyText(raw), nil
	case grid.TypeReference:
		if raw == "" {
			return grid.Null(t), nil
		}
		var ref grid.Ref
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			return grid.Value{}, err
		}
		return grid.Reference(ref), nil
	case grid.TypeMultiReference:
		if raw == "" {
			return grid.Null(t), nil
		}
		var refs []grid.Ref
		if err := json.Unmarshal([]byte(raw), &refs); err != nil {
			return grid.Value{}, err
		}
		return grid.References(refs), nil
	case grid.TypeStringList:
		if raw == "" {
			return grid.Null(t), nil
		}
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return grid.Value{}, err
		}
		return grid.StringList(list), nil
	}
	return grid.Value{}, fmt.Errorf("unsupported column type %s", t)
}
