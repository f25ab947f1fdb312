package grid

// ValidationState tracks the async validation lifecycle of one cell.
type ValidationState int

const (
	Valid ValidationState = iota
	Invalid
	Validating
)

func (s ValidationState) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Validating:
		return "validating"
	default:
		return "unknown"
	}
}

// CellContent is the value+text pair that moves through commands, diffs and
// save payloads. Text is the human-readable rendering of Value.
type CellContent struct {
	Value Value
	Text  string
}

// Content builds a CellContent whose text is the value's default rendering.
func Content(v Value) CellContent {
	return CellContent{Value: v, Text: v.String()}
}

// Cell is one editable unit. Original is the baseline captured at load or at
// the last successful save; edit detection is always derived from it.
type Cell struct {
	Value Value
	Text  string

	State    ValidationState
	ErrorMsg string

	Original    Value
	HasConflict bool
}

// NewCell builds a clean cell whose baseline equals its value.
func NewCell(v Value) Cell {
	return Cell{Value: v, Text: v.String(), Original: v, State: Valid}
}

// IsEdited reports whether the cell differs from its baseline.
func (c Cell) IsEdited() bool { return !c.Value.Equal(c.Original) }

// Content returns the cell's current value+text pair.
func (c Cell) Content() CellContent { return CellContent{Value: c.Value, Text: c.Text} }

// BaselineContent returns the cell's baseline as a value+text pair.
func (c Cell) BaselineContent() CellContent { return Content(c.Original) }
