package history

import "arked/internal/grid"

// DefaultCapacity bounds the undo stack; the oldest entries are evicted.
const DefaultCapacity = 200

// Engine owns the only write path into the dataset. Commands execute in
// strict stack order; executing a new command discards the redo stack, and a
// successful save clears history entirely since the post-save state becomes
// the new baseline.
type Engine struct {
	ds       *grid.Dataset
	capacity int
	undo     []Command
	redo     []Command
}

// NewEngine builds an engine over a dataset. capacity <= 0 uses the default.
func NewEngine(ds *grid.Dataset, capacity int) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Engine{ds: ds, capacity: capacity}
}

// Execute applies a command and records it for undo. The redo stack is
// cleared: history is linear, never branching.
func (e *Engine) Execute(cmd Command) error {
	if err := cmd.Apply(e.ds); err != nil {
		return err
	}
	e.undo = append(e.undo, cmd)
	if len(e.undo) > e.capacity {
		e.undo = e.undo[len(e.undo)-e.capacity:]
	}
	e.redo = e.redo[:0]
	return nil
}

// Undo reverts the most recent command. It reports the command's description
// and false when there is nothing to undo.
func (e *Engine) Undo() (string, bool, error) {
	if len(e.undo) == 0 {
		return "", false, nil
	}
	cmd := e.undo[len(e.undo)-1]
	if err := cmd.Revert(e.ds); err != nil {
		return "", false, err
	}
	e.undo = e.undo[:len(e.undo)-1]
	e.redo = append(e.redo, cmd)
	return cmd.Description(), true, nil
}

// Redo re-applies the most recently undone command.
func (e *Engine) Redo() (string, bool, error) {
	if len(e.redo) == 0 {
		return "", false, nil
	}
	cmd := e.redo[len(e.redo)-1]
	if err := cmd.Apply(e.ds); err != nil {
		return "", false, err
	}
	e.redo = e.redo[:len(e.redo)-1]
	e.undo = append(e.undo, cmd)
	return cmd.Description(), true, nil
}

// CanUndo reports whether history holds anything to revert.
func (e *Engine) CanUndo() bool { return len(e.undo) > 0 }

// CanRedo reports whether anything was undone and not re-executed.
func (e *Engine) CanRedo() bool { return len(e.redo) > 0 }

// Clear drops all history. Called after a fully successful save: there is no
// undo past a commit.
func (e *Engine) Clear() {
	e.undo = e.undo[:0]
	e.redo = e.redo[:0]
}

// Rekey rewrites a row's identity throughout stored history after the row
// was created server-side, so undo and redo keep addressing the same logical
// row rather than a retired draft id.
func (e *Engine) Rekey(oldID, newID string) {
	for _, cmd := range e.undo {
		cmd.rekey(oldID, newID)
	}
	for _, cmd := range e.redo {
		cmd.rekey(oldID, newID)
	}
}
