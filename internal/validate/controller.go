package validate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"arked/internal/grid"
)

// DefaultDebounce is how long a cell's validation waits for further edits
// before the rules actually run.
const DefaultDebounce = 300 * time.Millisecond

// Target addresses one cell.
type Target struct {
	RowID    string
	ColumnID string
}

// Options configures a Controller.
type Options struct {
	// Debounce delay per (row, column) key; <= 0 uses the default.
	Debounce time.Duration
	// Dispatch serializes dataset writes onto the owner's event loop. The
	// zero value invokes functions directly (single-threaded tests).
	Dispatch func(fn func())
	// OnChange is called after a cell's validation state was written, so
	// the owner can redraw.
	OnChange func(t Target, state grid.ValidationState)
	// OnBusy signals the start and end of a bulk validation pass.
	OnBusy func(busy bool)
}

// Controller owns async validation. Each (row, column) key has its own timer
// and generation counter: a newer request supersedes any pending or in-flight
// one, and a superseded result is discarded without ever touching the cell.
// A request that never resolves leaves the cell validating; it is recovered
// by editing the cell again.
type Controller struct {
	ds    *grid.Dataset
	rules *Rules
	opts  Options

	mu     sync.Mutex
	gen    map[Target]uint64
	timers map[Target]*time.Timer
}

// NewController builds a controller over the dataset and rule set.
func NewController(ds *grid.Dataset, rules *Rules, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	return &Controller{
		ds:     ds,
		rules:  rules,
		opts:   opts,
		gen:    make(map[Target]uint64),
		timers: make(map[Target]*time.Timer),
	}
}

// ValidateCell schedules validation of the cell's current value. The cell is
// immediately marked validating and any stale error cleared; the rules run
// after the debounce delay unless a newer request for the same key arrives
// first.
func (c *Controller) ValidateCell(ctx context.Context, rowID, columnID string, value grid.Value) {
	t := Target{RowID: rowID, ColumnID: columnID}

	c.mu.Lock()
	c.gen[t]++
	gen := c.gen[t]
	if timer, ok := c.timers[t]; ok {
		timer.Stop()
	}
	c.timers[t] = time.AfterFunc(c.opts.Debounce, func() {
		c.run(ctx, t, gen, value)
	})
	c.mu.Unlock()

	c.opts.Dispatch(func() {
		c.ds.SetValidation(rowID, columnID, grid.Validating, "")
		if c.opts.OnChange != nil {
			c.opts.OnChange(t, grid.Validating)
		}
	})
}

// run evaluates the rules and commits the result unless it was superseded.
func (c *Controller) run(ctx context.Context, t Target, gen uint64, value grid.Value) {
	if c.superseded(t, gen) {
		return
	}
	state, msg := c.rules.Check(ctx, t.RowID, t.ColumnID, value)
	c.commit(t, gen, value, state, msg)
}

// commit writes a validation outcome, unless the request was superseded or
// the cell has moved on to a different value since the request was issued.
func (c *Controller) commit(t Target, gen uint64, value grid.Value, state grid.ValidationState, msg string) {
	if c.superseded(t, gen) {
		return
	}
	c.opts.Dispatch(func() {
		if c.superseded(t, gen) {
			return
		}
		row := c.ds.Row(t.RowID)
		if row == nil {
			return
		}
		cell, ok := row.Cell(t.ColumnID)
		if !ok || !cell.Value.Equal(value) {
			// The in-flight request validated a value the cell no longer
			// holds; drop the result silently.
			return
		}
		c.ds.SetValidation(t.RowID, t.ColumnID, state, msg)
		if c.opts.OnChange != nil {
			c.opts.OnChange(t, state)
		}
	})
}

func (c *Controller) superseded(t Target, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[t] != gen
}

// Flush cancels the pending debounce for a key and runs it now. Used on
// save so the outcome of the last edit is known before the payload builds.
func (c *Controller) Flush(ctx context.Context, rowID, columnID string) {
	t := Target{RowID: rowID, ColumnID: columnID}
	c.mu.Lock()
	timer, ok := c.timers[t]
	c.mu.Unlock()
	if ok && timer.Stop() {
		// The timer had not fired; validate the live value immediately.
		row := c.ds.Row(rowID)
		if row == nil {
			return
		}
		if cell, ok := row.Cell(columnID); ok {
			c.mu.Lock()
			gen := c.gen[t]
			c.mu.Unlock()
			c.run(ctx, t, gen, cell.Value)
		}
	}
}

// BulkValidate validates many cells, bounding concurrency so a large import
// never starves interactive edits; each cell remains an independent task and
// a user edit issued mid-pass supersedes the bulk result for that cell.
func (c *Controller) BulkValidate(ctx context.Context, targets []Target) error {
	if len(targets) == 0 {
		return nil
	}
	if c.opts.OnBusy != nil {
		c.opts.OnBusy(true)
		defer c.opts.OnBusy(false)
	}

	type job struct {
		target Target
		gen    uint64
		value  grid.Value
	}
	jobs := make([]job, 0, len(targets))
	c.mu.Lock()
	for _, t := range targets {
		row := c.ds.Row(t.RowID)
		if row == nil {
			continue
		}
		cell, ok := row.Cell(t.ColumnID)
		if !ok {
			continue
		}
		c.gen[t]++
		jobs = append(jobs, job{target: t, gen: c.gen[t], value: cell.Value})
	}
	c.mu.Unlock()

	for _, j := range jobs {
		jt := j.target
		c.opts.Dispatch(func() {
			c.ds.SetValidation(jt.RowID, jt.ColumnID, grid.Validating, "")
			if c.opts.OnChange != nil {
				c.opts.OnChange(jt, grid.Validating)
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.run(gctx, j.target, j.gen, j.value)
			return nil
		})
	}
	return g.Wait()
}
